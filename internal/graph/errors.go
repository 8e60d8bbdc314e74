package graph

import (
	"errors"
	"fmt"
)

// Element store error codes (E200-E299)
const (
	ErrElementIDEmpty      = "E201" // element id is required
	ErrElementDuplicate    = "E202" // id already present in the collection
	ErrElementIDInUse      = "E203" // id already used by another collection
	ErrElementCollection   = "E204" // element type does not match collection
	ErrElementTypeUnknown  = "E205" // collection is not a known element type
	ErrElementNotFound     = "E206" // no element with that id
	ErrElementReservedAttr = "E207" // attribute key is managed by the store
)

// Relationship pipeline error codes (E300-E399), one per stage.
const (
	ErrRelationshipIDEmpty    = "E301" // stage 1
	ErrRelationshipDuplicate  = "E302" // stage 1
	ErrRelationshipTypeEmpty  = "E303" // stage 2
	ErrEndpointIDEmpty        = "E304" // stage 3
	ErrEndpointTypeEmpty      = "E305" // stage 4
	ErrUnsupportedDirection   = "E306" // stage 5
	ErrUnsupportedType        = "E307" // stage 6
	ErrEndpointNotLive        = "E308" // stage 7
	ErrEndpointTypeMismatch   = "E309" // stage 8
	ErrEndpointPairNotAllowed = "E310" // stage 9
	ErrRelationshipNotFound   = "E311" // remove of unknown id
)

// ErrFrozen is returned by every mutation on a committed graph.
var ErrFrozen = errors.New("graph is committed and read-only")

// ElementError is a rejected element operation.
type ElementError struct {
	Code    string `json:"code"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ElementError) Error() string {
	return fmt.Sprintf("[%s] element %s: %s", e.Code, e.ID, e.Message)
}

// InsertError is a relationship rejected by the validation pipeline.
// Stage is the 1-based pipeline stage that failed.
type InsertError struct {
	Code    string `json:"code"`
	Stage   int    `json:"stage"`
	ID      string `json:"id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *InsertError) Error() string {
	return fmt.Sprintf("[%s] relationship %s: %s", e.Code, e.ID, e.Message)
}

// IsInsertError reports whether err is a relationship pipeline rejection.
func IsInsertError(err error) bool {
	var ie *InsertError
	return errors.As(err, &ie)
}

// IsElementError reports whether err is a rejected element operation.
func IsElementError(err error) bool {
	var ee *ElementError
	return errors.As(err, &ee)
}

// InsertErrorCode returns the pipeline code of err, or "" when err is not an InsertError.
func InsertErrorCode(err error) string {
	var ie *InsertError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}
