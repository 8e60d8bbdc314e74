package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/eagraph/internal/model"
)

// Rule table error codes (E100-E199)
const (
	ErrCUECompile       = "E100" // CUE source failed to compile or unify
	ErrEmptyTable       = "E101" // no relationship types
	ErrInvalidTypeName  = "E102" // relationship type name is not UPPER_SNAKE
	ErrEmptyEndpointSet = "E103" // from or to is empty
	ErrUnknownElement   = "E104" // endpoint names an unknown element type
	ErrPairOutsideSet   = "E105" // pair member not listed in from/to
	ErrMalformedPair    = "E106" // pair does not have exactly two members
	ErrDuplicateEntry   = "E107" // element type or pair listed twice
	ErrEmptyPairs       = "E108" // pairs is present but empty
)

var relationshipTypeName = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

// ValidationError is a rule table problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in one table.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (errs ValidationErrors) sort() {
	slices.SortStableFunc(errs, func(a, b ValidationError) int {
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
}

// validateRule checks one rule. Returns all errors found.
func validateRule(rt model.RelationshipType, rule EndpointRule) []ValidationError {
	var errs []ValidationError
	field := "relationship." + string(rt)

	if !relationshipTypeName.MatchString(string(rt)) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("relationship type %q must be UPPER_SNAKE_CASE", rt),
			Code:    ErrInvalidTypeName,
		})
	}

	errs = append(errs, validateEndpointSet(field+".from", rule.From)...)
	errs = append(errs, validateEndpointSet(field+".to", rule.To)...)

	if rule.Pairs != nil && len(rule.Pairs) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".pairs",
			Message: "pairs must list at least one pair when present; omit it to allow from x to",
			Code:    ErrEmptyPairs,
		})
	}

	seen := make(map[Pair]bool, len(rule.Pairs))
	for i, p := range rule.Pairs {
		pf := fmt.Sprintf("%s.pairs[%d]", field, i)
		if seen[p] {
			errs = append(errs, ValidationError{
				Field:   pf,
				Message: fmt.Sprintf("duplicate pair %s", p),
				Code:    ErrDuplicateEntry,
			})
		}
		seen[p] = true
		if !slices.Contains(rule.From, p.From) {
			errs = append(errs, ValidationError{
				Field:   pf,
				Message: fmt.Sprintf("pair source %q is not listed in from", p.From),
				Code:    ErrPairOutsideSet,
			})
		}
		if !slices.Contains(rule.To, p.To) {
			errs = append(errs, ValidationError{
				Field:   pf,
				Message: fmt.Sprintf("pair target %q is not listed in to", p.To),
				Code:    ErrPairOutsideSet,
			})
		}
	}

	return errs
}

func validateEndpointSet(field string, types []model.ElementType) []ValidationError {
	var errs []ValidationError
	if len(types) == 0 {
		return []ValidationError{{
			Field:   field,
			Message: "at least one element type is required",
			Code:    ErrEmptyEndpointSet,
		}}
	}
	seen := make(map[model.ElementType]bool, len(types))
	for i, et := range types {
		if !et.Valid() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("unknown element type %q", et),
				Code:    ErrUnknownElement,
			})
		}
		if seen[et] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("element type %q listed twice", et),
				Code:    ErrDuplicateEntry,
			})
		}
		seen[et] = true
	}
	return errs
}
