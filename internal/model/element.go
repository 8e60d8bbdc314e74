package model

import (
	"encoding/json"
	"fmt"
)

// Element is a typed node in the architecture graph.
type Element struct {
	ID         string
	Type       ElementType
	Status     Status
	Attributes Object
}

// NewElement builds a live element with the given attributes.
func NewElement(id string, t ElementType, attrs ...Attr) Element {
	return Element{ID: id, Type: t, Status: Live, Attributes: Attrs(attrs...)}
}

// Live reports whether the element takes part in live-graph computations.
func (e Element) Live() bool {
	return e.Status == Live
}

// Name returns the name attribute, or "" when absent.
func (e Element) Name() string {
	s, _ := e.Attributes.GetString(AttrName)
	return s
}

// Attr returns a string attribute.
func (e Element) Attr(key string) (string, bool) {
	return e.Attributes.GetString(key)
}

// Clone returns an independent copy.
func (e Element) Clone() Element {
	e.Attributes = e.Attributes.Clone()
	return e
}

// Equal reports structural equality.
func (e Element) Equal(other Element) bool {
	return e.ID == other.ID &&
		e.Type == other.Type &&
		e.Status == other.Status &&
		EqualValues(nonNil(e.Attributes), nonNil(other.Attributes))
}

func nonNil(obj Object) Object {
	if obj == nil {
		return Object{}
	}
	return obj
}

// ElementRecord is the wire form {id, type, attributes}.
// Tombstoned elements carry attributes.deleted = true.
type ElementRecord struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes Object `json:"attributes"`
}

// Record converts the element to its wire form.
func (e Element) Record() ElementRecord {
	attrs := e.Attributes.Clone()
	if attrs == nil {
		attrs = Object{}
	}
	if e.Status == Tombstoned {
		attrs[AttrDeleted] = Bool(true)
	}
	return ElementRecord{ID: e.ID, Type: string(e.Type), Attributes: attrs}
}

// Element converts a wire record back into an element.
func (r ElementRecord) Element() (Element, error) {
	t, ok := ParseElementType(r.Type)
	if !ok {
		return Element{}, fmt.Errorf("element %q: unknown element type %q", r.ID, r.Type)
	}
	attrs := r.Attributes.Clone()
	if attrs == nil {
		attrs = Object{}
	}
	status := Live
	if deleted, ok := attrs.GetBool(AttrDeleted); ok {
		if deleted {
			status = Tombstoned
		}
		delete(attrs, AttrDeleted)
	}
	return Element{ID: r.ID, Type: t, Status: status, Attributes: attrs}, nil
}

// MarshalJSON writes the wire record.
func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Record())
}

// UnmarshalJSON reads the wire record.
func (e *Element) UnmarshalJSON(data []byte) error {
	var rec ElementRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	el, err := rec.Element()
	if err != nil {
		return err
	}
	*e = el
	return nil
}

// Relationship is a typed, directed edge between two elements.
type Relationship struct {
	ID                string           `json:"id"`
	Type              RelationshipType `json:"relationshipType"`
	SourceElementID   string           `json:"sourceElementId"`
	SourceElementType ElementType      `json:"sourceElementType"`
	TargetElementID   string           `json:"targetElementId"`
	TargetElementType ElementType      `json:"targetElementType"`
	Direction         Direction        `json:"direction"`
	Attributes        Object           `json:"attributes,omitempty"`
}

// NewRelationship builds an outgoing relationship between two elements.
func NewRelationship(id string, t RelationshipType, source, target Element) Relationship {
	return Relationship{
		ID:                id,
		Type:              t,
		SourceElementID:   source.ID,
		SourceElementType: source.Type,
		TargetElementID:   target.ID,
		TargetElementType: target.Type,
		Direction:         Outgoing,
	}
}

// Clone returns an independent copy.
func (r Relationship) Clone() Relationship {
	r.Attributes = r.Attributes.Clone()
	return r
}

// Equal reports structural equality.
func (r Relationship) Equal(other Relationship) bool {
	return r.ID == other.ID &&
		r.Type == other.Type &&
		r.SourceElementID == other.SourceElementID &&
		r.SourceElementType == other.SourceElementType &&
		r.TargetElementID == other.TargetElementID &&
		r.TargetElementType == other.TargetElementType &&
		r.Direction == other.Direction &&
		EqualValues(nonNil(r.Attributes), nonNil(other.Attributes))
}

// Touches reports whether id is either endpoint.
func (r Relationship) Touches(id string) bool {
	return r.SourceElementID == id || r.TargetElementID == id
}

func (r Relationship) String() string {
	return fmt.Sprintf("%s(%s -> %s)", r.Type, r.SourceElementID, r.TargetElementID)
}
