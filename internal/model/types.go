package model

import (
	"fmt"
	"strings"
)

// ElementType names an element kind. Each kind is stored in its own collection.
type ElementType string

const (
	Enterprise         ElementType = "Enterprise"
	Department         ElementType = "Department"
	CapabilityCategory ElementType = "CapabilityCategory"
	Capability         ElementType = "Capability"
	SubCapability      ElementType = "SubCapability"
	BusinessService    ElementType = "BusinessService"
	Application        ElementType = "Application"
	ApplicationService ElementType = "ApplicationService"
	Technology         ElementType = "Technology"
	Programme          ElementType = "Programme"
)

// ElementTypes lists every known element type in declaration order.
var ElementTypes = []ElementType{
	Enterprise,
	Department,
	CapabilityCategory,
	Capability,
	SubCapability,
	BusinessService,
	Application,
	ApplicationService,
	Technology,
	Programme,
}

// ParseElementType resolves a type name. Matching is exact.
func ParseElementType(s string) (ElementType, bool) {
	for _, t := range ElementTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	_, ok := ParseElementType(string(t))
	return ok
}

// Layer groups element types for cross-layer governance rules.
type Layer string

const (
	LayerBusiness       Layer = "Business"
	LayerApplication    Layer = "Application"
	LayerTechnology     Layer = "Technology"
	LayerImplementation Layer = "Implementation"
)

// Layer returns the architecture layer the type belongs to.
func (t ElementType) Layer() Layer {
	switch t {
	case Enterprise, Department, CapabilityCategory, Capability, SubCapability, BusinessService:
		return LayerBusiness
	case Application, ApplicationService:
		return LayerApplication
	case Technology:
		return LayerTechnology
	case Programme:
		return LayerImplementation
	}
	return ""
}

// RelationshipType names an edge kind. The set of accepted types is owned
// by the rule table, not by this package.
type RelationshipType string

const (
	Owns         RelationshipType = "OWNS"
	Has          RelationshipType = "HAS"
	DecomposesTo RelationshipType = "DECOMPOSES_TO"
	ComposedOf   RelationshipType = "COMPOSED_OF"
	RealizedBy   RelationshipType = "REALIZED_BY"
	Provides     RelationshipType = "PROVIDES"
	SupportedBy  RelationshipType = "SUPPORTED_BY"
	HostedOn     RelationshipType = "HOSTED_ON"
)

// Direction of a relationship. Only Outgoing is accepted by the store.
type Direction string

const (
	Outgoing Direction = "OUTGOING"
)

// Status is the element lifecycle in the store.
type Status int

const (
	Live Status = iota
	Tombstoned
)

func (s Status) String() string {
	switch s {
	case Live:
		return "Live"
	case Tombstoned:
		return "Tombstoned"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// LifecycleState is the As-Is / To-Be tag carried in the lifecycleState attribute.
type LifecycleState string

const (
	AsIs LifecycleState = "As-Is"
	ToBe LifecycleState = "To-Be"
)

// ParseLifecycleState accepts "As-Is"/"To-Be" and the compact "AsIs"/"ToBe",
// case-insensitively.
func ParseLifecycleState(s string) (LifecycleState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "as-is", "asis":
		return AsIs, true
	case "to-be", "tobe":
		return ToBe, true
	}
	return "", false
}

// Well-known attribute keys.
const (
	AttrName           = "name"
	AttrOwnerID        = "ownerId"
	AttrOwnerType      = "ownerType"
	AttrLifecycleState = "lifecycleState"
	AttrCreatedAt      = "createdAt"
	AttrCreatedBy      = "createdBy"
	AttrLastModifiedAt = "lastModifiedAt"
	AttrLastModifiedBy = "lastModifiedBy"

	// AttrDeleted is the wire form of Tombstoned. It never appears in a
	// stored element's attribute map.
	AttrDeleted = "deleted"
)
