package graph

import (
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

// View is a read-only handle on a graph. Every method returns copies.
type View interface {
	GetElementByID(id string) (model.Element, bool)
	GetElementsByType(t model.ElementType) []model.Element
	AllElements() []model.Element

	GetRelationshipByID(id string) (model.Relationship, bool)
	GetRelationshipsByType(t model.RelationshipType) []model.Relationship
	GetRelationshipsForElement(id string) []model.Relationship
	GetOutgoingRelationships(id string) []model.Relationship
	GetIncomingRelationships(id string) []model.Relationship
	GetAllRelationships() []model.Relationship

	ElementsRevision() int64
	RelationshipsRevision() int64
	Table() *rules.Table
}

// Graph is one (Element Store, Relationship Store) pair.
//
// A Graph is mutable until Commit. Committed graphs reject every mutation
// with ErrFrozen; Clone yields a mutable candidate.
type Graph struct {
	elements      *ElementStore
	relationships *RelationshipStore
	table         *rules.Table
}

var _ View = (*Graph)(nil)

// New creates an empty graph validated against table.
func New(table *rules.Table) *Graph {
	elements := NewElementStore()
	return &Graph{
		elements:      elements,
		relationships: NewRelationshipStore(elements, table),
		table:         table,
	}
}

// Elements returns the element store.
func (g *Graph) Elements() *ElementStore { return g.elements }

// Relationships returns the relationship store.
func (g *Graph) Relationships() *RelationshipStore { return g.relationships }

// Table returns the rule table the graph validates against.
func (g *Graph) Table() *rules.Table { return g.table }

// Clone returns a mutable structural copy carrying the same revisions.
func (g *Graph) Clone() *Graph {
	elements := g.elements.clone()
	return &Graph{
		elements:      elements,
		relationships: g.relationships.clone(elements),
		table:         g.table,
	}
}

// Commit freezes the graph. Each store's revision advances by one if that
// store was mutated since it was cloned.
func (g *Graph) Commit() {
	g.elements.commit()
	g.relationships.commit()
}

// Committed reports whether the graph is frozen.
func (g *Graph) Committed() bool {
	return g.elements.frozen
}

// ContinueFrom adopts prev's revisions and marks both stores changed, so
// the next Commit lands strictly after prev. Used when a graph is rebuilt
// from serialized state rather than cloned.
func (g *Graph) ContinueFrom(prev View) error {
	if g.Committed() {
		return ErrFrozen
	}
	g.elements.revision = prev.ElementsRevision()
	g.elements.dirty = true
	g.relationships.revision = prev.RelationshipsRevision()
	g.relationships.dirty = true
	return nil
}

// AddElement inserts el into the collection named by its type.
func (g *Graph) AddElement(el model.Element) error {
	return g.elements.AddElement(el.Type, el)
}

// AddRelationship runs the insertion pipeline.
func (g *Graph) AddRelationship(rel model.Relationship) error {
	return g.relationships.AddRelationship(rel)
}

// RemoveRelationship deletes an edge.
func (g *Graph) RemoveRelationship(id string) error {
	return g.relationships.RemoveRelationship(id)
}

// Tombstone soft-deletes an element.
func (g *Graph) Tombstone(id string) error {
	return g.elements.Tombstone(id)
}

// SetAttribute sets or clears (nil value) one element attribute.
func (g *Graph) SetAttribute(id, key string, value model.Value) error {
	return g.elements.SetAttribute(id, key, value)
}

func (g *Graph) GetElementByID(id string) (model.Element, bool) {
	return g.elements.GetElementByID(id)
}

func (g *Graph) GetElementsByType(t model.ElementType) []model.Element {
	return g.elements.GetElementsByType(t)
}

func (g *Graph) AllElements() []model.Element {
	return g.elements.All()
}

func (g *Graph) GetRelationshipByID(id string) (model.Relationship, bool) {
	return g.relationships.GetRelationshipByID(id)
}

func (g *Graph) GetRelationshipsByType(t model.RelationshipType) []model.Relationship {
	return g.relationships.GetRelationshipsByType(t)
}

func (g *Graph) GetRelationshipsForElement(id string) []model.Relationship {
	return g.relationships.GetRelationshipsForElement(id)
}

func (g *Graph) GetOutgoingRelationships(id string) []model.Relationship {
	return g.relationships.GetOutgoingRelationships(id)
}

func (g *Graph) GetIncomingRelationships(id string) []model.Relationship {
	return g.relationships.GetIncomingRelationships(id)
}

func (g *Graph) GetAllRelationships() []model.Relationship {
	return g.relationships.GetAllRelationships()
}

func (g *Graph) ElementsRevision() int64 { return g.elements.Revision() }

func (g *Graph) RelationshipsRevision() int64 { return g.relationships.Revision() }

// IsLiveRelationship reports whether both endpoints of rel are live in v.
func IsLiveRelationship(v View, rel model.Relationship) bool {
	source, ok := v.GetElementByID(rel.SourceElementID)
	if !ok || !source.Live() {
		return false
	}
	target, ok := v.GetElementByID(rel.TargetElementID)
	return ok && target.Live()
}
