package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

// GraphBuilder assembles candidate graphs in tests. Every step fails the
// test immediately if the store rejects it.
type GraphBuilder struct {
	t testing.TB
	g *graph.Graph
}

// NewGraph starts an empty graph. A nil table means rules.Default().
func NewGraph(t testing.TB, table *rules.Table) *GraphBuilder {
	t.Helper()
	if table == nil {
		table = rules.Default()
	}
	return &GraphBuilder{t: t, g: graph.New(table)}
}

// From continues building on a clone of g.
func From(t testing.TB, g *graph.Graph) *GraphBuilder {
	t.Helper()
	return &GraphBuilder{t: t, g: g.Clone()}
}

// Element adds an element with raw attributes.
func (b *GraphBuilder) Element(id string, typ model.ElementType, attrs ...model.Attr) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddElement(model.NewElement(id, typ, attrs...)))
	return b
}

// Owned adds an element carrying a name and an ownerId.
func (b *GraphBuilder) Owned(id string, typ model.ElementType, name, owner string) *GraphBuilder {
	b.t.Helper()
	return b.Element(id, typ,
		model.A(model.AttrName, model.String(name)),
		model.A(model.AttrOwnerID, model.String(owner)))
}

// Relationship adds an edge, taking endpoint types from the stored elements.
func (b *GraphBuilder) Relationship(id string, rt model.RelationshipType, from, to string) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.AddRelationship(b.Rel(id, rt, from, to)))
	return b
}

// Rel builds (without inserting) an edge between two stored elements.
func (b *GraphBuilder) Rel(id string, rt model.RelationshipType, from, to string) model.Relationship {
	b.t.Helper()
	source, ok := b.g.GetElementByID(from)
	require.True(b.t, ok, "unknown source %q", from)
	target, ok := b.g.GetElementByID(to)
	require.True(b.t, ok, "unknown target %q", to)
	return model.NewRelationship(id, rt, source, target)
}

// Tombstone soft-deletes an element.
func (b *GraphBuilder) Tombstone(id string) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.Tombstone(id))
	return b
}

// Set sets one attribute.
func (b *GraphBuilder) Set(id, key string, value model.Value) *GraphBuilder {
	b.t.Helper()
	require.NoError(b.t, b.g.SetAttribute(id, key, value))
	return b
}

// Graph returns the uncommitted graph.
func (b *GraphBuilder) Graph() *graph.Graph {
	return b.g
}

// Committed commits and returns the graph.
func (b *GraphBuilder) Committed() *graph.Graph {
	b.g.Commit()
	return b.g
}

// Compliant builds a small estate with zero governance debt under
// As-Is coverage:
//
//	ent-1 (self-owned) -HAS-> dep-1
//	ent-1 -OWNS-> cap-1 -REALIZED_BY-> bs-1 -SUPPORTED_BY-> as-1
//	ent-1 -OWNS-> app-1 -PROVIDES-> as-1
//	app-1 -HOSTED_ON-> tech-1
func Compliant(t testing.TB) *GraphBuilder {
	t.Helper()
	return NewGraph(t, nil).
		Owned("ent-1", model.Enterprise, "Acme", "ent-1").
		Owned("dep-1", model.Department, "Operations", "ent-1").
		Owned("cap-1", model.Capability, "Billing", "ent-1").
		Owned("bs-1", model.BusinessService, "Invoice Customers", "dep-1").
		Owned("app-1", model.Application, "Ledger", "dep-1").
		Owned("as-1", model.ApplicationService, "Invoice API", "dep-1").
		Owned("tech-1", model.Technology, "Postgres", "dep-1").
		Relationship("has-1", model.Has, "ent-1", "dep-1").
		Relationship("own-1", model.Owns, "ent-1", "cap-1").
		Relationship("own-2", model.Owns, "ent-1", "app-1").
		Relationship("rz-1", model.RealizedBy, "cap-1", "bs-1").
		Relationship("sup-1", model.SupportedBy, "bs-1", "as-1").
		Relationship("prov-1", model.Provides, "app-1", "as-1").
		Relationship("host-1", model.HostedOn, "app-1", "tech-1")
}
