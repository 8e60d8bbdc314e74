// Package graph provides the element and relationship stores.
//
// An ElementStore groups elements into one collection per element type. A
// RelationshipStore accepts an edge only after it passes an ordered,
// short-circuiting pipeline:
//
//  1. id present and unused
//  2. relationshipType present
//  3. sourceElementId and targetElementId present
//  4. sourceElementType and targetElementType present
//  5. direction is OUTGOING
//  6. relationshipType is in the rule table
//  7. both endpoints exist and are live
//  8. declared endpoint types equal the stored types
//  9. the endpoint pair is allowed by the rule
//
// The stage order fixes which message a caller sees and must not change.
//
// # Graph lifecycle
//
// A Graph pairs both stores. Graphs are mutated only as candidates: clone
// the current graph, edit the clone, commit it. Committing freezes the graph
// and advances each store's revision if that store changed.
package graph
