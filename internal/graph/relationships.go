package graph

import (
	"fmt"
	"strings"

	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

// ElementLookup resolves endpoint ids. ElementStore satisfies it.
type ElementLookup interface {
	GetElementByID(id string) (model.Element, bool)
}

// RelationshipStore holds typed edges validated against an element lookup
// and a rule table, indexed by type and by incident element.
type RelationshipStore struct {
	elements ElementLookup
	table    *rules.Table

	byID      map[string]model.Relationship
	byType    map[model.RelationshipType]map[string]struct{}
	byElement map[string]map[string]struct{}

	revision int64
	dirty    bool
	frozen   bool
}

// NewRelationshipStore creates an empty store bound to elements and table.
func NewRelationshipStore(elements ElementLookup, table *rules.Table) *RelationshipStore {
	return &RelationshipStore{
		elements:  elements,
		table:     table,
		byID:      make(map[string]model.Relationship),
		byType:    make(map[model.RelationshipType]map[string]struct{}),
		byElement: make(map[string]map[string]struct{}),
	}
}

// AddRelationship validates rel through the insertion pipeline and stores it.
// The first failing stage is returned as *InsertError; nothing is stored.
func (s *RelationshipStore) AddRelationship(rel model.Relationship) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := s.check(rel, false); err != nil {
		return err
	}
	s.insert(rel)
	return nil
}

// Restore inserts a relationship read back from serialized state.
// It runs the same pipeline except that tombstoned endpoints are accepted,
// since historical edges may reference soft-deleted elements.
func (s *RelationshipStore) Restore(rel model.Relationship) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := s.check(rel, true); err != nil {
		return err
	}
	s.insert(rel)
	return nil
}

// Validate runs the pipeline without storing anything.
func (s *RelationshipStore) Validate(rel model.Relationship) error {
	if err := s.check(rel, false); err != nil {
		return err
	}
	return nil
}

// check is the ordered insertion pipeline. Stage order is part of the
// contract: callers rely on the first failure being reported.
func (s *RelationshipStore) check(rel model.Relationship, allowTombstoned bool) *InsertError {
	reject := func(stage int, code, field, format string, args ...any) *InsertError {
		return &InsertError{
			Code:    code,
			Stage:   stage,
			ID:      rel.ID,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		}
	}

	// 1. id
	if strings.TrimSpace(rel.ID) == "" {
		return reject(1, ErrRelationshipIDEmpty, "id", "relationship id is required")
	}
	if _, exists := s.byID[rel.ID]; exists {
		return reject(1, ErrRelationshipDuplicate, "id", "duplicate relationship id %q", rel.ID)
	}

	// 2. type present
	if rel.Type == "" {
		return reject(2, ErrRelationshipTypeEmpty, "relationshipType", "relationshipType is required")
	}

	// 3. endpoint ids
	if rel.SourceElementID == "" {
		return reject(3, ErrEndpointIDEmpty, "sourceElementId", "sourceElementId is required")
	}
	if rel.TargetElementID == "" {
		return reject(3, ErrEndpointIDEmpty, "targetElementId", "targetElementId is required")
	}

	// 4. endpoint types
	if rel.SourceElementType == "" {
		return reject(4, ErrEndpointTypeEmpty, "sourceElementType", "sourceElementType is required")
	}
	if rel.TargetElementType == "" {
		return reject(4, ErrEndpointTypeEmpty, "targetElementType", "targetElementType is required")
	}

	// 5. direction
	if rel.Direction != model.Outgoing {
		return reject(5, ErrUnsupportedDirection, "direction",
			"unsupported direction %q: only %s is supported", rel.Direction, model.Outgoing)
	}

	// 6. known type
	rule, ok := s.table.Lookup(rel.Type)
	if !ok {
		return reject(6, ErrUnsupportedType, "relationshipType", "unsupported relationshipType %q", rel.Type)
	}

	// 7. endpoints exist and are live
	source, ok := s.elements.GetElementByID(rel.SourceElementID)
	if !ok {
		return reject(7, ErrEndpointNotLive, "sourceElementId", "source element %q does not exist", rel.SourceElementID)
	}
	target, ok := s.elements.GetElementByID(rel.TargetElementID)
	if !ok {
		return reject(7, ErrEndpointNotLive, "targetElementId", "target element %q does not exist", rel.TargetElementID)
	}
	if !allowTombstoned {
		if !source.Live() {
			return reject(7, ErrEndpointNotLive, "sourceElementId", "source element %q is tombstoned", source.ID)
		}
		if !target.Live() {
			return reject(7, ErrEndpointNotLive, "targetElementId", "target element %q is tombstoned", target.ID)
		}
	}

	// 8. declared types match stored types
	if source.Type != rel.SourceElementType {
		return reject(8, ErrEndpointTypeMismatch, "sourceElementType",
			"source element %q is %s, relationship declares %s", source.ID, source.Type, rel.SourceElementType)
	}
	if target.Type != rel.TargetElementType {
		return reject(8, ErrEndpointTypeMismatch, "targetElementType",
			"target element %q is %s, relationship declares %s", target.ID, target.Type, rel.TargetElementType)
	}

	// 9. endpoint pair
	if !rule.Allows(source.Type, target.Type) {
		return reject(9, ErrEndpointPairNotAllowed, "relationshipType",
			"endpoint pair %s -> %s is not allowed for %s", source.Type, target.Type, rel.Type)
	}

	return nil
}

func (s *RelationshipStore) insert(rel model.Relationship) {
	stored := rel.Clone()
	s.byID[rel.ID] = stored
	addIndex(s.byType, rel.Type, rel.ID)
	addIndex(s.byElement, rel.SourceElementID, rel.ID)
	addIndex(s.byElement, rel.TargetElementID, rel.ID)
	s.dirty = true
}

// RemoveRelationship deletes an edge and its index entries.
func (s *RelationshipStore) RemoveRelationship(id string) error {
	if s.frozen {
		return ErrFrozen
	}
	rel, ok := s.byID[id]
	if !ok {
		return &InsertError{
			Code:    ErrRelationshipNotFound,
			ID:      id,
			Field:   "id",
			Message: "relationship not found",
		}
	}
	delete(s.byID, id)
	removeIndex(s.byType, rel.Type, id)
	removeIndex(s.byElement, rel.SourceElementID, id)
	removeIndex(s.byElement, rel.TargetElementID, id)
	s.dirty = true
	return nil
}

// GetRelationshipByID returns a copy of one relationship.
func (s *RelationshipStore) GetRelationshipByID(id string) (model.Relationship, bool) {
	rel, ok := s.byID[id]
	if !ok {
		return model.Relationship{}, false
	}
	return rel.Clone(), true
}

// GetRelationshipsByType returns every edge of a type, sorted by id.
func (s *RelationshipStore) GetRelationshipsByType(rt model.RelationshipType) []model.Relationship {
	return s.collect(s.byType[rt], nil)
}

// GetRelationshipsForElement returns every edge touching id, either direction.
func (s *RelationshipStore) GetRelationshipsForElement(id string) []model.Relationship {
	return s.collect(s.byElement[id], nil)
}

// GetOutgoingRelationships returns edges whose source is id.
func (s *RelationshipStore) GetOutgoingRelationships(id string) []model.Relationship {
	return s.collect(s.byElement[id], func(r model.Relationship) bool {
		return r.SourceElementID == id
	})
}

// GetIncomingRelationships returns edges whose target is id.
func (s *RelationshipStore) GetIncomingRelationships(id string) []model.Relationship {
	return s.collect(s.byElement[id], func(r model.Relationship) bool {
		return r.TargetElementID == id
	})
}

// GetAllRelationships returns every edge sorted by id.
func (s *RelationshipStore) GetAllRelationships() []model.Relationship {
	out := make([]model.Relationship, 0, len(s.byID))
	for _, id := range sortedKeys(s.byID) {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len returns the number of stored edges.
func (s *RelationshipStore) Len() int {
	return len(s.byID)
}

// Revision is the committed revision of this store.
func (s *RelationshipStore) Revision() int64 {
	return s.revision
}

func (s *RelationshipStore) collect(ids map[string]struct{}, keep func(model.Relationship) bool) []model.Relationship {
	out := make([]model.Relationship, 0, len(ids))
	for _, id := range sortedKeys(ids) {
		rel := s.byID[id]
		if keep != nil && !keep(rel) {
			continue
		}
		out = append(out, rel.Clone())
	}
	return out
}

func (s *RelationshipStore) clone(elements ElementLookup) *RelationshipStore {
	cp := NewRelationshipStore(elements, s.table)
	cp.revision = s.revision
	for id, rel := range s.byID {
		cp.byID[id] = rel.Clone()
	}
	for k, ids := range s.byType {
		cp.byType[k] = cloneSet(ids)
	}
	for k, ids := range s.byElement {
		cp.byElement[k] = cloneSet(ids)
	}
	return cp
}

func (s *RelationshipStore) commit() {
	if s.dirty {
		s.revision++
		s.dirty = false
	}
	s.frozen = true
}

func addIndex[K comparable](index map[K]map[string]struct{}, key K, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeIndex[K comparable](index map[K]map[string]struct{}, key K, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}
