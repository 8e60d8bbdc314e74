package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/eagraph/internal/model"
)

// ElementStore holds elements grouped by collection, one collection per
// element type. Ids are unique across all collections.
type ElementStore struct {
	collections map[model.ElementType]map[string]model.Element
	byID        map[string]model.ElementType

	revision int64
	dirty    bool
	frozen   bool
}

// NewElementStore creates an empty store at revision 0.
func NewElementStore() *ElementStore {
	return &ElementStore{
		collections: make(map[model.ElementType]map[string]model.Element),
		byID:        make(map[string]model.ElementType),
	}
}

// AddElement inserts an element into a collection.
// An element with an empty Type adopts the collection.
func (s *ElementStore) AddElement(collection model.ElementType, el model.Element) error {
	if s.frozen {
		return ErrFrozen
	}
	if strings.TrimSpace(el.ID) == "" {
		return &ElementError{Code: ErrElementIDEmpty, ID: el.ID, Message: "element id is required"}
	}
	if !collection.Valid() {
		return &ElementError{
			Code:    ErrElementTypeUnknown,
			ID:      el.ID,
			Message: fmt.Sprintf("unknown element collection %q", collection),
		}
	}
	if el.Type == "" {
		el.Type = collection
	}
	if el.Type != collection {
		return &ElementError{
			Code:    ErrElementCollection,
			ID:      el.ID,
			Message: fmt.Sprintf("element type %s does not match collection %s", el.Type, collection),
		}
	}
	if existing, ok := s.byID[el.ID]; ok {
		if existing == collection {
			return &ElementError{
				Code:    ErrElementDuplicate,
				ID:      el.ID,
				Message: fmt.Sprintf("duplicate element id in collection %s", collection),
			}
		}
		return &ElementError{
			Code:    ErrElementIDInUse,
			ID:      el.ID,
			Message: fmt.Sprintf("id is already used by collection %s", existing),
		}
	}

	stored := el.Clone()
	if stored.Attributes == nil {
		stored.Attributes = model.Object{}
	}
	// The wire flag maps onto Status and never stays in the attribute map.
	if _, present := stored.Attributes[model.AttrDeleted]; present {
		deleted, ok := stored.Attributes.GetBool(model.AttrDeleted)
		if !ok {
			return &ElementError{
				Code:    ErrElementReservedAttr,
				ID:      el.ID,
				Message: "deleted must be a bool",
			}
		}
		if deleted {
			stored.Status = model.Tombstoned
		}
		delete(stored.Attributes, model.AttrDeleted)
	}
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]model.Element)
		s.collections[collection] = coll
	}
	coll[el.ID] = stored
	s.byID[el.ID] = collection
	s.dirty = true
	return nil
}

// GetElementByID returns a copy of the element, live or tombstoned.
func (s *ElementStore) GetElementByID(id string) (model.Element, bool) {
	collection, ok := s.byID[id]
	if !ok {
		return model.Element{}, false
	}
	return s.collections[collection][id].Clone(), true
}

// GetElementsByType returns copies of every element in a collection,
// sorted by id. Tombstoned elements are included.
func (s *ElementStore) GetElementsByType(collection model.ElementType) []model.Element {
	coll := s.collections[collection]
	out := make([]model.Element, 0, len(coll))
	for _, id := range sortedKeys(coll) {
		out = append(out, coll[id].Clone())
	}
	return out
}

// All returns copies of every element sorted by id.
func (s *ElementStore) All() []model.Element {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]model.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.collections[s.byID[id]][id].Clone())
	}
	return out
}

// Len returns the number of elements, live or tombstoned.
func (s *ElementStore) Len() int {
	return len(s.byID)
}

// Tombstone marks an element as soft-deleted. Repeating it is a no-op.
func (s *ElementStore) Tombstone(id string) error {
	return s.setStatus(id, model.Tombstoned)
}

// Revive returns a tombstoned element to the live graph.
func (s *ElementStore) Revive(id string) error {
	return s.setStatus(id, model.Live)
}

func (s *ElementStore) setStatus(id string, status model.Status) error {
	if s.frozen {
		return ErrFrozen
	}
	collection, ok := s.byID[id]
	if !ok {
		return &ElementError{Code: ErrElementNotFound, ID: id, Message: "element not found"}
	}
	el := s.collections[collection][id]
	if el.Status == status {
		return nil
	}
	el.Status = status
	s.collections[collection][id] = el
	s.dirty = true
	return nil
}

// SetAttribute replaces one attribute. A nil value removes the key.
func (s *ElementStore) SetAttribute(id, key string, value model.Value) error {
	if s.frozen {
		return ErrFrozen
	}
	if key == model.AttrDeleted {
		return &ElementError{
			Code:    ErrElementReservedAttr,
			ID:      id,
			Message: "deleted is managed through Tombstone and Revive",
		}
	}
	collection, ok := s.byID[id]
	if !ok {
		return &ElementError{Code: ErrElementNotFound, ID: id, Message: "element not found"}
	}
	el := s.collections[collection][id]
	if value == nil {
		delete(el.Attributes, key)
	} else {
		el.Attributes[key] = model.CloneValue(value)
	}
	s.dirty = true
	return nil
}

// Revision is the committed revision of this store.
func (s *ElementStore) Revision() int64 {
	return s.revision
}

func (s *ElementStore) clone() *ElementStore {
	cp := &ElementStore{
		collections: make(map[model.ElementType]map[string]model.Element, len(s.collections)),
		byID:        make(map[string]model.ElementType, len(s.byID)),
		revision:    s.revision,
	}
	for collection, coll := range s.collections {
		cc := make(map[string]model.Element, len(coll))
		for id, el := range coll {
			cc[id] = el.Clone()
		}
		cp.collections[collection] = cc
	}
	for id, collection := range s.byID {
		cp.byID[id] = collection
	}
	return cp
}

func (s *ElementStore) commit() {
	if s.dirty {
		s.revision++
		s.dirty = false
	}
	s.frozen = true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
