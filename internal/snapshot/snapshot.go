package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

// Version is the only document version Decode accepts.
const Version = 1

// Document is the serialized form of one graph.
type Document struct {
	Version       int                   `json:"version"`
	Metadata      map[string]string     `json:"metadata,omitempty"`
	Objects       []model.ElementRecord `json:"objects"`
	Relationships []Relationship        `json:"relationships"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// Relationship is the serialized edge. Endpoint types are not stored;
// they are read back from the objects on decode.
type Relationship struct {
	ID         string                 `json:"id"`
	FromID     string                 `json:"fromId"`
	ToID       string                 `json:"toId"`
	Type       model.RelationshipType `json:"type"`
	Attributes model.Object           `json:"attributes,omitempty"`
}

// Encode captures every element (live and tombstoned) and every stored
// relationship of view, in id order.
func Encode(view graph.View, meta map[string]string, at time.Time) *Document {
	doc := &Document{
		Version:       Version,
		Objects:       []model.ElementRecord{},
		Relationships: []Relationship{},
		UpdatedAt:     at.UTC(),
	}
	if len(meta) > 0 {
		doc.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			doc.Metadata[k] = v
		}
	}
	for _, el := range view.AllElements() {
		doc.Objects = append(doc.Objects, el.Record())
	}
	for _, rel := range view.GetAllRelationships() {
		doc.Relationships = append(doc.Relationships, Relationship{
			ID:         rel.ID,
			FromID:     rel.SourceElementID,
			ToID:       rel.TargetElementID,
			Type:       rel.Type,
			Attributes: rel.Attributes.Clone(),
		})
	}
	return doc
}

// Marshal encodes doc as JSON.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal parses a JSON document and checks its version.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", doc.Version, Version)
	}
	return &doc, nil
}

// Decode rebuilds an uncommitted graph from doc. Every element goes through
// AddElement and every relationship through the restore pipeline, so a
// document that would not pass the stores is rejected.
func Decode(doc *Document, table *rules.Table) (*graph.Graph, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", doc.Version, Version)
	}
	g := graph.New(table)
	for i, rec := range doc.Objects {
		el, err := rec.Element()
		if err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		if err := g.AddElement(el); err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
	}
	for i, r := range doc.Relationships {
		rel, err := toRelationship(g, r)
		if err != nil {
			return nil, fmt.Errorf("relationships[%d]: %w", i, err)
		}
		if err := g.Relationships().Restore(rel); err != nil {
			return nil, fmt.Errorf("relationships[%d]: %w", i, err)
		}
	}
	return g, nil
}

func toRelationship(g *graph.Graph, r Relationship) (model.Relationship, error) {
	rel := model.Relationship{
		ID:              r.ID,
		Type:            r.Type,
		SourceElementID: r.FromID,
		TargetElementID: r.ToID,
		Direction:       model.Outgoing,
		Attributes:      r.Attributes.Clone(),
	}
	if r.FromID != "" {
		source, ok := g.GetElementByID(r.FromID)
		if !ok {
			return rel, fmt.Errorf("relationship %q: source element %q does not exist", r.ID, r.FromID)
		}
		rel.SourceElementType = source.Type
	}
	if r.ToID != "" {
		target, ok := g.GetElementByID(r.ToID)
		if !ok {
			return rel, fmt.Errorf("relationship %q: target element %q does not exist", r.ID, r.ToID)
		}
		rel.TargetElementType = target.Type
	}
	return rel, nil
}
