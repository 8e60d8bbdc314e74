package baseline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
)

// Error codes for rejected baseline requests.
const (
	ErrNameRequired = "B101"
	ErrDuplicateID  = "B102"
	ErrCapture      = "B103"
)

// ErrDigestMismatch is returned by Verify when content no longer matches.
var ErrDigestMismatch = errors.New("baseline digest mismatch")

// RequestError rejects a CreateBaseline request.
type RequestError struct {
	Code    string
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// IsRequestError reports whether err is a rejected request.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// Source stamps the store revisions a baseline was captured at.
type Source struct {
	ElementsRevision      int64 `json:"elementsRevision"`
	RelationshipsRevision int64 `json:"relationshipsRevision"`
}

// Baseline is an immutable, point-in-time copy of a graph, including
// tombstoned elements and every stored relationship.
type Baseline struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	CreatedBy     string               `json:"createdBy,omitempty"`
	Source        Source               `json:"source"`
	Elements      []model.Element      `json:"elements"`
	Relationships []model.Relationship `json:"relationships"`
	Digest        string               `json:"digest"`
}

// Clone returns a deep copy.
func (b *Baseline) Clone() *Baseline {
	cp := *b
	cp.Elements = make([]model.Element, len(b.Elements))
	for i, el := range b.Elements {
		cp.Elements[i] = el.Clone()
	}
	cp.Relationships = make([]model.Relationship, len(b.Relationships))
	for i, rel := range b.Relationships {
		cp.Relationships[i] = rel.Clone()
	}
	return &cp
}

// Verify recomputes the digest over the captured content.
func (b *Baseline) Verify() error {
	digest, err := computeDigest(b.Elements, b.Relationships)
	if err != nil {
		return err
	}
	if digest != b.Digest {
		return fmt.Errorf("%w: baseline %s has %s, content hashes to %s", ErrDigestMismatch, b.ID, b.Digest, digest)
	}
	return nil
}

// Request describes a baseline to capture. ID is generated when empty.
type Request struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
}

// Store is an append-only set of baselines. Every value handed in or out is
// a deep copy; the store's own copies are never exposed.
type Store struct {
	mu        sync.RWMutex
	baselines map[string]*Baseline
	order     []string
	ids       IDGenerator
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the id source. Default is UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) { s.ids = ids }
}

// WithClock sets the creation time source. Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		baselines: make(map[string]*Baseline),
		ids:       UUIDv7Generator{},
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBaseline captures view. The returned baseline is the caller's own
// copy.
func (s *Store) CreateBaseline(view graph.View, req Request) (*Baseline, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &RequestError{Code: ErrNameRequired, Field: "name", Message: "baseline name is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id == "" {
		id = s.ids.Generate()
	}
	if _, dup := s.baselines[id]; dup {
		return nil, &RequestError{Code: ErrDuplicateID, Field: "id", Message: fmt.Sprintf("baseline %q already exists", id)}
	}

	b := &Baseline{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   s.now().UTC(),
		CreatedBy:   req.CreatedBy,
		Source: Source{
			ElementsRevision:      view.ElementsRevision(),
			RelationshipsRevision: view.RelationshipsRevision(),
		},
		Elements:      view.AllElements(),
		Relationships: view.GetAllRelationships(),
	}
	digest, err := computeDigest(b.Elements, b.Relationships)
	if err != nil {
		return nil, &RequestError{Code: ErrCapture, Field: "content", Message: err.Error()}
	}
	b.Digest = digest

	s.baselines[id] = b
	s.order = append(s.order, id)
	s.logger.Info("baseline created",
		zap.String("id", id),
		zap.String("name", b.Name),
		zap.Int("elements", len(b.Elements)),
		zap.Int("relationships", len(b.Relationships)),
		zap.String("digest", digest))

	return b.Clone(), nil
}

// ListBaselines returns copies of every baseline in creation order.
func (s *Store) ListBaselines() []*Baseline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Baseline, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.baselines[id].Clone())
	}
	return out
}

// GetBaselineByID returns a copy of one baseline.
func (s *Store) GetBaselineByID(id string) (*Baseline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Len returns the number of baselines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
