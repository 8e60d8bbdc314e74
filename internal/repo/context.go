package repo

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/gate"
	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/rules"
	"github.com/roach88/eagraph/internal/snapshot"
)

// DefaultHistoryLimit bounds each of the undo and redo stacks.
const DefaultHistoryLimit = 50

// ErrCommittedCandidate is returned for a candidate that was already committed.
var ErrCommittedCandidate = errors.New("candidate graph is already committed")

// Cause says why the current graph changed.
type Cause string

const (
	CauseUpdate Cause = "update"
	CauseUndo   Cause = "undo"
	CauseRedo   Cause = "redo"
)

// Change is delivered to observers after every swap.
type Change struct {
	Cause                 Cause
	ElementsRevision      int64
	RelationshipsRevision int64
}

// Observer receives changes synchronously, after the swap and outside the
// context's lock. Observers may read Current.
type Observer func(Change)

// Result is the outcome of a mutation attempt.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	// Report is the governance report of the candidate, when one was evaluated.
	Report *governance.Report `json:"-"`
}

func failed(err error) Result {
	return Result{OK: false, Error: err.Error()}
}

// Context owns one repository's graph. The current graph is replaced only by
// a candidate that passes the gate; readers never observe a partial edit.
//
// Lifecycle: New (empty graph) -> mutate via Update/TrySetGraph -> Close.
type Context struct {
	mu      sync.Mutex
	current *graph.Graph
	gate    *gate.Gate
	table   *rules.Table
	logger  *zap.Logger
	clock   func() time.Time
	limit   int

	undo [][]byte
	redo [][]byte

	observers    map[int]Observer
	nextObserver int
}

// Option configures a Context.
type Option func(*Context)

// WithHistoryLimit bounds the undo and redo stacks. Values below 1 disable history.
func WithHistoryLimit(n int) Option {
	return func(c *Context) { c.limit = n }
}

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// WithTable sets the rule table for the repository's graphs.
func WithTable(table *rules.Table) Option {
	return func(c *Context) { c.table = table }
}

// WithClock sets the time source stamped on history entries.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.clock = now }
}

// New creates a context holding an empty committed graph. A nil gate means
// a Strict gate with As-Is coverage.
func New(g *gate.Gate, opts ...Option) *Context {
	c := &Context{
		gate:      g,
		logger:    zap.NewNop(),
		clock:     time.Now,
		limit:     DefaultHistoryLimit,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = gate.New(governance.DefaultPolicy(), gate.WithLogger(c.logger))
	}
	if c.table == nil {
		c.table = rules.Default()
	}
	c.current = graph.New(c.table)
	c.current.Commit()
	return c
}

// Current returns the committed graph. It is frozen; mutating it fails.
func (c *Context) Current() graph.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Candidate returns a mutable clone of the current graph.
func (c *Context) Candidate() *graph.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// Gate returns the repository's gate.
func (c *Context) Gate() *gate.Gate {
	return c.gate
}

// Policy returns the current governance policy.
func (c *Context) Policy() governance.Policy {
	return c.gate.Policy()
}

// SetMode changes the repository's governance mode.
func (c *Context) SetMode(mode governance.Mode) {
	c.gate.SetMode(mode)
}

// TrySetGraph gates candidate and, if accepted, makes it current.
// On rejection the current graph and history are unchanged.
func (c *Context) TrySetGraph(candidate *graph.Graph) Result {
	c.mu.Lock()
	result, change := c.trySet(candidate)
	observers := c.snapshotObservers(result.OK)
	c.mu.Unlock()

	notify(observers, change)
	return result
}

// Update clones the current graph, applies fn and gates the result.
// An error from fn aborts the update.
func (c *Context) Update(fn func(*graph.Graph) error) Result {
	c.mu.Lock()
	candidate := c.current.Clone()
	if err := fn(candidate); err != nil {
		c.mu.Unlock()
		return failed(err)
	}
	result, change := c.trySet(candidate)
	observers := c.snapshotObservers(result.OK)
	c.mu.Unlock()

	notify(observers, change)
	return result
}

// trySet requires c.mu.
func (c *Context) trySet(candidate *graph.Graph) (Result, Change) {
	if candidate == nil {
		return failed(errors.New("candidate graph is nil")), Change{}
	}
	if candidate.Committed() {
		return failed(ErrCommittedCandidate), Change{}
	}
	// A candidate cloned from an older current must still land after it.
	if candidate.ElementsRevision() != c.current.ElementsRevision() ||
		candidate.RelationshipsRevision() != c.current.RelationshipsRevision() {
		if err := candidate.ContinueFrom(c.current); err != nil {
			return failed(err), Change{}
		}
	}

	decision := c.gate.Check(candidate)
	if !decision.Accepted {
		return Result{OK: false, Error: decision.Err.Error(), Report: decision.Report}, Change{}
	}

	entry, err := c.encode(c.current)
	if err != nil {
		return failed(fmt.Errorf("record history: %w", err)), Change{}
	}

	candidate.Commit()
	c.undo = c.push(c.undo, entry)
	c.redo = nil
	c.current = candidate
	c.logger.Debug("graph swapped",
		zap.Int64("elementsRevision", candidate.ElementsRevision()),
		zap.Int64("relationshipsRevision", candidate.RelationshipsRevision()))

	return Result{OK: true, Report: decision.Report}, c.change(CauseUpdate)
}

// Undo restores the previous graph. It returns false when there is nothing
// to undo, the entry cannot be decoded or the gate rejects it; in each of
// those cases history is unchanged.
func (c *Context) Undo() bool {
	return c.step(CauseUndo)
}

// Redo re-applies the most recently undone graph.
func (c *Context) Redo() bool {
	return c.step(CauseRedo)
}

func (c *Context) step(cause Cause) bool {
	c.mu.Lock()
	from, to := &c.undo, &c.redo
	if cause == CauseRedo {
		from, to = &c.redo, &c.undo
	}
	if len(*from) == 0 {
		c.mu.Unlock()
		return false
	}

	entry := (*from)[len(*from)-1]
	restored, err := c.decode(entry)
	if err != nil {
		c.logger.Warn("history entry unreadable", zap.String("cause", string(cause)), zap.Error(err))
		c.mu.Unlock()
		return false
	}
	if err := restored.ContinueFrom(c.current); err != nil {
		c.mu.Unlock()
		return false
	}
	decision := c.gate.Check(restored)
	if !decision.Accepted {
		c.logger.Info("history entry rejected by gate", zap.String("cause", string(cause)), zap.Error(decision.Err))
		c.mu.Unlock()
		return false
	}
	currentEntry, err := c.encode(c.current)
	if err != nil {
		c.logger.Warn("cannot record history", zap.Error(err))
		c.mu.Unlock()
		return false
	}

	restored.Commit()
	*from = (*from)[:len(*from)-1]
	*to = c.push(*to, currentEntry)
	c.current = restored
	change := c.change(cause)
	observers := c.snapshotObservers(true)
	c.mu.Unlock()

	notify(observers, change)
	return true
}

// CanUndo reports whether an undo entry exists.
func (c *Context) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo) > 0
}

// CanRedo reports whether a redo entry exists.
func (c *Context) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.redo) > 0
}

// HistoryDepth returns the sizes of the undo and redo stacks.
func (c *Context) HistoryDepth() (undo, redo int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo), len(c.redo)
}

// Subscribe registers obs and returns a function that removes it.
func (c *Context) Subscribe(obs Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = obs
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Close drops the graph, history and observers. The context is empty
// afterwards and may be reused.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = graph.New(c.table)
	c.current.Commit()
	c.undo, c.redo = nil, nil
	c.observers = make(map[int]Observer)
}

func (c *Context) encode(g graph.View) ([]byte, error) {
	return snapshot.Compress(snapshot.Encode(g, nil, c.clock()))
}

func (c *Context) decode(entry []byte) (*graph.Graph, error) {
	doc, err := snapshot.Decompress(entry)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(doc, c.table)
}

func (c *Context) push(stack [][]byte, entry []byte) [][]byte {
	if c.limit < 1 {
		return nil
	}
	stack = append(stack, entry)
	if over := len(stack) - c.limit; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

func (c *Context) change(cause Cause) Change {
	return Change{
		Cause:                 cause,
		ElementsRevision:      c.current.ElementsRevision(),
		RelationshipsRevision: c.current.RelationshipsRevision(),
	}
}

// snapshotObservers copies the observer list in subscription order.
func (c *Context) snapshotObservers(ok bool) []Observer {
	if !ok || len(c.observers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.observers[id])
	}
	return out
}

func notify(observers []Observer, change Change) {
	for _, obs := range observers {
		obs(change)
	}
}
