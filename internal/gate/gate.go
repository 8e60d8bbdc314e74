package gate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/rules"
)

// MaxRejectionMessages caps the messages carried by a RejectionError.
const MaxRejectionMessages = 5

// Outcome labels.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeWarned   = "warned"
)

// RejectionError is returned when Strict mode refuses a candidate.
type RejectionError struct {
	Debt     governance.Debt
	Messages []string
}

func (e *RejectionError) Error() string {
	d := e.Debt
	return fmt.Sprintf("governance rejected candidate (mandatory=%d relationship=%d invalid=%d lifecycle=%d): %s",
		d.MandatoryFindingCount, d.RelationshipErrorCount, d.InvalidRelationshipInsertCount,
		d.LifecycleTagMissingCount, strings.Join(e.Messages, "; "))
}

// IsRejectionError reports whether err is a governance rejection.
func IsRejectionError(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Decision is the gate's verdict on one candidate.
type Decision struct {
	Accepted bool
	Mode     governance.Mode
	Report   *governance.Report

	// Err is a *RejectionError when Accepted is false.
	Err error

	// Warned is set when this check emitted an Advisory warning.
	Warned bool
}

// Gate decides whether a candidate graph may replace the current one.
//
// The gate is per repository. Switching modes takes effect on the next
// Check; there is no intermediate state.
type Gate struct {
	mu       sync.Mutex
	policy   governance.Policy
	table    *rules.Table
	logger   *zap.Logger
	metrics  *Metrics
	seen     map[string]struct{}
	warnings int
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger. Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithTable evaluates candidates against table instead of the table each
// candidate was built with.
func WithTable(table *rules.Table) Option {
	return func(g *Gate) { g.table = table }
}

// New creates a gate with the given policy.
func New(policy governance.Policy, opts ...Option) *Gate {
	g := &Gate{
		policy: policy,
		logger: zap.NewNop(),
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the current governance policy.
func (g *Gate) Policy() governance.Policy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy
}

// SetMode switches between Strict and Advisory.
func (g *Gate) SetMode(mode governance.Mode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.policy.Mode != mode {
		g.logger.Info("governance mode changed",
			zap.String("from", string(g.policy.Mode)),
			zap.String("to", string(mode)))
	}
	g.policy.Mode = mode
}

// SetPolicy replaces the whole policy.
func (g *Gate) SetPolicy(policy governance.Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = policy
}

// WarningCount returns how many Advisory warnings have been emitted.
func (g *Gate) WarningCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.warnings
}

// Evaluate runs governance under the current policy without deciding.
func (g *Gate) Evaluate(view graph.View) *governance.Report {
	g.mu.Lock()
	policy, table := g.policy, g.table
	g.mu.Unlock()
	return governance.Evaluate(view, table, policy)
}

// Check evaluates view and decides.
//
// Strict rejects when the debt is blocking and carries the first
// MaxRejectionMessages error messages. Advisory always accepts and warns
// at most once per distinct debt signature.
func (g *Gate) Check(view graph.View) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	report := governance.Evaluate(view, g.table, g.policy)
	decision := Decision{Accepted: true, Mode: g.policy.Mode, Report: report}
	outcome := OutcomeAccepted

	switch g.policy.Mode {
	case governance.Advisory:
		if report.Debt.Total > 0 {
			sig := report.Debt.Signature()
			if _, dup := g.seen[sig]; !dup {
				g.seen[sig] = struct{}{}
				g.warnings++
				decision.Warned = true
				outcome = OutcomeWarned
				g.logger.Warn("governance debt present",
					zap.String("signature", sig),
					zap.Int("total", report.Debt.Total),
					zap.Int("mandatory", report.Debt.MandatoryFindingCount),
					zap.Int("relationshipErrors", report.Debt.RelationshipErrorCount),
					zap.Int("relationshipWarnings", report.Debt.RelationshipWarningCount),
					zap.Int("invalidInserts", report.Debt.InvalidRelationshipInsertCount),
					zap.Int("lifecycleMissing", report.Debt.LifecycleTagMissingCount))
				if g.metrics != nil {
					g.metrics.AdvisoryWarnings.Inc()
				}
			}
		}
	default:
		if report.Debt.Blocking() {
			rejection := &RejectionError{Debt: report.Debt, Messages: firstMessages(report, MaxRejectionMessages)}
			decision.Accepted = false
			decision.Err = rejection
			outcome = OutcomeRejected
			g.logger.Info("candidate rejected",
				zap.String("signature", report.Debt.Signature()),
				zap.Strings("messages", rejection.Messages))
		}
	}

	if g.metrics != nil {
		g.metrics.observe(g.policy.Mode, outcome, report.Debt)
	}
	return decision
}

func firstMessages(report *governance.Report, n int) []string {
	errs := report.Errors()
	if len(errs) > n {
		errs = errs[:n]
	}
	out := make([]string, 0, len(errs))
	for _, f := range errs {
		out = append(out, fmt.Sprintf("[%s] %s", f.Code, f.Message))
	}
	return out
}
