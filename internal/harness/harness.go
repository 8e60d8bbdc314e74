package harness

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/gate"
	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/repo"
	"github.com/roach88/eagraph/internal/rules"
	"github.com/roach88/eagraph/internal/testutil"
)

// Harness executes one scenario against a fresh repository context.
type Harness struct {
	repo   *repo.Context
	gate   *gate.Gate
	logger *zap.Logger
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger handed to the gate and repository.
// Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in its own repository context with a deterministic
// clock, so traces are reproducible. Execution order:
//  1. Load the rule table and resolve the policy
//  2. Commit the setup ops as one Advisory update
//  3. Execute flow steps, checking each expect clause
//  4. Evaluate assertions against the final graph
//
// An error is returned only when the scenario cannot be executed at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	table := rules.Default()
	if scenario.Rules != "" {
		var err error
		if table, err = rules.Load(scenario.Rules); err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
	}
	policy, err := scenario.Policy.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve policy: %w", err)
	}

	logger := o.logger.With(zap.String("scenario", scenario.Name))
	g := gate.New(policy, gate.WithTable(table), gate.WithLogger(logger))
	clock := testutil.NewDeterministicClock()
	rc := repo.New(g,
		repo.WithTable(table),
		repo.WithLogger(logger),
		repo.WithClock(clock.Now))
	defer rc.Close()

	h := &Harness{repo: rc, gate: g, logger: logger}

	if err := h.executeSetup(scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		h.executeStep(i, step, result)
	}

	result.Final = g.Evaluate(rc.Current())
	actx := &AssertionContext{Repo: rc, Report: result.Final}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup commits all setup ops in one update with the gate switched to
// Advisory, so a partial estate can be seeded.
func (h *Harness) executeSetup(setup []Op) error {
	if len(setup) == 0 {
		return nil
	}
	mode := h.gate.Policy().Mode
	h.repo.SetMode(governance.Advisory)
	defer h.repo.SetMode(mode)

	res := h.repo.Update(func(g *graph.Graph) error {
		for i, op := range setup {
			if err := applyOp(g, op); err != nil {
				return fmt.Errorf("setup[%d] %s: %w", i, describeOp(op), err)
			}
		}
		return nil
	})
	if !res.OK {
		return errors.New(res.Error)
	}
	h.logger.Debug("setup committed", zap.Int("ops", len(setup)))
	return nil
}

// stepOutcome is what one flow step produced.
type stepOutcome struct {
	accepted bool
	err      string
	report   *governance.Report
}

func (h *Harness) executeStep(i int, step FlowStep, result *Result) {
	event := TraceEvent{Invoke: step.Invoke}
	var out stepOutcome

	switch step.Invoke {
	case InvokeUpdate:
		for _, op := range step.Ops {
			event.Ops = append(event.Ops, describeOp(op))
		}
		res := h.repo.Update(func(g *graph.Graph) error {
			for j, op := range step.Ops {
				if err := applyOp(g, op); err != nil {
					return fmt.Errorf("ops[%d] %s: %w", j, describeOp(op), err)
				}
			}
			return nil
		})
		out = stepOutcome{accepted: res.OK, err: res.Error, report: res.Report}
	case InvokeUndo:
		out.accepted = h.repo.Undo()
	case InvokeRedo:
		out.accepted = h.repo.Redo()
	case InvokeSetMode:
		mode, err := governance.ParseMode(step.Mode)
		if err != nil {
			out.err = err.Error()
			break
		}
		h.repo.SetMode(mode)
		event.Mode = string(mode)
		out.accepted = true
	}

	event.Outcome = OutcomeRejected
	if out.accepted {
		event.Outcome = OutcomeAccepted
	}
	event.Error = out.err
	if out.report != nil {
		total := out.report.Debt.Total
		event.Debt = &total
	}
	current := h.repo.Current()
	event.ElementsRevision = current.ElementsRevision()
	event.RelationshipsRevision = current.RelationshipsRevision()
	result.AddTrace(event)

	for _, msg := range checkExpect(step.Expect, out) {
		result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
	}

	h.logger.Debug("flow step completed",
		zap.Int("step", i),
		zap.String("invoke", step.Invoke),
		zap.String("outcome", event.Outcome))
}

func checkExpect(expect *ExpectClause, out stepOutcome) []string {
	want := OutcomeAccepted
	if expect != nil {
		want = expect.Outcome
	}

	var errs []string
	got := OutcomeRejected
	if out.accepted {
		got = OutcomeAccepted
	}
	if got != want {
		msg := fmt.Sprintf("expected %s, got %s", want, got)
		if out.err != "" {
			msg += ": " + out.err
		}
		errs = append(errs, msg)
	}
	if expect == nil {
		return errs
	}

	for _, sub := range expect.ErrorContains {
		if !strings.Contains(out.err, sub) {
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", sub, out.err))
		}
	}

	if len(expect.Findings)+len(expect.NoFindings) > 0 && out.report == nil {
		errs = append(errs, "finding expectations need a governance report, but none was produced")
		return errs
	}
	for _, f := range expect.Findings {
		if !out.report.Has(f.Code, f.Subject) {
			errs = append(errs, fmt.Sprintf("expected finding %s", f))
		}
	}
	for _, f := range expect.NoFindings {
		if out.report.Has(f.Code, f.Subject) {
			errs = append(errs, fmt.Sprintf("unexpected finding %s", f))
		}
	}
	return errs
}

// applyOp performs one mutation on a candidate graph.
func applyOp(g *graph.Graph, op Op) error {
	switch op.Op {
	case OpAddElement:
		attrs, err := toObject(op.Attributes)
		if err != nil {
			return err
		}
		return g.AddElement(model.Element{
			ID:         op.ID,
			Type:       model.ElementType(op.Type),
			Status:     model.Live,
			Attributes: attrs,
		})

	case OpAddRelationship:
		attrs, err := toObject(op.Attributes)
		if err != nil {
			return err
		}
		rel := model.Relationship{
			ID:                op.ID,
			Type:              model.RelationshipType(op.Type),
			SourceElementID:   op.From,
			SourceElementType: endpointType(g, op.From, op.FromType),
			TargetElementID:   op.To,
			TargetElementType: endpointType(g, op.To, op.ToType),
			Direction:         model.Outgoing,
		}
		if len(attrs) > 0 {
			rel.Attributes = attrs
		}
		return g.AddRelationship(rel)

	case OpRemoveRelationship:
		return g.RemoveRelationship(op.ID)

	case OpTombstone:
		return g.Tombstone(op.ID)

	case OpSetAttribute:
		v, err := model.FromAny(op.Value)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		return g.SetAttribute(op.ID, op.Key, v)
	}
	return fmt.Errorf("unknown op %q", op.Op)
}

// endpointType prefers an explicit type, then the stored element's type.
func endpointType(g *graph.Graph, id, explicit string) model.ElementType {
	if explicit != "" {
		return model.ElementType(explicit)
	}
	if el, ok := g.GetElementByID(id); ok {
		return el.Type
	}
	return ""
}

func toObject(attrs map[string]any) (model.Object, error) {
	obj := make(model.Object, len(attrs))
	for k, v := range attrs {
		val, err := model.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		obj[k] = val
	}
	return obj, nil
}

// describeOp renders an op for traces and error messages.
func describeOp(op Op) string {
	switch op.Op {
	case OpAddElement:
		return fmt.Sprintf("%s %s %s", op.Op, op.Type, op.ID)
	case OpAddRelationship:
		return fmt.Sprintf("%s %s %s(%s -> %s)", op.Op, op.ID, op.Type, op.From, op.To)
	case OpSetAttribute:
		return fmt.Sprintf("%s %s.%s", op.Op, op.ID, op.Key)
	}
	return fmt.Sprintf("%s %s", op.Op, op.ID)
}
