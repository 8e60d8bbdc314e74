package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func requirePass(t *testing.T, result *Result) {
	t.Helper()
	require.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
}

func TestScenarios(t *testing.T) {
	for _, name := range []string{
		"scenario_a_ownership",
		"scenario_b_support_chain",
		"scenario_c_endpoint_pair",
		"undo_redo_history",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			requirePass(t, result)
		})
	}
}

func TestScenarioATrace(t *testing.T) {
	result, err := Run(loadTestScenario(t, "scenario_a_ownership"))
	require.NoError(t, err)
	requirePass(t, result)

	require.Len(t, result.Trace, 6)
	outcomes := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		outcomes[i] = ev.Outcome
		assert.Equal(t, i+1, ev.Seq)
	}
	assert.Equal(t, []string{
		OutcomeRejected, OutcomeRejected, OutcomeAccepted,
		OutcomeAccepted, OutcomeAccepted, OutcomeAccepted,
	}, outcomes)

	assert.Nil(t, result.Trace[1].Debt, "structural failures never reach the gate")
	require.NotNil(t, result.Trace[0].Debt)
	assert.Equal(t, 2, *result.Trace[0].Debt)
	assert.Equal(t, "Advisory", result.Trace[2].Mode)

	require.NotNil(t, result.Final)
	assert.Equal(t, 1, result.Final.Debt.Total)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:        "wrong",
		Description: "every expectation is wrong",
		Setup: []Op{
			{Op: OpAddElement, ID: "ent-1", Type: "Enterprise", Attributes: map[string]any{"name": "Acme", "ownerId": "ent-1"}},
		},
		Flow: []FlowStep{
			{Invoke: InvokeUpdate, Ops: []Op{
				{Op: OpAddElement, ID: "cap-1", Type: "Capability", Attributes: map[string]any{"name": "Billing", "ownerId": "ent-1"}},
			}},
			{Invoke: InvokeUndo, Expect: &ExpectClause{Outcome: OutcomeRejected}},
			{Invoke: InvokeRedo, Expect: &ExpectClause{
				Outcome:  OutcomeAccepted,
				Findings: []FindingRef{{Code: "G104", Subject: "cap-1"}},
			}},
		},
		Assertions: []Assertion{
			{Type: AssertElementState, ID: "cap-1", State: "live"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "flow[0] update: expected accepted, got rejected: governance rejected candidate")
	assert.Equal(t, "flow[1] undo: expected rejected, got accepted", result.Errors[1])
	assert.Equal(t, "flow[2] redo: finding expectations need a governance report, but none was produced", result.Errors[2])
	assert.Contains(t, result.Errors[3], "assertion 0: Assertion failed: element_state")
	assert.Contains(t, result.Errors[3], "Actual: absent")
}

func TestRunSetupFailure(t *testing.T) {
	s := &Scenario{
		Name:        "bad setup",
		Description: "setup edge to a missing element",
		Setup: []Op{
			{Op: OpAddRelationship, ID: "r", Type: "OWNS", From: "a", To: "b", FromType: "Enterprise", ToType: "Capability"},
		},
		Flow: []FlowStep{{Invoke: InvokeUndo}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
	assert.Contains(t, err.Error(), `source element "a" does not exist`)
}

func TestRunRestoresModeAfterSetup(t *testing.T) {
	s := &Scenario{
		Name:        "strict after setup",
		Description: "setup debt is tolerated, flow debt is not",
		Setup: []Op{
			{Op: OpAddElement, ID: "app-1", Type: "Application"},
		},
		Flow: []FlowStep{
			{Invoke: InvokeUpdate, Ops: []Op{{Op: OpSetAttribute, ID: "app-1", Key: "name", Value: "Ledger"}},
				Expect: &ExpectClause{
					Outcome:       OutcomeRejected,
					ErrorContains: []string{"G102"},
					Findings:      []FindingRef{{Code: "G104", Subject: "app-1"}},
					NoFindings:    []FindingRef{{Code: "G101", Subject: "app-1"}},
				}},
		},
		Assertions: []Assertion{
			{Type: AssertFindingPresent, Code: "G101", Subject: "app-1"},
			{Type: AssertHistoryDepth, Undo: intPtr(1), Redo: intPtr(0)},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRunLogsSteps(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	_, err := Run(loadTestScenario(t, "undo_redo_history"), WithLogger(zap.New(core)))
	require.NoError(t, err)

	steps := logs.FilterMessage("flow step completed").All()
	require.Len(t, steps, 6)
	assert.Equal(t, "undo_redo_history", steps[0].ContextMap()["scenario"])
	assert.Equal(t, 1, logs.FilterMessage("setup committed").Len())
}

func TestApplyOpSetAttributeRejectsFloat(t *testing.T) {
	s := &Scenario{
		Name:        "float",
		Description: "floats are not attribute values",
		Setup: []Op{
			{Op: OpAddElement, ID: "ent-1", Type: "Enterprise", Attributes: map[string]any{"name": "Acme", "ownerId": "ent-1"}},
		},
		Flow: []FlowStep{
			{Invoke: InvokeUpdate, Ops: []Op{{Op: OpSetAttribute, ID: "ent-1", Key: "weight", Value: 1.5}},
				Expect: &ExpectClause{Outcome: OutcomeRejected, ErrorContains: []string{"floats are not allowed"}}},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	requirePass(t, result)
}

func intPtr(n int) *int { return &n }
