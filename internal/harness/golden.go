package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/eagraph/internal/model"
)

// TraceSnapshot captures the trace of a scenario execution for golden
// comparison. It is serialized as canonical JSON.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot into plain maps for
// model.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":                    int64(event.Seq),
			"invoke":                 event.Invoke,
			"outcome":                event.Outcome,
			"elements_revision":      event.ElementsRevision,
			"relationships_revision": event.RelationshipsRevision,
		}
		if len(event.Ops) > 0 {
			ops := make([]any, len(event.Ops))
			for j, op := range event.Ops {
				ops[j] = op
			}
			eventMap["ops"] = ops
		}
		if event.Mode != "" {
			eventMap["mode"] = event.Mode
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		if event.Debt != nil {
			eventMap["debt"] = int64(*event.Debt)
		}
		traceList[i] = eventMap
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

// TraceJSON returns the canonical JSON a golden file holds for result.
func TraceJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return model.MarshalCanonical(snapshot.toCanonicalMap())
}
