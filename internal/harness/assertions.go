package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/repo"
)

// AssertionContext is the final state assertions run against.
type AssertionContext struct {
	Repo   *repo.Context
	Report *governance.Report
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Findings are the final report's findings, for context.
	Findings []governance.Finding
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Findings) > 0 {
		fmt.Fprintf(&buf, "\nFindings:\n")
		for i, f := range e.Findings {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, f)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFindingPresent:
		return assertFinding(a, actx.Report, true)
	case AssertFindingAbsent:
		return assertFinding(a, actx.Report, false)
	case AssertDebt:
		return assertDebt(a, actx.Report)
	case AssertElementState:
		return assertElementState(a, actx)
	case AssertRelationshipState:
		return assertRelationshipState(a, actx)
	case AssertHistoryDepth:
		return assertHistoryDepth(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertFinding(a Assertion, report *governance.Report, present bool) error {
	if report.Has(a.Code, a.Subject) == present {
		return nil
	}
	expected := fmt.Sprintf("finding %s on %s", a.Code, a.Subject)
	actual := "not reported"
	if !present {
		expected = "no " + expected
		actual = "reported"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   actual,
		Findings: report.Findings(),
	}
}

func assertDebt(a Assertion, report *governance.Report) error {
	var mismatches []string
	for _, name := range sortedDebtNames(a.Debt) {
		want := a.Debt[name]
		got := debtCounts[name](report.Debt)
		if got != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%d (want %d)", name, got, want))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertDebt,
		Expected: fmt.Sprintf("debt %v", a.Debt),
		Actual:   strings.Join(mismatches, ", "),
		Findings: report.Findings(),
	}
}

func assertElementState(a Assertion, actx *AssertionContext) error {
	actual := "absent"
	if el, ok := actx.Repo.Current().GetElementByID(a.ID); ok {
		actual = "live"
		if !el.Live() {
			actual = "tombstoned"
		}
	}
	if actual == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertElementState,
		Expected: fmt.Sprintf("element %s %s", a.ID, a.State),
		Actual:   actual,
	}
}

func assertRelationshipState(a Assertion, actx *AssertionContext) error {
	actual := "absent"
	if _, ok := actx.Repo.Current().GetRelationshipByID(a.ID); ok {
		actual = "present"
	}
	if actual == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertRelationshipState,
		Expected: fmt.Sprintf("relationship %s %s", a.ID, a.State),
		Actual:   actual,
	}
}

func assertHistoryDepth(a Assertion, actx *AssertionContext) error {
	undo, redo := actx.Repo.HistoryDepth()
	if (a.Undo == nil || *a.Undo == undo) && (a.Redo == nil || *a.Redo == redo) {
		return nil
	}
	return &AssertionError{
		Type:     AssertHistoryDepth,
		Expected: fmt.Sprintf("undo=%s redo=%s", optInt(a.Undo), optInt(a.Redo)),
		Actual:   fmt.Sprintf("undo=%d redo=%d", undo, redo),
	}
}

func optInt(p *int) string {
	if p == nil {
		return "any"
	}
	return fmt.Sprint(*p)
}

func sortedDebtNames(debt map[string]int) []string {
	return slices.Sorted(maps.Keys(debt))
}
