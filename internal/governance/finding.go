package governance

import (
	"fmt"
	"io"
	"strings"
)

// Finding codes, grouped by category.
const (
	// Mandatory (G1xx)
	CodeNameMissing           = "G101"
	CodeOwnerMissing          = "G102"
	CodeOwnerUnresolved       = "G103"
	CodeOwnershipCardinality  = "G104"
	CodeDepartmentContainment = "G105"

	// Relationship (G2xx)
	CodeServiceUnrealized     = "G201"
	CodeCapabilityUnsupported = "G202"
	CodeServiceProvider       = "G203"
	CodeCrossLayerEdge        = "G204"
	CodeTombstonedEndpoint    = "G205"

	// Invalid insert (G3xx)
	CodeRevalidationFailed = "G301"

	// Lifecycle (G4xx)
	CodeLifecycleMissing = "G401"
)

// Category groups findings for debt accounting.
type Category string

const (
	CategoryMandatory     Category = "mandatory"
	CategoryRelationship  Category = "relationship"
	CategoryInvalidInsert Category = "invalid-insert"
	CategoryLifecycle     Category = "lifecycle"
)

// Severity of a finding. Only Error findings can block in Strict mode.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
)

// Finding is one governance rule violation.
type Finding struct {
	Code           string   `json:"code"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	ElementID      string   `json:"elementId,omitempty"`
	RelationshipID string   `json:"relationshipId,omitempty"`
	Message        string   `json:"message"`
}

// Subject is the id the finding is about.
func (f Finding) Subject() string {
	if f.RelationshipID != "" {
		return f.RelationshipID
	}
	return f.ElementID
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", f.Code, f.Severity, f.Subject(), f.Message)
}

// Debt is the derived count summary of one evaluation.
type Debt struct {
	MandatoryFindingCount          int `json:"mandatoryFindingCount"`
	RelationshipErrorCount         int `json:"relationshipErrorCount"`
	RelationshipWarningCount       int `json:"relationshipWarningCount"`
	InvalidRelationshipInsertCount int `json:"invalidRelationshipInsertCount"`
	LifecycleTagMissingCount       int `json:"lifecycleTagMissingCount"`
	Total                          int `json:"total"`
}

// Signature is a composite key of the five counts.
func (d Debt) Signature() string {
	return fmt.Sprintf("%d:%d:%d:%d:%d",
		d.MandatoryFindingCount,
		d.RelationshipErrorCount,
		d.RelationshipWarningCount,
		d.InvalidRelationshipInsertCount,
		d.LifecycleTagMissingCount)
}

// Blocking reports whether Strict mode refuses a graph with this debt.
// Relationship warnings never block.
func (d Debt) Blocking() bool {
	return d.MandatoryFindingCount > 0 ||
		d.RelationshipErrorCount > 0 ||
		d.InvalidRelationshipInsertCount > 0 ||
		d.LifecycleTagMissingCount > 0
}

// Report is the full output of one evaluation.
type Report struct {
	Policy           Policy    `json:"policy"`
	Debt             Debt      `json:"debt"`
	Mandatory        []Finding `json:"mandatory"`
	Relationship     []Finding `json:"relationship"`
	InvalidInserts   []Finding `json:"invalidInserts"`
	LifecycleMissing []Finding `json:"lifecycleMissing"`
}

// Findings returns every finding in category order.
func (r *Report) Findings() []Finding {
	out := make([]Finding, 0, r.Debt.Total)
	out = append(out, r.Mandatory...)
	out = append(out, r.Relationship...)
	out = append(out, r.InvalidInserts...)
	out = append(out, r.LifecycleMissing...)
	return out
}

// Errors returns the Error-severity findings in category order.
func (r *Report) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings() {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether a finding with code exists for subject.
func (r *Report) Has(code, subject string) bool {
	for _, f := range r.Findings() {
		if f.Code == code && f.Subject() == subject {
			return true
		}
	}
	return false
}

func (r *Report) add(f Finding) {
	switch f.Category {
	case CategoryMandatory:
		r.Mandatory = append(r.Mandatory, f)
		r.Debt.MandatoryFindingCount++
	case CategoryRelationship:
		r.Relationship = append(r.Relationship, f)
		if f.Severity == SeverityWarning {
			r.Debt.RelationshipWarningCount++
		} else {
			r.Debt.RelationshipErrorCount++
		}
	case CategoryInvalidInsert:
		r.InvalidInserts = append(r.InvalidInserts, f)
		r.Debt.InvalidRelationshipInsertCount++
	case CategoryLifecycle:
		r.LifecycleMissing = append(r.LifecycleMissing, f)
		r.Debt.LifecycleTagMissingCount++
	}
	r.Debt.Total++
}

// Render writes a deterministic plain-text report.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder
	d := r.Debt
	fmt.Fprintf(&b, "governance report (mode=%s, lifecycle=%s)\n", r.Policy.Mode, r.Policy.LifecycleCoverage)
	fmt.Fprintf(&b, "debt: mandatory=%d relationship-errors=%d relationship-warnings=%d invalid-inserts=%d lifecycle-missing=%d total=%d\n",
		d.MandatoryFindingCount, d.RelationshipErrorCount, d.RelationshipWarningCount,
		d.InvalidRelationshipInsertCount, d.LifecycleTagMissingCount, d.Total)

	sections := []struct {
		category Category
		findings []Finding
	}{
		{CategoryMandatory, r.Mandatory},
		{CategoryRelationship, r.Relationship},
		{CategoryInvalidInsert, r.InvalidInserts},
		{CategoryLifecycle, r.LifecycleMissing},
	}
	for _, s := range sections {
		fmt.Fprintf(&b, "\n%s (%d)\n", s.category, len(s.findings))
		for _, f := range s.findings {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
