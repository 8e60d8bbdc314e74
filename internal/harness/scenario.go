package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eagraph/internal/governance"
)

// Scenario is a governance conformance test. It seeds a repository, drives
// it through a flow of mutations and asserts on the outcome of each step and
// on the final graph.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is an optional CUE endpoint table, relative to the scenario file.
	// Empty means the built-in table.
	Rules string `yaml:"rules,omitempty"`

	// Policy is the governance policy the flow runs under.
	Policy PolicySpec `yaml:"policy,omitempty"`

	// Setup ops are committed as one Advisory update before the flow.
	// They must pass the store's structural checks.
	Setup []Op `yaml:"setup,omitempty"`

	// Flow is the sequence of repository operations under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked against the final repository state.
	Assertions []Assertion `yaml:"assertions"`
}

// PolicySpec is the YAML form of governance.Policy. Empty fields keep the
// default policy.
type PolicySpec struct {
	Mode              string `yaml:"mode,omitempty"`
	LifecycleCoverage string `yaml:"lifecycle_coverage,omitempty"`
}

// Resolve returns the governance policy.
func (p PolicySpec) Resolve() (governance.Policy, error) {
	policy := governance.DefaultPolicy()
	if p.Mode != "" {
		mode, err := governance.ParseMode(p.Mode)
		if err != nil {
			return policy, err
		}
		policy.Mode = mode
	}
	if p.LifecycleCoverage != "" {
		cov, err := governance.ParseLifecycleCoverage(p.LifecycleCoverage)
		if err != nil {
			return policy, err
		}
		policy.LifecycleCoverage = cov
	}
	return policy, nil
}

// Op is one graph mutation.
type Op struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// ID is the element or relationship id.
	ID string `yaml:"id"`

	// Type is the element type (add_element) or relationship type
	// (add_relationship).
	Type string `yaml:"type,omitempty"`

	// From and To are relationship endpoints. Endpoint types are taken from
	// the stored elements unless FromType or ToType is given.
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to,omitempty"`
	FromType string `yaml:"from_type,omitempty"`
	ToType   string `yaml:"to_type,omitempty"`

	// Attributes of a new element or relationship.
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// Key and Value are used by set_attribute.
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Op names.
const (
	OpAddElement         = "add_element"
	OpAddRelationship    = "add_relationship"
	OpRemoveRelationship = "remove_relationship"
	OpTombstone          = "tombstone"
	OpSetAttribute       = "set_attribute"
)

// FlowStep is one repository call.
type FlowStep struct {
	// Invoke is one of the Invoke* constants.
	Invoke string `yaml:"invoke"`

	// Ops are applied to one candidate graph (update only).
	Ops []Op `yaml:"ops,omitempty"`

	// Mode is the new governance mode (set_mode only).
	Mode string `yaml:"mode,omitempty"`

	// Expect checks the step's outcome. Nil means accepted with no further
	// checks.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Invoke names.
const (
	InvokeUpdate  = "update"
	InvokeUndo    = "undo"
	InvokeRedo    = "redo"
	InvokeSetMode = "set_mode"
)

// ExpectClause describes the expected result of a step.
type ExpectClause struct {
	// Outcome is "accepted" or "rejected".
	Outcome string `yaml:"outcome"`

	// ErrorContains are substrings of the rejection message.
	ErrorContains []string `yaml:"error_contains,omitempty"`

	// Findings must be present in the candidate's governance report.
	Findings []FindingRef `yaml:"findings,omitempty"`

	// NoFindings must be absent from the candidate's governance report.
	NoFindings []FindingRef `yaml:"no_findings,omitempty"`
}

// Outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// FindingRef names a finding by code and subject id.
type FindingRef struct {
	Code    string `yaml:"code"`
	Subject string `yaml:"subject"`
}

func (f FindingRef) String() string {
	return fmt.Sprintf("%s on %s", f.Code, f.Subject)
}

// Assertion validates the final repository state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Code and Subject select a finding (finding_present, finding_absent).
	Code    string `yaml:"code,omitempty"`
	Subject string `yaml:"subject,omitempty"`

	// ID selects an element or relationship.
	ID string `yaml:"id,omitempty"`

	// State is "live", "tombstoned" or "absent" for elements and
	// "present" or "absent" for relationships.
	State string `yaml:"state,omitempty"`

	// Debt holds expected counts by name (debt). Unnamed counts are not
	// checked.
	Debt map[string]int `yaml:"debt,omitempty"`

	// Undo and Redo are the expected history depths (history_depth).
	Undo *int `yaml:"undo,omitempty"`
	Redo *int `yaml:"redo,omitempty"`
}

// Assertion types.
const (
	AssertFindingPresent    = "finding_present"
	AssertFindingAbsent     = "finding_absent"
	AssertDebt              = "debt"
	AssertElementState      = "element_state"
	AssertRelationshipState = "relationship_state"
	AssertHistoryDepth      = "history_depth"
)

// Debt count names accepted by the debt assertion.
var debtCounts = map[string]func(governance.Debt) int{
	"mandatory":             func(d governance.Debt) int { return d.MandatoryFindingCount },
	"relationship_errors":   func(d governance.Debt) int { return d.RelationshipErrorCount },
	"relationship_warnings": func(d governance.Debt) int { return d.RelationshipWarningCount },
	"invalid_inserts":       func(d governance.Debt) int { return d.InvalidRelationshipInsertCount },
	"lifecycle_missing":     func(d governance.Debt) int { return d.LifecycleTagMissingCount },
	"total":                 func(d governance.Debt) int { return d.Total },
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the rules path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if _, err := s.Policy.Resolve(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if s.Rules != "" {
		if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
			return fmt.Errorf("rules file not found: %s", s.Rules)
		}
	}

	for i, op := range s.Setup {
		if err := validateOp(op); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateOp(op Op) error {
	switch op.Op {
	case OpAddElement:
		if op.Type == "" {
			return fmt.Errorf("type is required for %s", op.Op)
		}
	case OpAddRelationship:
		if op.Type == "" {
			return fmt.Errorf("type is required for %s", op.Op)
		}
	case OpRemoveRelationship, OpTombstone:
	case OpSetAttribute:
		if op.Key == "" {
			return fmt.Errorf("key is required for %s", op.Op)
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

func validateStep(step FlowStep) error {
	switch step.Invoke {
	case InvokeUpdate:
		if len(step.Ops) == 0 {
			return fmt.Errorf("ops list is required for update")
		}
		for i, op := range step.Ops {
			if err := validateOp(op); err != nil {
				return fmt.Errorf("ops[%d]: %w", i, err)
			}
		}
	case InvokeUndo, InvokeRedo:
		if len(step.Ops) > 0 {
			return fmt.Errorf("ops are not allowed for %s", step.Invoke)
		}
	case InvokeSetMode:
		if _, err := governance.ParseMode(step.Mode); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("invoke is required")
	default:
		return fmt.Errorf("unknown invoke %q", step.Invoke)
	}

	if step.Expect != nil {
		switch step.Expect.Outcome {
		case OutcomeAccepted, OutcomeRejected:
		case "":
			return fmt.Errorf("expect: outcome is required")
		default:
			return fmt.Errorf("expect: unknown outcome %q", step.Expect.Outcome)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFindingPresent, AssertFindingAbsent:
		if a.Code == "" || a.Subject == "" {
			return fmt.Errorf("code and subject are required for %s", a.Type)
		}
	case AssertDebt:
		if len(a.Debt) == 0 {
			return fmt.Errorf("debt is required for %s", a.Type)
		}
		for name := range a.Debt {
			if _, ok := debtCounts[name]; !ok {
				return fmt.Errorf("unknown debt count %q", name)
			}
		}
	case AssertElementState:
		if a.ID == "" {
			return fmt.Errorf("id is required for %s", a.Type)
		}
		switch a.State {
		case "live", "tombstoned", "absent":
		default:
			return fmt.Errorf("state must be live, tombstoned or absent for %s", a.Type)
		}
	case AssertRelationshipState:
		if a.ID == "" {
			return fmt.Errorf("id is required for %s", a.Type)
		}
		switch a.State {
		case "present", "absent":
		default:
			return fmt.Errorf("state must be present or absent for %s", a.Type)
		}
	case AssertHistoryDepth:
		if a.Undo == nil && a.Redo == nil {
			return fmt.Errorf("undo or redo is required for %s", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
