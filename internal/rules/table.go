package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/eagraph/internal/model"
)

// Pair is one explicitly allowed (source type, target type) combination.
type Pair struct {
	From model.ElementType `json:"from"`
	To   model.ElementType `json:"to"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s->%s", p.From, p.To)
}

// EndpointRule lists the element types a relationship type may connect.
//
// When Pairs is non-empty it is authoritative and the From x To product
// is not consulted.
type EndpointRule struct {
	From  []model.ElementType `json:"from"`
	To    []model.ElementType `json:"to"`
	Pairs []Pair              `json:"pairs,omitempty"`
}

// Allows reports whether an edge from -> to satisfies the rule.
func (r EndpointRule) Allows(from, to model.ElementType) bool {
	if len(r.Pairs) > 0 {
		return slices.Contains(r.Pairs, Pair{From: from, To: to})
	}
	return slices.Contains(r.From, from) && slices.Contains(r.To, to)
}

func (r EndpointRule) clone() EndpointRule {
	return EndpointRule{
		From:  slices.Clone(r.From),
		To:    slices.Clone(r.To),
		Pairs: slices.Clone(r.Pairs),
	}
}

// Table maps relationship types to their endpoint rules.
// A Table is immutable once built and safe for concurrent reads.
type Table struct {
	rules map[model.RelationshipType]EndpointRule
	types []model.RelationshipType
}

// NewTable validates rules and builds a Table.
// Returns ValidationErrors listing every problem found.
func NewTable(rules map[model.RelationshipType]EndpointRule) (*Table, error) {
	t := &Table{rules: make(map[model.RelationshipType]EndpointRule, len(rules))}
	var errs ValidationErrors
	for rt, rule := range rules {
		errs = append(errs, validateRule(rt, rule)...)
		t.rules[rt] = rule.clone()
		t.types = append(t.types, rt)
	}
	if len(t.rules) == 0 {
		errs = append(errs, ValidationError{
			Field:   "relationship",
			Message: "rule table has no relationship types",
			Code:    ErrEmptyTable,
		})
	}
	if len(errs) > 0 {
		errs.sort()
		return nil, errs
	}
	slices.Sort(t.types)
	return t, nil
}

// Lookup returns the rule for a relationship type.
func (t *Table) Lookup(rt model.RelationshipType) (EndpointRule, bool) {
	rule, ok := t.rules[rt]
	if !ok {
		return EndpointRule{}, false
	}
	return rule.clone(), true
}

// Known reports whether the relationship type has a rule.
func (t *Table) Known(rt model.RelationshipType) bool {
	_, ok := t.rules[rt]
	return ok
}

// Allows reports whether rt may connect from -> to.
// Unknown relationship types are never allowed.
func (t *Table) Allows(rt model.RelationshipType, from, to model.ElementType) bool {
	rule, ok := t.rules[rt]
	if !ok {
		return false
	}
	return rule.Allows(from, to)
}

// Types returns the known relationship types in sorted order.
func (t *Table) Types() []model.RelationshipType {
	return slices.Clone(t.types)
}

// Len returns the number of relationship types.
func (t *Table) Len() int {
	return len(t.types)
}

// AllowedPairs expands a rule into the concrete pairs it accepts.
func (t *Table) AllowedPairs(rt model.RelationshipType) []Pair {
	rule, ok := t.rules[rt]
	if !ok {
		return nil
	}
	if len(rule.Pairs) > 0 {
		return slices.Clone(rule.Pairs)
	}
	pairs := make([]Pair, 0, len(rule.From)*len(rule.To))
	for _, from := range rule.From {
		for _, to := range rule.To {
			pairs = append(pairs, Pair{From: from, To: to})
		}
	}
	return pairs
}

// String renders one line per relationship type.
func (t *Table) String() string {
	var b strings.Builder
	for _, rt := range t.types {
		rule := t.rules[rt]
		fmt.Fprintf(&b, "%s: %s -> %s", rt, joinTypes(rule.From), joinTypes(rule.To))
		if len(rule.Pairs) > 0 {
			parts := make([]string, len(rule.Pairs))
			for i, p := range rule.Pairs {
				parts[i] = p.String()
			}
			fmt.Fprintf(&b, " pairs [%s]", strings.Join(parts, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func joinTypes(types []model.ElementType) string {
	parts := make([]string, len(types))
	for i, et := range types {
		parts[i] = string(et)
	}
	return strings.Join(parts, ",")
}
