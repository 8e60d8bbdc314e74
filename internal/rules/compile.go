package rules

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/eagraph/internal/model"
)

//go:embed schema.cue
var schemaSource string

//go:embed endpoints.cue
var endpointsSource []byte

// CompileError is a CUE-level failure with position info when available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			ErrCUECompile, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", ErrCUECompile, e.Field, e.Message)
}

var defaultTable = sync.OnceValues(func() (*Table, error) {
	return Compile("endpoints.cue", endpointsSource)
})

// Default returns the built-in rule table.
// Panics if the embedded source is invalid, which is a build defect.
func Default() *Table {
	t, err := defaultTable()
	if err != nil {
		panic(fmt.Sprintf("rules: embedded endpoint table is invalid: %v", err))
	}
	return t
}

// Load compiles a rule table from a CUE file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	return Compile(filepath.Base(path), data)
}

// Compile parses CUE source into a Table.
//
// The source is unified with the #Table schema, so element type names are
// checked by CUE before the Go-side structural checks run:
//
//	relationship: {
//		OWNS: {from: ["Enterprise"], to: ["Capability"]}
//	}
func Compile(filename string, src []byte) (*Table, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError("schema", err)
	}

	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError("source", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Table")).Unify(doc)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError("relationship", err)
	}

	relVal := value.LookupPath(cue.ParsePath("relationship"))
	if !relVal.Exists() {
		return nil, ValidationErrors{{
			Field:   "relationship",
			Message: "rule table has no relationship types",
			Code:    ErrEmptyTable,
		}}
	}

	iter, err := relVal.Fields()
	if err != nil {
		return nil, formatCUEError("relationship", err)
	}

	parsed := make(map[model.RelationshipType]EndpointRule)
	var errs ValidationErrors
	for iter.Next() {
		rt := model.RelationshipType(iter.Label())
		rule, ruleErrs := parseRule(rt, iter.Value())
		if len(ruleErrs) > 0 {
			errs = append(errs, ruleErrs...)
			continue
		}
		parsed[rt] = rule
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return NewTable(parsed)
}

// ruleDoc mirrors #Rule for decoding.
type ruleDoc struct {
	From  []string   `json:"from"`
	To    []string   `json:"to"`
	Pairs [][]string `json:"pairs"`
}

func parseRule(rt model.RelationshipType, v cue.Value) (EndpointRule, []ValidationError) {
	var doc ruleDoc
	if err := v.Decode(&doc); err != nil {
		return EndpointRule{}, []ValidationError{{
			Field:   "relationship." + string(rt),
			Message: err.Error(),
			Code:    ErrCUECompile,
			Line:    v.Pos().Line(),
		}}
	}

	rule := EndpointRule{
		From: toElementTypes(doc.From),
		To:   toElementTypes(doc.To),
	}
	if v.LookupPath(cue.ParsePath("pairs")).Exists() {
		rule.Pairs = []Pair{}
	}
	var errs []ValidationError
	for i, p := range doc.Pairs {
		if len(p) != 2 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("relationship.%s.pairs[%d]", rt, i),
				Message: fmt.Sprintf("pair must have exactly two members, got %d", len(p)),
				Code:    ErrMalformedPair,
				Line:    v.Pos().Line(),
			})
			continue
		}
		rule.Pairs = append(rule.Pairs, Pair{
			From: model.ElementType(p[0]),
			To:   model.ElementType(p[1]),
		})
	}
	return rule, errs
}

func toElementTypes(names []string) []model.ElementType {
	out := make([]model.ElementType, len(names))
	for i, n := range names {
		out[i] = model.ElementType(n)
	}
	return out
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(field string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: field, Message: err.Error()}
	}
	first := errs[0]
	ce := &CompileError{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
