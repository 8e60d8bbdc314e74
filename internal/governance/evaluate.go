package governance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
)

// ownedTypes must each have exactly one owning Enterprise.
var ownedTypes = []model.ElementType{
	model.Capability,
	model.SubCapability,
	model.Application,
	model.Programme,
}

// evaluation holds the per-call indexes shared by the rules.
type evaluation struct {
	view   graph.View
	table  *rules.Table
	policy Policy
	report *Report

	elements []model.Element
	live     map[string]model.Element
	rels     []model.Relationship
}

// Evaluate runs every governance rule over view and returns a fresh report.
// A nil table means the table the view was built with.
//
// Elements and relationships are visited in id order, so the report is
// deterministic for a given graph.
func Evaluate(view graph.View, table *rules.Table, policy Policy) *Report {
	if table == nil {
		table = view.Table()
	}
	ev := &evaluation{
		view:   view,
		table:  table,
		policy: policy,
		report: &Report{Policy: policy},
		live:   make(map[string]model.Element),
	}
	ev.elements = view.AllElements()
	for _, el := range ev.elements {
		if el.Live() {
			ev.live[el.ID] = el
		}
	}
	ev.rels = view.GetAllRelationships()

	ev.checkRequiredFields()
	ev.checkOwnershipCardinality()
	ev.checkDepartmentContainment()
	ev.checkServiceTraceability()
	ev.checkCapabilitySupport()
	ev.checkServiceProviders()
	ev.checkCrossLayerEdges()
	ev.checkTombstonedEndpoints()
	ev.checkRevalidation()
	ev.checkLifecycle()

	return ev.report
}

func (ev *evaluation) emit(code string, category Category, severity Severity, el, rel, format string, args ...any) {
	if ev.policy.Mode == Advisory && severity == SeverityError {
		severity = SeverityWarning
	}
	ev.report.add(Finding{
		Code:           code,
		Category:       category,
		Severity:       severity,
		ElementID:      el,
		RelationshipID: rel,
		Message:        fmt.Sprintf(format, args...),
	})
}

// liveElements returns live elements of type t in id order.
func (ev *evaluation) liveElements(t model.ElementType) []model.Element {
	var out []model.Element
	for _, el := range ev.view.GetElementsByType(t) {
		if el.Live() {
			out = append(out, el)
		}
	}
	return out
}

// isLive reports whether both endpoints of rel are live.
func (ev *evaluation) isLive(rel model.Relationship) bool {
	_, src := ev.live[rel.SourceElementID]
	_, dst := ev.live[rel.TargetElementID]
	return src && dst
}

// incoming returns live relationships of type rt ending at id whose source
// is one of the given types.
func (ev *evaluation) incoming(id string, rt model.RelationshipType, from ...model.ElementType) []model.Relationship {
	var out []model.Relationship
	for _, rel := range ev.view.GetIncomingRelationships(id) {
		if rel.Type != rt || !ev.isLive(rel) {
			continue
		}
		if source := ev.live[rel.SourceElementID]; typeIn(source.Type, from) {
			out = append(out, rel)
		}
	}
	return out
}

// outgoingTargets returns live targets of type to reached from id over rt.
func (ev *evaluation) outgoingTargets(id string, rt model.RelationshipType, to model.ElementType) []model.Element {
	var out []model.Element
	for _, rel := range ev.view.GetOutgoingRelationships(id) {
		if rel.Type != rt || !ev.isLive(rel) {
			continue
		}
		if target := ev.live[rel.TargetElementID]; target.Type == to {
			out = append(out, target)
		}
	}
	return out
}

func (ev *evaluation) checkRequiredFields() {
	for _, el := range ev.elements {
		if !el.Live() {
			continue
		}
		if strings.TrimSpace(el.Name()) == "" {
			ev.emit(CodeNameMissing, CategoryMandatory, SeverityError, el.ID, "",
				"%s %q is missing a name", el.Type, el.ID)
		}

		ownerID, _ := el.Attr(model.AttrOwnerID)
		if isBootstrapOwner(el, ownerID) {
			continue
		}
		if strings.TrimSpace(ownerID) == "" {
			ev.emit(CodeOwnerMissing, CategoryMandatory, SeverityError, el.ID, "",
				"%s %q has no ownerId", el.Type, el.ID)
			continue
		}
		owner, ok := ev.live[ownerID]
		if !ok || (owner.Type != model.Enterprise && owner.Type != model.Department) {
			ev.emit(CodeOwnerUnresolved, CategoryMandatory, SeverityError, el.ID, "",
				"%s %q owner %q does not resolve to a live Enterprise or Department", el.Type, el.ID, ownerID)
			continue
		}
		if ownerType, ok := el.Attr(model.AttrOwnerType); ok && ownerType != "" && ownerType != string(owner.Type) {
			ev.emit(CodeOwnerUnresolved, CategoryMandatory, SeverityError, el.ID, "",
				"%s %q declares ownerType %s but owner %q is %s", el.Type, el.ID, ownerType, ownerID, owner.Type)
		}
	}
}

// isBootstrapOwner exempts a self-owned Enterprise or Department.
func isBootstrapOwner(el model.Element, ownerID string) bool {
	return ownerID == el.ID && (el.Type == model.Enterprise || el.Type == model.Department)
}

// checkOwnershipCardinality applies only to types the table lets an
// Enterprise own; an unsatisfiable requirement would be permanent debt.
func (ev *evaluation) checkOwnershipCardinality() {
	for _, t := range ownedTypes {
		if !ev.table.Allows(model.Owns, model.Enterprise, t) {
			continue
		}
		for _, el := range ev.liveElements(t) {
			switch n := len(ev.incoming(el.ID, model.Owns, model.Enterprise)); {
			case n == 0:
				ev.emit(CodeOwnershipCardinality, CategoryMandatory, SeverityError, el.ID, "",
					"%s %q has no owning Enterprise (OWNS)", el.Type, el.ID)
			case n > 1:
				ev.emit(CodeOwnershipCardinality, CategoryMandatory, SeverityError, el.ID, "",
					"%s %q has %d owning Enterprises; exactly one is required", el.Type, el.ID, n)
			}
		}
	}
}

func (ev *evaluation) checkDepartmentContainment() {
	for _, el := range ev.liveElements(model.Department) {
		switch n := len(ev.incoming(el.ID, model.Has, model.Enterprise)); {
		case n == 0:
			ev.emit(CodeDepartmentContainment, CategoryMandatory, SeverityError, el.ID, "",
				"Department %q is not contained by an Enterprise (HAS)", el.ID)
		case n > 1:
			ev.emit(CodeDepartmentContainment, CategoryMandatory, SeverityError, el.ID, "",
				"Department %q is contained by %d Enterprises; exactly one is required", el.ID, n)
		}
	}
}

func (ev *evaluation) checkServiceTraceability() {
	for _, el := range ev.liveElements(model.BusinessService) {
		if len(ev.incoming(el.ID, model.RealizedBy, model.Capability, model.SubCapability)) == 0 {
			ev.emit(CodeServiceUnrealized, CategoryRelationship, SeverityError, el.ID, "",
				"BusinessService %q is not realized by any Capability", el.ID)
		}
	}
}

// checkCapabilitySupport walks Capability -REALIZED_BY-> BusinessService
// -SUPPORTED_BY-> ApplicationService.
func (ev *evaluation) checkCapabilitySupport() {
	for _, el := range ev.liveElements(model.Capability) {
		supported := false
		for _, bs := range ev.outgoingTargets(el.ID, model.RealizedBy, model.BusinessService) {
			if len(ev.outgoingTargets(bs.ID, model.SupportedBy, model.ApplicationService)) > 0 {
				supported = true
				break
			}
		}
		if !supported {
			ev.emit(CodeCapabilityUnsupported, CategoryRelationship, SeverityError, el.ID, "",
				"Capability %q has no supporting Application Service", el.ID)
		}
	}
}

func (ev *evaluation) checkServiceProviders() {
	for _, el := range ev.liveElements(model.ApplicationService) {
		switch n := len(ev.incoming(el.ID, model.Provides, model.Application)); {
		case n == 0:
			ev.emit(CodeServiceProvider, CategoryRelationship, SeverityError, el.ID, "",
				"ApplicationService %q has no providing Application", el.ID)
		case n > 1:
			ev.emit(CodeServiceProvider, CategoryRelationship, SeverityError, el.ID, "",
				"ApplicationService %q is provided by %d Applications; exactly one is required", el.ID, n)
		}
	}
}

func (ev *evaluation) checkCrossLayerEdges() {
	for _, rel := range ev.rels {
		if !ev.isLive(rel) {
			continue
		}
		source, target := ev.live[rel.SourceElementID], ev.live[rel.TargetElementID]
		sl, tl := source.Type.Layer(), target.Type.Layer()
		if (sl == model.LayerTechnology && tl == model.LayerBusiness) ||
			(sl == model.LayerBusiness && tl == model.LayerTechnology) {
			ev.emit(CodeCrossLayerEdge, CategoryRelationship, SeverityError, "", rel.ID,
				"%s directly connects %s layer %s %q to %s layer %s %q",
				rel.Type, sl, source.Type, source.ID, tl, target.Type, target.ID)
		}
	}
}

// checkTombstonedEndpoints warns about stored edges that are no longer live.
func (ev *evaluation) checkTombstonedEndpoints() {
	for _, rel := range ev.rels {
		for _, id := range []string{rel.SourceElementID, rel.TargetElementID} {
			if _, ok := ev.live[id]; !ok {
				ev.emit(CodeTombstonedEndpoint, CategoryRelationship, SeverityWarning, "", rel.ID,
					"%s references tombstoned element %q", rel.Type, id)
				break
			}
		}
	}
}

// checkRevalidation replays every live relationship through a fresh store
// bound to the evaluation table, catching edges the current rules reject.
func (ev *evaluation) checkRevalidation() {
	mirror := graph.NewRelationshipStore(ev.view, ev.table)
	for _, rel := range ev.rels {
		if !ev.isLive(rel) {
			continue
		}
		err := mirror.AddRelationship(rel)
		if err == nil {
			continue
		}
		var ie *graph.InsertError
		if errors.As(err, &ie) {
			ev.emit(CodeRevalidationFailed, CategoryInvalidInsert, SeverityError, "", rel.ID,
				"%s no longer passes validation: [%s] %s", rel.Type, ie.Code, ie.Message)
			continue
		}
		ev.emit(CodeRevalidationFailed, CategoryInvalidInsert, SeverityError, "", rel.ID,
			"%s no longer passes validation: %v", rel.Type, err)
	}
}

func (ev *evaluation) checkLifecycle() {
	if ev.policy.LifecycleCoverage != CoverageBoth {
		return
	}
	for _, el := range ev.elements {
		if !el.Live() {
			continue
		}
		state, _ := el.Attr(model.AttrLifecycleState)
		if _, ok := model.ParseLifecycleState(state); !ok {
			ev.emit(CodeLifecycleMissing, CategoryLifecycle, SeverityError, el.ID, "",
				"%s %q has no resolvable lifecycleState (As-Is or To-Be)", el.Type, el.ID)
		}
	}
}

func typeIn(t model.ElementType, set []model.ElementType) bool {
	for _, s := range set {
		if s == t {
			return true
		}
	}
	return false
}
