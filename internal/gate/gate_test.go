package gate

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/graph"
	"github.com/roach88/eagraph/internal/model"
	"github.com/roach88/eagraph/internal/rules"
	fixtures "github.com/roach88/eagraph/internal/testutil"
)

var (
	strict   = governance.Policy{Mode: governance.Strict, LifecycleCoverage: governance.CoverageAsIs}
	advisory = governance.Policy{Mode: governance.Advisory, LifecycleCoverage: governance.CoverageAsIs}
)

// unnamedApplication is the compliant estate with app-1's name removed.
func unnamedApplication(t *testing.T) *graph.Graph {
	return fixtures.From(t, fixtures.Compliant(t).Graph()).
		Set("app-1", model.AttrName, nil).
		Graph()
}

func TestStrictAcceptsCompliantGraph(t *testing.T) {
	g := New(strict)

	d := g.Check(fixtures.Compliant(t).Graph())

	assert.True(t, d.Accepted)
	assert.NoError(t, d.Err)
	assert.Equal(t, governance.Strict, d.Mode)
}

func TestStrictRejectsUnnamedApplication(t *testing.T) {
	g := New(strict)

	d := g.Check(unnamedApplication(t))

	require.False(t, d.Accepted)
	require.True(t, IsRejectionError(d.Err))
	var re *RejectionError
	require.ErrorAs(t, d.Err, &re)
	assert.Equal(t, []string{`[G101] Application "app-1" is missing a name`}, re.Messages)
	assert.Contains(t, d.Err.Error(), "mandatory=1")
	assert.Equal(t, 0, g.WarningCount())
}

func TestRejectionCarriesFirstFiveMessages(t *testing.T) {
	b := fixtures.From(t, fixtures.Compliant(t).Graph())
	for _, id := range []string{"app-a", "app-b", "app-c", "app-d"} {
		b.Element(id, model.Application)
	}

	d := New(strict).Check(b.Graph())

	var re *RejectionError
	require.ErrorAs(t, d.Err, &re)
	require.Len(t, re.Messages, MaxRejectionMessages)
	assert.Equal(t, `[G101] Application "app-a" is missing a name`, re.Messages[0])
	assert.Equal(t, `[G102] Application "app-a" has no ownerId`, re.Messages[1])
	assert.Equal(t, 12, d.Report.Debt.MandatoryFindingCount)
}

func TestStrictIgnoresWarnings(t *testing.T) {
	g := fixtures.From(t, fixtures.Compliant(t).Graph()).Tombstone("tech-1").Graph()

	d := New(strict).Check(g)

	assert.True(t, d.Accepted)
	assert.Equal(t, 1, d.Report.Debt.RelationshipWarningCount)
}

func TestAdvisoryWarnsOncePerSignature(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := New(advisory, WithLogger(zap.New(core)))

	first := g.Check(unnamedApplication(t))
	assert.True(t, first.Accepted)
	assert.True(t, first.Warned)
	assert.Equal(t, 1, g.WarningCount())

	again := g.Check(unnamedApplication(t))
	assert.True(t, again.Accepted)
	assert.False(t, again.Warned, "same debt signature must not warn twice")
	assert.Equal(t, 1, g.WarningCount())

	different := fixtures.From(t, unnamedApplication(t)).Set("bs-1", model.AttrName, nil).Graph()
	assert.True(t, g.Check(different).Warned)
	assert.Equal(t, 2, g.WarningCount())

	assert.Equal(t, 2, logs.FilterMessage("governance debt present").Len())
}

func TestAdvisoryCleanGraphDoesNotWarn(t *testing.T) {
	g := New(advisory)

	d := g.Check(fixtures.Compliant(t).Graph())

	assert.True(t, d.Accepted)
	assert.False(t, d.Warned)
	assert.Equal(t, 0, g.WarningCount())
}

func TestModeTransition(t *testing.T) {
	g := New(strict)
	candidate := unnamedApplication(t)

	assert.False(t, g.Check(candidate).Accepted)
	g.SetMode(governance.Advisory)
	assert.Equal(t, governance.Advisory, g.Policy().Mode)
	assert.True(t, g.Check(candidate).Accepted)
	g.SetMode(governance.Strict)
	assert.False(t, g.Check(candidate).Accepted)
}

func TestSetPolicyLifecycleCoverage(t *testing.T) {
	g := New(strict)
	candidate := fixtures.Compliant(t).Graph()
	require.True(t, g.Check(candidate).Accepted)

	g.SetPolicy(governance.Policy{Mode: governance.Strict, LifecycleCoverage: governance.CoverageBoth})

	d := g.Check(candidate)
	assert.False(t, d.Accepted)
	assert.Equal(t, 7, d.Report.Debt.LifecycleTagMissingCount)
}

func TestWithTableOverridesCandidateTable(t *testing.T) {
	def := rules.Default()
	rows := make(map[model.RelationshipType]rules.EndpointRule)
	for _, rt := range def.Types() {
		if rt == model.HostedOn {
			continue
		}
		rule, _ := def.Lookup(rt)
		rows[rt] = rule
	}
	evolved, err := rules.NewTable(rows)
	require.NoError(t, err)

	d := New(strict, WithTable(evolved)).Check(fixtures.Compliant(t).Graph())

	assert.False(t, d.Accepted)
	assert.Equal(t, 1, d.Report.Debt.InvalidRelationshipInsertCount)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics("eagraph")
	g := New(advisory, WithMetrics(m))

	g.Check(unnamedApplication(t))
	g.Check(unnamedApplication(t))
	g.Check(fixtures.Compliant(t).Graph())
	g.SetMode(governance.Strict)
	g.Check(unnamedApplication(t))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryWarnings))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("Advisory", OutcomeWarned)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("Advisory", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("Strict", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Debt.WithLabelValues("mandatory")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestEvaluationCounts(t *testing.T) {
	m := NewMetrics("eagraph")
	g := New(advisory, WithMetrics(m))

	counts, err := m.EvaluationCounts()
	require.NoError(t, err)
	assert.Empty(t, counts)

	g.Check(unnamedApplication(t))
	g.Check(fixtures.Compliant(t).Graph())
	g.SetMode(governance.Strict)
	g.Check(unnamedApplication(t))
	g.Check(fixtures.Compliant(t).Graph())

	counts, err = m.EvaluationCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"Advisory/" + OutcomeWarned:   1,
		"Advisory/" + OutcomeAccepted: 1,
		"Strict/" + OutcomeRejected:   1,
		"Strict/" + OutcomeAccepted:   1,
	}, counts)
}
