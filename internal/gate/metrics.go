package gate

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/eagraph/internal/governance"
)

// Metrics holds the gate's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	evaluationsName string

	Evaluations      *prometheus.CounterVec
	AdvisoryWarnings prometheus.Counter
	Debt             *prometheus.GaugeVec
}

// NewMetrics creates collectors under namespace and registers them on a
// fresh registry, so independent gates never collide.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	evaluations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "evaluations_total",
			Help:      "Candidate graphs evaluated by the governance gate",
		},
		[]string{"mode", "outcome"},
	)

	advisoryWarnings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "advisory_warnings_total",
			Help:      "Advisory debt warnings emitted, one per distinct debt signature",
		},
	)

	debt := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "debt_findings",
			Help:      "Findings per category in the most recently evaluated candidate",
		},
		[]string{"category"},
	)

	registry.MustRegister(evaluations, advisoryWarnings, debt)

	return &Metrics{
		registry:         registry,
		evaluationsName:  prometheus.BuildFQName(namespace, "gate", "evaluations_total"),
		Evaluations:      evaluations,
		AdvisoryWarnings: advisoryWarnings,
		Debt:             debt,
	}
}

// Registry exposes the registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EvaluationCounts gathers the evaluations counter keyed "mode/outcome".
func (m *Metrics) EvaluationCounts() (map[string]int, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	counts := make(map[string]int)
	for _, family := range families {
		if family.GetName() != m.evaluationsName {
			continue
		}
		for _, metric := range family.GetMetric() {
			var mode, outcome string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "mode":
					mode = label.GetValue()
				case "outcome":
					outcome = label.GetValue()
				}
			}
			counts[mode+"/"+outcome] = int(metric.GetCounter().GetValue())
		}
	}
	return counts, nil
}

func (m *Metrics) observe(mode governance.Mode, outcome string, d governance.Debt) {
	m.Evaluations.WithLabelValues(string(mode), outcome).Inc()
	m.Debt.WithLabelValues("mandatory").Set(float64(d.MandatoryFindingCount))
	m.Debt.WithLabelValues("relationship_error").Set(float64(d.RelationshipErrorCount))
	m.Debt.WithLabelValues("relationship_warning").Set(float64(d.RelationshipWarningCount))
	m.Debt.WithLabelValues("invalid_insert").Set(float64(d.InvalidRelationshipInsertCount))
	m.Debt.WithLabelValues("lifecycle").Set(float64(d.LifecycleTagMissingCount))
}
