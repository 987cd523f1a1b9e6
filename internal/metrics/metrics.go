package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "op_tournament"

// Metrics holds the bracket engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	txConflicts       *prometheus.CounterVec
	invariants        *prometheus.CounterVec
	bracketsGenerated *prometheus.CounterVec
	matchesCompleted  prometheus.Counter
	bracketsCompleted prometheus.Counter
	bracketsStalled   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"operation", "result"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency including transaction retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		txConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_conflicts_total",
			Help:      "Transactions aborted by lock contention or serialization failures.",
		}, []string{"operation"}),
		invariants: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Stored brackets found in an impossible state.",
		}, []string{"operation"}),
		bracketsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brackets_generated_total",
			Help:      "Brackets generated by format.",
		}, []string{"format"}),
		matchesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Matches completed with a declared winner.",
		}),
		bracketsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brackets_completed_total",
			Help:      "Brackets that crowned a champion.",
		}),
		bracketsStalled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brackets_stalled_total",
			Help:      "Brackets that became blocked by a cancelled match.",
		}),
	}
}

func (m *Metrics) RecordOperation(operation string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.txConflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordInvariantViolation(operation string) {
	if m == nil {
		return
	}
	m.invariants.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordGenerated(format string) {
	if m == nil {
		return
	}
	m.bracketsGenerated.WithLabelValues(format).Inc()
}

func (m *Metrics) RecordMatchCompleted() {
	if m == nil {
		return
	}
	m.matchesCompleted.Inc()
}

func (m *Metrics) RecordBracketCompleted() {
	if m == nil {
		return
	}
	m.bracketsCompleted.Inc()
}

func (m *Metrics) RecordBracketStalled() {
	if m == nil {
		return
	}
	m.bracketsStalled.Inc()
}
