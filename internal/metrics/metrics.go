// Package metrics exports storefront counters. A nil *Metrics is valid and
// records nothing, so components can be built without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whimsical"

type Metrics struct {
	cartMutations       *prometheus.CounterVec
	checkoutAttempts    *prometheus.CounterVec
	reconcileAdjustment *prometheus.CounterVec
	persistenceWarnings prometheus.Counter
	checkoutDuration    prometheus.Histogram
	sweeps              *prometheus.CounterVec
}

// New registers the storefront metrics on reg. A nil registerer yields a
// no-op collector.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart operations by operation and result.",
		}, []string{"op", "result"}),
		checkoutAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Finished checkout attempts by outcome.",
		}, []string{"outcome"}),
		reconcileAdjustment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_adjustments_total",
			Help:      "Cart lines changed by stock reconciliation.",
		}, []string{"kind"}),
		persistenceWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_warnings_total",
			Help:      "Cart snapshot reads or writes that failed.",
		}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Duration of checkout attempts in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_sweeps_total",
			Help:      "Scheduled reconcile sweeps by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.cartMutations, m.checkoutAttempts, m.reconcileAdjustment,
		m.persistenceWarnings, m.checkoutDuration, m.sweeps)
	return m
}

func (m *Metrics) CartMutation(op, result string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

func (m *Metrics) CheckoutFinished(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checkoutAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

func (m *Metrics) ReconcileAdjustment(kind string) {
	if m == nil {
		return
	}
	m.reconcileAdjustment.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) PersistenceWarning() {
	if m == nil {
		return
	}
	m.persistenceWarnings.Inc()
}

func (m *Metrics) Sweep(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sweeps.WithLabelValues(result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
