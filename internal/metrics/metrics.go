// Package metrics exposes Prometheus counters for library operations.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all operation metrics.
type Registry struct {
	SessionsOpened prometheus.Counter
	SessionsClosed prometheus.Counter
	Transactions   *prometheus.CounterVec
	Objects        *prometheus.CounterVec
	Enumerations   *prometheus.CounterVec
	EngineErrors   *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serac_sessions_opened_total",
		Help: "Total engine sessions opened",
	})

	r.SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serac_sessions_closed_total",
		Help: "Total engine sessions closed",
	})

	r.Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serac_transactions_total",
		Help: "Transactions by outcome",
	}, []string{"outcome"})

	r.Objects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serac_objects_total",
		Help: "Engine objects staged by kind and operation",
	}, []string{"kind", "op"})

	r.Enumerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serac_enumerations_total",
		Help: "Enumerations opened by object kind",
	}, []string{"kind"})

	r.EngineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serac_engine_errors_total",
		Help: "Native engine errors by status code",
	}, []string{"code"})

	return r
}

// RecordTransaction records a transaction outcome: begun, committed, aborted.
func (r *Registry) RecordTransaction(outcome string) {
	r.Transactions.WithLabelValues(outcome).Inc()
}

// RecordObject records a staged object operation.
func (r *Registry) RecordObject(kind, op string) {
	r.Objects.WithLabelValues(kind, op).Inc()
}

// RecordEnumeration records an opened enumeration.
func (r *Registry) RecordEnumeration(kind string) {
	r.Enumerations.WithLabelValues(kind).Inc()
}

// RecordEngineError records a native status code surfaced to a caller.
func (r *Registry) RecordEngineError(code uint32) {
	r.EngineErrors.WithLabelValues(fmt.Sprintf("0x%08X", code)).Inc()
}

// Package-level convenience functions using the global registry

// RecordSessionOpened counts one opened session.
func RecordSessionOpened() {
	Get().SessionsOpened.Inc()
}

// RecordSessionClosed counts one closed session.
func RecordSessionClosed() {
	Get().SessionsClosed.Inc()
}

// RecordTransaction records a transaction outcome.
func RecordTransaction(outcome string) {
	Get().RecordTransaction(outcome)
}

// RecordObject records a staged object operation.
func RecordObject(kind, op string) {
	Get().RecordObject(kind, op)
}

// RecordEnumeration records an opened enumeration.
func RecordEnumeration(kind string) {
	Get().RecordEnumeration(kind)
}

// RecordEngineError records a native status code surfaced to a caller.
func RecordEngineError(code uint32) {
	Get().RecordEngineError(code)
}
