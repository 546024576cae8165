package serac

import (
	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/serac/internal/metrics"
)

// Gatherer returns the registry holding the library's operation metrics
// (sessions, transactions, staged objects, engine errors), for embedding
// applications that scrape Prometheus.
func Gatherer() prometheus.Gatherer {
	metrics.Get()
	return prometheus.DefaultGatherer
}
