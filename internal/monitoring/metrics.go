// Package monitoring holds the Prometheus metrics of the ticket
// inventory.  Metrics register on the default registry and are exposed
// by the /metrics route.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_operations_total",
			Help: "Tickets moved by inventory operations",
		},
		[]string{"operation"},
	)

	capacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_capacity_rejections_total",
			Help: "Requests rejected because the hall was full",
		},
		[]string{"operation"},
	)

	reservationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_reservations_expired_total",
			Help: "Reservations released or deleted by the expiry sweep",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_expiry_sweep_duration_seconds",
			Help:    "Duration of reservation expiry sweeps",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)
)

// Operation labels.
const (
	OpBook     = "book"
	OpPurchase = "purchase"
	OpReturn   = "return"
)

// TrackTickets counts n tickets moved by operation.  Per-concert
// detail goes to logs and events, not labels.
func TrackTickets(operation string, n int) {
	ticketOperations.WithLabelValues(operation).Add(float64(n))
}

// TrackCapacityRejection counts one request refused for lack of capacity.
func TrackCapacityRejection(operation string) {
	capacityRejections.WithLabelValues(operation).Inc()
}

// TrackSweep records one expiry sweep.
func TrackSweep(expired int64, took time.Duration) {
	reservationsExpired.Add(float64(expired))
	sweepDuration.Observe(took.Seconds())
}
