package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Payment lifecycle
	IntentsCreated      *prometheus.CounterVec
	IntentsDeduplicated prometheus.Counter
	PaymentTransitions  *prometheus.CounterVec
	GatewayLatency      *prometheus.HistogramVec
	GatewayErrors       *prometheus.CounterVec

	// Reconciliation sweeper
	SweepRuns       prometheus.Counter
	SweepExpired    prometheus.Counter
	SweepLatency    prometheus.Histogram
	StaleIntents    prometheus.Gauge
	EventsPublished *prometheus.CounterVec

	// Booking
	AppointmentsCreated  prometheus.Counter
	BookingConflicts     prometheus.Counter
	AvailabilityRequests prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		IntentsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_intents_created_total",
			Help:      "Total number of payment intents created, by channel",
		}, []string{"channel"}),
		IntentsDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_intents_deduplicated_total",
			Help:      "Intent creations that returned an existing non-terminal intent",
		}),
		PaymentTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_status_transitions_total",
			Help:      "Payment intent status transitions, by destination status",
		}, []string{"status"}),
		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_request_duration_seconds",
			Help:      "Time spent talking to the payment gateway",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		GatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_errors_total",
			Help:      "Payment gateway errors, by operation",
		}, []string{"operation"}),
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_sweep_runs_total",
			Help:      "Total reconciliation sweeper runs",
		}),
		SweepExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_intents_expired_total",
			Help:      "Intents expired by the reconciliation sweeper",
		}),
		SweepLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_sweep_duration_seconds",
			Help:      "Time spent per reconciliation sweep",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		}),
		StaleIntents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_stale_intents",
			Help:      "Non-terminal intents past the staleness threshold",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_events_published_total",
			Help:      "Payment events published to the broker, by channel",
		}, []string{"channel"}),
		AppointmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "appointments_created_total",
			Help:      "Total appointments created",
		}),
		BookingConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "booking_conflicts_total",
			Help:      "Appointment creations rejected due to a slot conflict",
		}),
		AvailabilityRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "availability_requests_total",
			Help:      "Month availability computations served",
		}),
	}
}
