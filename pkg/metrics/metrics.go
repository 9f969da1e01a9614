package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanDecodes counts accepted decode events by classification (rsvp|invalid|foreign).
	ScanDecodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_scan_decodes_total",
			Help: "Total number of decode events accepted by the scan loop",
		},
		[]string{"classification"},
	)

	// CooldownRejections counts decode events discarded by the cooldown gate.
	CooldownRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatepass_scan_cooldown_rejections_total",
			Help: "Decode events discarded because they arrived inside the cooldown window",
		},
	)

	// CheckIns counts check-in attempts by outcome (succeeded|already_checked_in|not_found|store_error).
	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatepass_checkins_total",
			Help: "Total number of check-in attempts",
		},
		[]string{"outcome"},
	)

	// Registrations counts issued registrations.
	Registrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatepass_registrations_total",
			Help: "Total number of registrations issued",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatepass_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
