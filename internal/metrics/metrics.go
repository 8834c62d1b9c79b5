package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "erp_settings"

// Metrics for the rate cache and the settings aggregator
type Metrics struct {
	// Rate cache lookups
	RatesCacheHits   prometheus.Counter
	RatesCacheMisses prometheus.Counter

	// Provider calls
	RatesFetchTotal    *prometheus.CounterVec
	RatesFetchDuration prometheus.Histogram
	RatesPersistErrors prometheus.Counter

	// Settings
	SettingsLoadFailures prometheus.Counter
	SettingsLoaded       prometheus.Gauge

	InitDuration prometheus.Histogram
}

// New registers all metrics with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RatesCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "cache_hits_total",
			Help:      "Rate lookups served from a fresh stored envelope",
		}),
		RatesCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "cache_misses_total",
			Help:      "Rate lookups that found no fresh envelope",
		}),
		RatesFetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "fetch_total",
			Help:      "Rate provider calls by result",
		}, []string{"result"}),
		RatesFetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "fetch_duration_seconds",
			Help:      "Rate provider call latency",
			Buckets:   prometheus.DefBuckets,
		}),
		RatesPersistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "persist_errors_total",
			Help:      "Failures writing the rates envelope to storage",
		}),
		SettingsLoadFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "load_failures_total",
			Help:      "Failed loads from the settings backend",
		}),
		SettingsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "loaded",
			Help:      "Number of settings currently held",
		}),
		InitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "init_duration_seconds",
			Help:      "Time from Initialize to ready",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Nop returns metrics that are not registered anywhere.
func Nop() *Metrics {
	return New(nil)
}
