package report

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "klaviyo_report"

// Metrics holds the report counters and histograms. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reports *prometheus.CounterVec

	fetchDuration *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec
}

// NewMetrics creates the report metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Report operations by outcome",
			},
			[]string{"operation", "status"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of Klaviyo API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.reports, m.fetchDuration, m.cacheLookups)
	}
	return m
}

// ObserveFetch records one API request. It matches klaviyo.Config.Observe.
func (m *Metrics) ObserveFetch(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// CacheLookup records one cache lookup. It matches
// klaviyo.CacheConfig.OnLookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) observeReport(operation string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.reports.WithLabelValues(operation, status).Inc()
}
