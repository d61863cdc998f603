package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Constructed once
// in main; services tolerate a nil *Metrics so tests can skip registration.
type Metrics struct {
	AdmissionDecisions *prometheus.CounterVec
	QuotaDegraded      prometheus.Gauge
	QuotaFailovers     prometheus.Counter
	SearchDuration     prometheus.Histogram
	SelectedResults    prometheus.Histogram
	KMZExports         prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AdmissionDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dilldrill_admission_decisions_total",
			Help: "Admission decisions by verdict and tier",
		}, []string{"verdict", "tier"}),
		QuotaDegraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dilldrill_quota_store_degraded",
			Help: "1 while the quota store is serving from the in-process fallback",
		}),
		QuotaFailovers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dilldrill_quota_store_failovers_total",
			Help: "Individual quota calls that fell back to the in-process store",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dilldrill_search_duration_seconds",
			Help:    "End to end admission plus search latency",
			Buckets: prometheus.DefBuckets,
		}),
		SelectedResults: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dilldrill_selected_results",
			Help:    "Number of POIs returned after diversity selection",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),
		KMZExports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dilldrill_kmz_exports_total",
			Help: "Total KMZ files generated",
		}),
	}
}

func (m *Metrics) RecordDecision(verdict, tier string) {
	m.AdmissionDecisions.WithLabelValues(verdict, tier).Inc()
}

func (m *Metrics) SetQuotaDegraded(degraded bool) {
	if degraded {
		m.QuotaDegraded.Set(1)
		return
	}
	m.QuotaDegraded.Set(0)
}

func (m *Metrics) RecordFailover() {
	m.QuotaFailovers.Inc()
}

func (m *Metrics) RecordKMZExport() {
	m.KMZExports.Inc()
}
