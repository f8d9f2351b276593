package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters for the card intake API.
type Metrics struct {
	CardsCreated     prometheus.Counter
	ReportsSubmitted prometheus.Counter
	ReportConflicts  prometheus.Counter
	UploadSlots      prometheus.Counter
	ImagePatches     prometheus.Counter

	CacheLookups *prometheus.CounterVec // labels: group, result={hit,miss}
}

// NewMetrics creates and registers all API metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CardsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cards_api",
			Name:      "cards_created_total",
			Help:      "Total card placeholders created.",
		}),
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cards_api",
			Name:      "reports_submitted_total",
			Help:      "Total reports accepted onto unclaimed cards.",
		}),
		ReportConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cards_api",
			Name:      "report_conflicts_total",
			Help:      "Total submissions rejected because the card already had a report.",
		}),
		UploadSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cards_api",
			Name:      "upload_slots_issued_total",
			Help:      "Total pre-signed image upload credentials issued.",
		}),
		ImagePatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cards_api",
			Name:      "image_patches_total",
			Help:      "Total confirmed image URL patches.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cards_api",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by group and result.",
		}, []string{"group", "result"}),
	}

	prometheus.MustRegister(
		m.CardsCreated,
		m.ReportsSubmitted,
		m.ReportConflicts,
		m.UploadSlots,
		m.ImagePatches,
		m.CacheLookups,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CardsCreated:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cards_api", Name: "cards_created_total"}),
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cards_api", Name: "reports_submitted_total"}),
		ReportConflicts:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cards_api", Name: "report_conflicts_total"}),
		UploadSlots:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cards_api", Name: "upload_slots_issued_total"}),
		ImagePatches:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cards_api", Name: "image_patches_total"}),
		CacheLookups:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "cards_api", Name: "cache_lookups_total"}, []string{"group", "result"}),
	}
}
