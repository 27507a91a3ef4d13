package linker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	componentsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isolink_components_live",
		Help: "Number of live components in the registry.",
	})

	resolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "isolink_resolutions_total",
		Help: "Indirect resolutions by outcome (linked, skipped).",
	}, []string{"outcome"})

	reductionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "isolink_reductions_total",
		Help: "Canonical resolutions by outcome (merged, promoted).",
	}, []string{"outcome"})

	journalDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isolink_journal_dropped_total",
		Help: "Journal entries evicted by ring wrap.",
	})
)

func init() {
	prometheus.MustRegister(componentsLive)
	prometheus.MustRegister(resolutionsTotal)
	prometheus.MustRegister(reductionsTotal)
	prometheus.MustRegister(journalDroppedTotal)
}
