// Package metrics exposes the pipeline's Prometheus collectors and the
// post-hoc quota verification job.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the pipeline records into.
type Metrics struct {
	TasksEmitted   *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	ItemsScraped   *prometheus.CounterVec
	ScrapeErrors   *prometheus.CounterVec
	DedupMerges    prometheus.Counter
	Enrichments    prometheus.Counter
	PermanentFails prometheus.Counter
	LeaseReaps     prometheus.Counter
	QueueBacklog   prometheus.Gauge
}

// New registers the pipeline collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flodrama_tasks_emitted_total",
			Help: "Tasks emitted by the scheduler, by kind.",
		}, []string{"kind"}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flodrama_tasks_completed_total",
			Help: "Tasks settled by workers, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ItemsScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flodrama_items_scraped_total",
			Help: "Items successfully extracted and upserted, by source.",
		}, []string{"source"}),
		ScrapeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flodrama_scrape_errors_total",
			Help: "Extraction failures, by source and class.",
		}, []string{"source", "class"}),
		DedupMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "flodrama_dedup_merges_total",
			Help: "Cross-source duplicate pairs merged.",
		}),
		Enrichments: factory.NewCounter(prometheus.CounterOpts{
			Name: "flodrama_enrichments_total",
			Help: "Items enriched and categorized.",
		}),
		PermanentFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "flodrama_permanent_failures_total",
			Help: "Tasks written to the permanent-failure store.",
		}),
		LeaseReaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "flodrama_lease_reaps_total",
			Help: "Expired task leases returned for redelivery.",
		}),
		QueueBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flodrama_queue_backlog",
			Help: "Visible plus in-flight tasks at last sample.",
		}),
	}
}
