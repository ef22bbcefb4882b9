// Package metrics holds the prometheus collectors for scrape passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Passes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rootdata_passes_total",
		Help: "Scrape passes by final status.",
	}, []string{"status"})

	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rootdata_pass_duration_seconds",
		Help:    "Wall time of a scrape pass.",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	})

	PagesScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rootdata_pages_scraped_total",
		Help: "Listing pages extracted.",
	})

	ProjectsScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rootdata_projects_scraped_total",
		Help: "Project rows extracted from listing pages.",
	})

	SyncBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rootdata_sync_batches_total",
		Help: "Remote store batch inserts by result.",
	}, []string{"status"})

	SyncRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rootdata_sync_retries_total",
		Help: "Batch insert retries by reason.",
	}, []string{"reason"})
)
