// Package metrics defines the Prometheus collectors for indexing, search,
// and interest-profile updates.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Index metrics.
var (
	IndexBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "papersim",
			Name:      "index_builds_total",
			Help:      "Total number of vector index builds",
		},
		[]string{"outcome"}, // "success" / "empty_corpus" / "error"
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "papersim",
			Name:      "index_build_duration_seconds",
			Help:      "Vector index build duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	IndexSnapshotLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "papersim",
			Name:      "index_snapshot_loads_total",
			Help:      "Snapshot load attempts at startup",
		},
		[]string{"result"}, // "loaded" / "missing" / "corrupt"
	)

	IndexPapers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "papersim",
			Name:      "index_papers",
			Help:      "Number of papers in the loaded vector index",
		},
	)
)

// Search metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "papersim",
			Name:      "searches_total",
			Help:      "Total number of searches",
		},
		[]string{"outcome"}, // "success" / "not_ready" / "error"
	)

	SearchBackfilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "papersim",
			Name:      "search_backfilled_results_total",
			Help:      "Results added below the similarity threshold to reach the minimum count",
		},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "papersim",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

// Profile metrics.
var (
	ProfileUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "papersim",
			Name:      "profile_updates_total",
			Help:      "Interest profile update events",
		},
		[]string{"event", "outcome"}, // event: search/pdf/paper/direct; outcome: applied/skipped/error
	)
)

// Collectors returns every collector defined by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		IndexBuildsTotal,
		IndexBuildDuration,
		IndexSnapshotLoadsTotal,
		IndexPapers,
		SearchesTotal,
		SearchBackfilledTotal,
		SearchDuration,
		ProfileUpdatesTotal,
	}
}

// Register registers all collectors on reg. Collectors already registered
// on reg are skipped, so calling Register twice is safe.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
