package explorer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// activitiesProcessed counts activities folded in by Compute.
	// Labels: result (recorded, excluded, missing)
	activitiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "activities_total",
		Help:      "Activities handled by the explorer compute run",
	}, []string{"result"})

	newTilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "new_tiles_total",
		Help:      "Newly explored tiles per zoom",
	}, []string{"zoom"})

	resetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "resets_total",
		Help:      "Full state resets after a failed consistency check or an unreadable state file",
	})

	// Labels: zoom
	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "achievement_rebuilds_total",
		Help:      "Achievement states replayed from the full first-visit stream after out-of-order activities",
	}, []string{"zoom"})

	computeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "compute_duration_seconds",
		Help:      "Duration of explorer compute runs",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	// Labels: zoom
	maxClusterSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "max_cluster_size",
		Help:      "Largest cluster of complete tiles",
	}, []string{"zoom"})

	maxSquareSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "records",
		Subsystem: "explorer",
		Name:      "max_square_size",
		Help:      "Edge length of the largest fully explored square",
	}, []string{"zoom"})
)
