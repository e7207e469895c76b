// Package metrics provides Prometheus metrics for clustering runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geneclust"

var (
	// RunsTotal counts finished engine runs by stop reason.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total finished engine runs",
		},
		[]string{"stop_reason"},
	)

	// RunGenerations tracks how many generations a run lasted.
	RunGenerations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_generations",
			Help:      "Generations evolved per run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// RunDuration tracks wall time per run.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Engine run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BestWCSS holds the best WCSS per cluster count from the most recent sweep.
	BestWCSS = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_wcss",
			Help:      "Best within-cluster sum of squares per k in the most recent sweep",
		},
		[]string{"k"},
	)

	// RunErrors counts runs that failed before finishing.
	RunErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Total engine runs that returned an error",
		},
	)
)

// ObserveRun records a finished run.
func ObserveRun(stopReason string, generations int, elapsed time.Duration) {
	RunsTotal.WithLabelValues(stopReason).Inc()
	RunGenerations.Observe(float64(generations))
	RunDuration.Observe(elapsed.Seconds())
}

// ObserveRunError records a run that returned an error.
func ObserveRunError() {
	RunErrors.Inc()
}

// SetBestWCSS publishes the best WCSS for k, replacing the previous sweep.
func SetBestWCSS(k int, wcss float64) {
	BestWCSS.WithLabelValues(strconv.Itoa(k)).Set(wcss)
}

// WriteTextfile dumps every registered metric to path in the text exposition
// format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
