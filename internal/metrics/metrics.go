// Package metrics holds the process-wide Prometheus collectors of the
// evaluation and contraction engines.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation paths, used as the "path" label.
const (
	PathShared       = "shared"
	PathDense        = "dense_dense"
	PathSparse       = "sparse_sparse"
	PathSparseDense  = "sparse_dense"
	PathEmpty        = "empty"
	PathContractGemm = "contract_gemm"
	PathContractCSR  = "contract_csr"
	PathContractLoop = "contract_loop"
)

var durationBuckets = []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10}

var (
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tensornet_evaluations_total",
		Help: "Index evaluations by execution path",
	}, []string{"path"})

	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tensornet_evaluation_duration_seconds",
		Help:    "Time spent in one index evaluation or pairwise contraction",
		Buckets: durationBuckets,
	}, []string{"path"})

	contractions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensornet_network_contractions_total",
		Help: "Pairwise node contractions performed on tensor networks",
	})

	contractionCost = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tensornet_network_contraction_cost",
		Help:    "Estimated cost of the chosen pairwise contractions",
		Buckets: prometheus.ExponentialBuckets(1, 10, 12),
	})

	sparseAcquisitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensornet_sparse_context_acquisitions_total",
		Help: "Scoped acquisitions of the shared sparse context",
	})

	solverWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tensornet_sparse_solver_warnings_total",
		Help: "Positive (non-fatal) statuses reported by the sparse solver",
	})
)

// ObserveEvaluation counts one evaluation on path and records its duration.
func ObserveEvaluation(path string, start time.Time) {
	evaluations.WithLabelValues(path).Inc()
	evaluationDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// ObserveContraction records one pairwise node contraction of the given cost.
func ObserveContraction(cost float64) {
	contractions.Inc()
	contractionCost.Observe(cost)
}

// SparseAcquired counts one acquisition of the sparse context.
func SparseAcquired() {
	sparseAcquisitions.Inc()
}

// SolverWarning counts one non-fatal solver status.
func SolverWarning() {
	solverWarnings.Inc()
}

// Handler serves the default registry, which holds all collectors above.
func Handler() http.Handler {
	return promhttp.Handler()
}
