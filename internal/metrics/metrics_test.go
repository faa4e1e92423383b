package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEvaluation(t *testing.T) {
	before := testutil.ToFloat64(evaluations.WithLabelValues(PathDense))
	ObserveEvaluation(PathDense, time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(evaluations.WithLabelValues(PathDense)))
}

func TestCounters(t *testing.T) {
	c := testutil.ToFloat64(contractions)
	ObserveContraction(64)
	assert.Equal(t, c+1, testutil.ToFloat64(contractions))

	a := testutil.ToFloat64(sparseAcquisitions)
	SparseAcquired()
	assert.Equal(t, a+1, testutil.ToFloat64(sparseAcquisitions))

	w := testutil.ToFloat64(solverWarnings)
	SolverWarning()
	assert.Equal(t, w+1, testutil.ToFloat64(solverWarnings))
}

func TestHandler(t *testing.T) {
	ObserveEvaluation(PathSparse, time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tensornet_evaluations_total")
}
