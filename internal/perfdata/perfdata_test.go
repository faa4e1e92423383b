package perfdata

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func newTestRecorder() *Recorder {
	r := New(false)
	r.now = fakeClock(time.Millisecond)
	return r
}

func TestAddAndAddNext(t *testing.T) {
	r := newTestRecorder()
	r.AddNext(1, []int{2, 3}, 0)
	r.AddNext(0.5, []int{2, 4}, 1)
	r.Add(10, 0.25, nil, 0)
	r.AddNext(0.125, nil, 0)

	require.Len(t, r.Data, 4)
	assert.Equal(t, []int{0, 1, 10, 11}, []int{r.Data[0].Iteration, r.Data[1].Iteration, r.Data[2].Iteration, r.Data[3].Iteration})
	assert.Equal(t, time.Millisecond, r.Data[0].Elapsed)
	assert.Equal(t, 2*time.Millisecond, r.Data[1].Elapsed)
	assert.Equal(t, []int{2, 4}, r.Data[1].Ranks)
	assert.Equal(t, uint(1), r.Data[1].Flags)
}

func TestRanksAreCopied(t *testing.T) {
	r := newTestRecorder()
	ranks := []int{1, 2}
	r.AddNext(1, ranks, 0)
	ranks[0] = 9
	assert.Equal(t, []int{1, 2}, r.Data[0].Ranks)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Start()
		r.AddNext(1, nil, 0)
		r.Reset()
	})
	var buf bytes.Buffer
	require.NoError(t, r.Dump(&buf))
	assert.Empty(t, buf.String())
	assert.Empty(t, r.Histogram(2, false).Buckets())
}

func TestReset(t *testing.T) {
	r := newTestRecorder()
	r.AddNext(1, nil, 0)
	r.Reset()
	assert.Empty(t, r.Data)
	r.AddNext(1, nil, 0)
	assert.Equal(t, 0, r.Data[0].Iteration)
}

func TestDump(t *testing.T) {
	r := newTestRecorder()
	r.Info = "solver: als\nrank: 2"
	r.AddNext(0.5, []int{2, 2}, 3)

	var buf bytes.Buffer
	require.NoError(t, r.Dump(&buf))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"# solver: als",
		"# rank: 2",
		"# ",
		"#itr \ttime[us] \tresidual \tflags \tranks...",
		"0\t1000\t0.5\t3\t2\t2",
	}, lines)
}

func TestDumpToFile(t *testing.T) {
	r := newTestRecorder()
	r.AddNext(1, nil, 0)
	path := filepath.Join(t.TempDir(), "perf.dat")
	require.NoError(t, r.DumpToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "0\t1000\t1\t0\n")

	assert.Error(t, r.DumpToFile(filepath.Join(t.TempDir(), "missing", "perf.dat")))
}

func TestHistogram(t *testing.T) {
	r := newTestRecorder()
	r.AddNext(1, nil, 0)
	r.AddNext(0.5, nil, 0)
	r.AddNext(0.125, nil, 0)
	r.AddNext(0.25, nil, 0) // increase, skipped

	h := r.Histogram(2, false)
	// Rates 1/1000 and 2/1000 per microsecond, each weighted by 1000us.
	assert.Equal(t, map[int]float64{-10: 1000, -9: 1000}, h.Buckets())
	assert.InDelta(t, 2000, h.Total(), 1e-12)

	var buf bytes.Buffer
	require.NoError(t, h.Dump(&buf))
	assert.Equal(t, "0.0009765625\t0.5\n0.001953125\t0.5\n", buf.String())
}

func TestHistogramAssumeConvergence(t *testing.T) {
	r := newTestRecorder()
	r.AddNext(3, nil, 0)
	r.AddNext(2, nil, 0)
	r.AddNext(1, nil, 0)

	// Against the limit 1 the residuals are 2 and 1: one halving in 1000us.
	h := r.Histogram(2, true)
	assert.Equal(t, map[int]float64{-10: 1000}, h.Buckets())
}

func TestHistogramIgnoresInvalidValues(t *testing.T) {
	h := NewHistogram(10)
	h.Add(0, 1)
	h.Add(-1, 1)
	h.Add(150, 2)
	assert.Equal(t, map[int]float64{2: 2}, h.Buckets())
	assert.Panics(t, func() { NewHistogram(1) })
}

func TestHistogramBucketBounds(t *testing.T) {
	h := NewHistogram(10)
	h.Add(1, 1)
	h.Add(9.5, 1)
	h.Add(20, 3)
	h.Add(5000, 5)

	// Bucket 2 stays empty and is omitted.
	assert.Equal(t, map[int]float64{0: 2, 1: 3, 3: 5}, h.Buckets())
	assert.InDelta(t, 10, h.Total(), 1e-12)

	var buf bytes.Buffer
	require.NoError(t, h.Dump(&buf))
	assert.Equal(t, "1\t0.2\n10\t0.3\n1000\t0.5\n", buf.String())
}
