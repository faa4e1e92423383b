// Package perfdata records convergence data of iterative tensor algorithms:
// per data point the iteration, elapsed time, residual, ranks and flags.
package perfdata

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// DataPoint is one recorded measurement.
type DataPoint struct {
	Iteration int
	Elapsed   time.Duration
	Residual  float64
	Ranks     []int
	Flags     uint
}

// Recorder collects data points. A nil Recorder records nothing, so
// algorithms can take one unconditionally.
type Recorder struct {
	// PrintProgress logs every added point through klog.
	PrintProgress bool

	// Info is written as a comment header by Dump.
	Info string

	Data []DataPoint

	start time.Time
	now   func() time.Time
}

// New creates an active recorder.
func New(printProgress bool) *Recorder {
	return &Recorder{PrintProgress: printProgress, now: time.Now}
}

// Start sets the time origin. Add starts the clock implicitly.
func (r *Recorder) Start() {
	if r == nil {
		return
	}
	r.start = r.clock()
}

// Reset drops all data points and stops the clock.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.Data = nil
	r.start = time.Time{}
}

func (r *Recorder) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// Add records a data point for the given iteration.
func (r *Recorder) Add(iteration int, residual float64, ranks []int, flags uint) {
	if r == nil {
		return
	}
	if r.start.IsZero() {
		r.Start()
	}
	p := DataPoint{
		Iteration: iteration,
		Elapsed:   r.clock().Sub(r.start),
		Residual:  residual,
		Ranks:     append([]int(nil), ranks...),
		Flags:     flags,
	}
	r.Data = append(r.Data, p)

	if r.PrintProgress {
		klog.Infof("Iteration %4d Time: %6.2fs Residual: %11.6e Flags: %d Ranks: %v",
			p.Iteration, p.Elapsed.Seconds(), p.Residual, p.Flags, p.Ranks)
	}
}

// AddNext records a data point for the iteration after the last one.
func (r *Recorder) AddNext(residual float64, ranks []int, flags uint) {
	if r == nil {
		return
	}
	next := 0
	if len(r.Data) > 0 {
		next = r.Data[len(r.Data)-1].Iteration + 1
	}
	r.Add(next, residual, ranks, flags)
}

// Dump writes the data as tab separated columns, time in microseconds,
// after a '#' comment header carrying Info.
func (r *Recorder) Dump(w io.Writer) error {
	if r == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	header := "# " + strings.ReplaceAll(r.Info, "\n", "\n# ")
	fmt.Fprintf(bw, "%s\n# \n#itr \ttime[us] \tresidual \tflags \tranks...\n", header)
	for _, p := range r.Data {
		fmt.Fprintf(bw, "%d\t%d\t%g\t%d", p.Iteration, p.Elapsed.Microseconds(), p.Residual, p.Flags)
		for _, rank := range p.Ranks {
			fmt.Fprintf(bw, "\t%d", rank)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// DumpToFile writes Dump's output to the named file.
func (r *Recorder) DumpToFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dump performance data: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return r.Dump(f)
}

// Histogram returns the log-histogram of convergence rates. Between two
// points with decreasing residual the rate is alpha in
// r2 = r1 * 2^(-alpha * dt), with dt in microseconds, weighted by dt.
// With assumeConvergence the final residual is taken as the limit and
// subtracted from all earlier ones.
func (r *Recorder) Histogram(base float64, assumeConvergence bool) *Histogram {
	h := NewHistogram(base)
	if r == nil {
		return h
	}
	points := append([]DataPoint(nil), r.Data...)
	if assumeConvergence && len(points) > 0 {
		final := points[len(points)-1].Residual
		points = points[:len(points)-1]
		for k := range points {
			points[k].Residual -= final
		}
	}

	for k := 1; k < len(points); k++ {
		prev, cur := points[k-1], points[k]
		if cur.Residual >= prev.Residual {
			continue
		}
		dt := (cur.Elapsed - prev.Elapsed).Microseconds()
		if dt <= 0 {
			continue
		}
		exponent := math.Log2(cur.Residual / prev.Residual)
		h.Add(-exponent/float64(dt), float64(dt))
	}
	return h
}
