package perfdata

import (
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram accumulates weights in logarithmic buckets: bucket b holds the
// values in [base^b, base^(b+1)).
type Histogram struct {
	Base float64

	// exponents holds log_base of every added value.
	exponents []float64
	weights   []float64
}

// NewHistogram creates an empty histogram. Panics if base <= 1.
func NewHistogram(base float64) *Histogram {
	if !(base > 1) {
		panic(fmt.Sprintf("perfdata: histogram base %g must exceed 1", base))
	}
	return &Histogram{Base: base}
}

// Add adds weight to the bucket of value. Non-positive and non-finite
// values are ignored.
func (h *Histogram) Add(value, weight float64) {
	if !(value > 0) || math.IsInf(value, 1) {
		return
	}
	h.exponents = append(h.exponents, math.Log(value)/math.Log(h.Base))
	h.weights = append(h.weights, weight)
}

// Total returns the sum of all added weights.
func (h *Histogram) Total() float64 {
	return floats.Sum(h.weights)
}

// Buckets returns the weight of every non-empty bucket.
func (h *Histogram) Buckets() map[int]float64 {
	out := make(map[int]float64)
	if len(h.exponents) == 0 {
		return out
	}

	x := slices.Clone(h.exponents)
	w := slices.Clone(h.weights)
	stat.SortWeighted(x, w)

	lo := math.Floor(x[0])
	hi := math.Floor(x[len(x)-1]) + 1
	dividers := floats.Span(make([]float64, int(hi-lo)+1), lo, hi)
	for k, weight := range stat.Histogram(nil, dividers, x, w) {
		if weight != 0 {
			out[int(lo)+k] = weight
		}
	}
	return out
}

// Dump writes one "lower bound <tab> relative weight" line per bucket in
// ascending order.
func (h *Histogram) Dump(w io.Writer) error {
	total := h.Total()
	buckets := h.Buckets()
	for _, b := range slices.Sorted(maps.Keys(buckets)) {
		if _, err := fmt.Fprintf(w, "%g\t%g\n", math.Pow(h.Base, float64(b)), buckets[b]/total); err != nil {
			return err
		}
	}
	return nil
}
