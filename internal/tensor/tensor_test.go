package tensor

import (
	"maps"
	"math"
	"math/rand"
	"slices"
	"testing"
)

// seq holds 1..size in row-major order.
func seq(dims Shape) *Tensor {
	return FromFunc(dims, func(coords []int) float64 { return float64(dims.Offset(coords) + 1) })
}

// Helper function to create tensor from slice, failing the test on error.
func mustFromSlice(t *testing.T, dims Shape, data []float64) *Tensor {
	t.Helper()
	x, err := FromSlice(dims, data)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return x
}

func mustNoError(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", what, err)
	}
}

func assertValues(t *testing.T, x *Tensor, want []float64, msg string) {
	t.Helper()
	if got := x.Values(); !slices.Equal(got, want) {
		t.Errorf("%s: expected values %v, got %v", msg, want, got)
	}
}

func assertEqualFloat(t *testing.T, expected, actual float64, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func assertClose(t *testing.T, expected, actual float64, msg string) {
	t.Helper()
	if math.Abs(expected-actual) > 1e-12 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func assertPanics(t *testing.T, msg string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", msg)
		}
	}()
	f()
}

func TestRepresentationString(t *testing.T) {
	tests := []struct {
		rep  Representation
		want string
	}{
		{Dense, "dense"},
		{Sparse, "sparse"},
		{Representation(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.rep.String(); got != tt.want {
			t.Errorf("Representation(%d).String() = %q, want %q", tt.rep, got, tt.want)
		}
	}
}

func TestNewTensor(t *testing.T) {
	d := New(Shape{2, 3}, Dense)
	if d.Degree() != 2 || d.Size() != 6 || d.NNZ() != 6 {
		t.Errorf("dense: degree %d, size %d, nnz %d; want 2, 6, 6", d.Degree(), d.Size(), d.NNZ())
	}
	assertEqualFloat(t, 1, d.Factor(), "factor")
	if !d.IsDense() {
		t.Error("expected dense tensor")
	}

	s := New(Shape{2, 3}, Sparse)
	if !s.IsSparse() {
		t.Error("expected sparse tensor")
	}
	if s.NNZ() != 0 {
		t.Errorf("sparse NNZ() = %d, want 0", s.NNZ())
	}

	scalar := Scalar(4)
	if scalar.Degree() != 0 || scalar.Size() != 1 {
		t.Errorf("scalar: degree %d, size %d; want 0, 1", scalar.Degree(), scalar.Size())
	}
	assertEqualFloat(t, 4, scalar.At(), "scalar value")

	if empty := Zeros(Shape{3, 0}); empty.Size() != 0 {
		t.Errorf("Zeros([3 0]).Size() = %d, want 0", empty.Size())
	}

	assertPanics(t, "negative extent", func() { New(Shape{-1}, Dense) })
}

func TestFromSlice(t *testing.T) {
	if _, err := FromSlice(Shape{2, 2}, []float64{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := FromSlice(Shape{-2}, nil); err == nil {
		t.Error("expected error for negative extent")
	}

	x := mustFromSlice(t, Shape{2, 2}, []float64{1, 2, 3, 4})
	assertEqualFloat(t, 3, x.At(1, 0), "At(1, 0)")
	assertPanics(t, "coordinate out of range", func() { x.At(2, 0) })
	assertPanics(t, "wrong coordinate count", func() { x.At(0) })
}

func TestFromEntries(t *testing.T) {
	x, err := FromEntries(Shape{2, 2}, map[int]float64{0: 1, 3: 4, 2: 0})
	mustNoError(t, err, "FromEntries")
	if x.NNZ() != 2 {
		t.Errorf("NNZ() = %d, want 2", x.NNZ())
	}
	if got := x.SortedKeys(); !slices.Equal(got, []int{0, 3}) {
		t.Errorf("SortedKeys() = %v, want [0 3]", got)
	}
	assertValues(t, x, []float64{1, 0, 0, 4}, "entries")

	if _, err := FromEntries(Shape{2, 2}, map[int]float64{4: 1}); err == nil {
		t.Error("expected error for out of range position")
	}
}

func TestDirac(t *testing.T) {
	x := Dirac(Shape{2, 3}, 1, 2)
	if x.NNZ() != 1 {
		t.Errorf("NNZ() = %d, want 1", x.NNZ())
	}
	assertEqualFloat(t, 1, x.At(1, 2), "At(1, 2)")
	assertEqualFloat(t, 0, x.At(0, 2), "At(0, 2)")
}

func TestLazyFactor(t *testing.T) {
	x := mustFromSlice(t, Shape{3}, []float64{1, 2, 3})

	x.Scale(2)
	if got := x.UnsanitizedDense(); !slices.Equal(got, []float64{1, 2, 3}) {
		t.Errorf("scaling must not touch storage, got %v", got)
	}
	assertValues(t, x, []float64{2, 4, 6}, "scaled")
	assertEqualFloat(t, 4, x.At(1), "At(1)")

	x.ApplyFactor()
	assertEqualFloat(t, 1, x.Factor(), "factor after ApplyFactor")
	if got := x.UnsanitizedDense(); !slices.Equal(got, []float64{2, 4, 6}) {
		t.Errorf("storage after ApplyFactor = %v, want [2 4 6]", got)
	}
}

func TestCopyOnWrite(t *testing.T) {
	a := Ones(Shape{2, 2})
	b := a.Clone()

	if !a.SameStorage(b) {
		t.Error("clone must share storage")
	}
	if a.IsUnique() {
		t.Error("shared storage reported as unique")
	}

	b.Set(5, 0, 0)
	if a.SameStorage(b) {
		t.Error("write must privatize the clone")
	}
	assertEqualFloat(t, 1, a.At(0, 0), "original")
	assertEqualFloat(t, 5, b.At(0, 0), "clone")
	if !a.IsUnique() || !b.IsUnique() {
		t.Error("both tensors must own their storage after the write")
	}
}

func TestCopyOnWriteSparse(t *testing.T) {
	a := Dirac(Shape{3}, 1)
	b := a.Clone()
	b.Scale(3)
	b.Set(0, 1)

	if a.NNZ() != 1 {
		t.Errorf("original NNZ() = %d, want 1", a.NNZ())
	}
	if b.NNZ() != 0 {
		t.Errorf("writing zero must remove the entry, NNZ() = %d", b.NNZ())
	}
	assertEqualFloat(t, 1, a.At(1), "original")
}

func TestAssignSharesStorage(t *testing.T) {
	a := Full(Shape{2}, 7)
	b := Zeros(Shape{5})
	b.Assign(a)

	if !b.Dims().Equal(Shape{2}) {
		t.Errorf("Dims() = %v, want [2]", b.Dims())
	}
	if !a.SameStorage(b) {
		t.Error("Assign must share storage")
	}

	b.Assign(b)
	if !a.SameStorage(b) {
		t.Error("self Assign must keep storage")
	}
}

func TestConversions(t *testing.T) {
	x := mustFromSlice(t, Shape{2, 2}, []float64{0, 2, 0, 4})
	x.Scale(0.5)

	x.UseSparse()
	if !x.IsSparse() || x.NNZ() != 2 {
		t.Errorf("UseSparse: sparse %v, nnz %d; want true, 2", x.IsSparse(), x.NNZ())
	}
	assertEqualFloat(t, 0.5, x.Factor(), "factor kept by UseSparse")
	assertValues(t, x, []float64{0, 1, 0, 2}, "sparse")

	x.UseDense()
	if !x.IsDense() {
		t.Error("UseDense did not convert")
	}
	assertValues(t, x, []float64{0, 1, 0, 2}, "dense")

	if entries := x.SparseData(); !maps.Equal(entries, map[int]float64{1: 1, 3: 2}) {
		t.Errorf("SparseData() = %v", entries)
	}
	assertEqualFloat(t, 1, x.Factor(), "factor after SparseData")
}

func TestOverride(t *testing.T) {
	x := Full(Shape{2}, 3)
	y := x.Clone()
	x.Scale(2)

	data := x.OverrideSparse()
	data[1] = 9
	if !x.IsSparse() {
		t.Error("OverrideSparse must switch to sparse")
	}
	assertValues(t, x, []float64{0, 9}, "overridden")
	assertValues(t, y, []float64{3, 3}, "clone")

	if dense := x.OverrideDense(); !slices.Equal(dense, []float64{0, 0}) {
		t.Errorf("OverrideDense() = %v, want zeros", dense)
	}
}

func TestReset(t *testing.T) {
	x := Ones(Shape{2})
	x.Scale(4)
	x.Reset(Shape{3, 1}, Sparse)

	if !x.Dims().Equal(Shape{3, 1}) || x.Size() != 3 || x.NNZ() != 0 {
		t.Errorf("Reset: dims %v, size %d, nnz %d", x.Dims(), x.Size(), x.NNZ())
	}
	assertEqualFloat(t, 1, x.Factor(), "factor")
}

func TestFrobNorm(t *testing.T) {
	x := mustFromSlice(t, Shape{2, 2}, []float64{1, 2, 2, 4})
	assertClose(t, 5, x.FrobNorm(), "dense")

	x.Scale(-2)
	assertClose(t, 10, x.FrobNorm(), "scaled")

	x.UseSparse()
	assertClose(t, 10, x.FrobNorm(), "sparse")
}

func TestAddScaled(t *testing.T) {
	a := mustFromSlice(t, Shape{3}, []float64{1, 2, 3})
	b := Dirac(Shape{3}, 2)
	b.Scale(10)

	mustNoError(t, a.AddScaled(2, b), "AddScaled")
	assertValues(t, a, []float64{1, 2, 23}, "dense += sparse")

	mustNoError(t, a.AddScaled(1, a), "AddScaled self")
	assertValues(t, a, []float64{2, 4, 46}, "self")

	s := Dirac(Shape{3}, 0)
	mustNoError(t, s.AddScaled(-1, Dirac(Shape{3}, 0)), "AddScaled cancel")
	if s.NNZ() != 0 {
		t.Errorf("cancelled entry kept, NNZ() = %d", s.NNZ())
	}

	s2 := Dirac(Shape{3}, 0)
	mustNoError(t, s2.AddScaled(1, Ones(Shape{3})), "AddScaled sparse += dense")
	if !s2.IsDense() {
		t.Error("sparse += dense must densify")
	}
	assertValues(t, s2, []float64{2, 1, 1}, "sparse += dense")

	if err := a.AddScaled(1, Ones(Shape{4})); err == nil {
		t.Error("expected error for shape mismatch")
	}
}

func TestRandom(t *testing.T) {
	x := Random(Shape{4, 4}, rand.New(rand.NewSource(1)))
	y := Random(Shape{4, 4}, rand.New(rand.NewSource(1)))
	assertEqualFloat(t, 0, x.MaxDifference(y), "same seed")
	if x.FrobNorm() <= 0 {
		t.Error("random tensor is zero")
	}

	s := RandomSparse(Shape{10, 10}, 5, rand.New(rand.NewSource(2)))
	if s.NNZ() == 0 || s.NNZ() > 5 {
		t.Errorf("RandomSparse NNZ() = %d, want 1..5", s.NNZ())
	}
}

func TestReinterpret(t *testing.T) {
	x := seq(Shape{2, 3})
	mustNoError(t, x.Reinterpret(Shape{3, 2}), "Reinterpret")
	assertEqualFloat(t, 4, x.At(1, 1), "At(1, 1)")
	if err := x.Reinterpret(Shape{4, 2}); err == nil {
		t.Error("expected error for size change")
	}
}

func TestRemoveSlateAndResize(t *testing.T) {
	x := seq(Shape{3, 3})

	mustNoError(t, x.RemoveSlate(0, 1), "RemoveSlate")
	assertValues(t, x, []float64{1, 2, 3, 7, 8, 9}, "remove row 1")

	mustNoError(t, x.ResizeDimensionAt(0, 3, 1), "ResizeDimensionAt")
	assertValues(t, x, []float64{1, 2, 3, 0, 0, 0, 7, 8, 9}, "insert row at 1")

	mustNoError(t, x.RemoveSlate(1, 0), "RemoveSlate")
	assertValues(t, x, []float64{2, 3, 0, 0, 8, 9}, "remove column 0")

	mustNoError(t, x.ResizeDimensionAt(1, 3, 1), "ResizeDimensionAt")
	assertValues(t, x, []float64{2, 0, 3, 0, 0, 0, 8, 0, 9}, "insert column at 1")

	if x.RemoveSlate(2, 0) == nil {
		t.Error("expected error for mode out of range")
	}
	if x.RemoveSlate(0, 3) == nil {
		t.Error("expected error for position out of range")
	}
	if x.ResizeDimensionAt(0, 1, 1) == nil {
		t.Error("expected error for cut position beyond new dimension")
	}
}

func TestDimensionReduction(t *testing.T) {
	tests := []struct {
		mode int
		want []float64
	}{
		{0, []float64{1, 2, 3, 4}},
		{1, []float64{1, 2, 5, 6}},
		{2, []float64{1, 3, 5, 7}},
	}
	for _, tt := range tests {
		for _, rep := range []Representation{Dense, Sparse} {
			x := seq(Shape{2, 2, 2})
			if rep == Sparse {
				x.UseSparse()
			}
			mustNoError(t, x.ResizeDimension(tt.mode, 1), "ResizeDimension")
			if x.Size() != 4 {
				t.Errorf("mode %d %s: Size() = %d, want 4", tt.mode, rep, x.Size())
			}
			if got := x.Values(); !slices.Equal(got, tt.want) {
				t.Errorf("mode %d %s: got %v, want %v", tt.mode, rep, got, tt.want)
			}
		}
	}
}

func TestDimensionExpansion(t *testing.T) {
	tests := []struct {
		mode int
		want []float64
	}{
		{0, []float64{1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0}},
		{1, []float64{1, 2, 3, 4, 0, 0, 5, 6, 7, 8, 0, 0}},
		{2, []float64{1, 2, 0, 3, 4, 0, 5, 6, 0, 7, 8, 0}},
	}
	for _, tt := range tests {
		for _, rep := range []Representation{Dense, Sparse} {
			x := seq(Shape{2, 2, 2})
			if rep == Sparse {
				x.UseSparse()
			}
			shared := x.Clone()
			mustNoError(t, x.ResizeDimension(tt.mode, 3), "ResizeDimension")
			if got := x.Values(); !slices.Equal(got, tt.want) {
				t.Errorf("mode %d %s: got %v, want %v", tt.mode, rep, got, tt.want)
			}
			if shared.Size() != 8 {
				t.Errorf("mode %d %s: clone changed size to %d", tt.mode, rep, shared.Size())
			}
		}
	}
}

func TestModifyDiagonal(t *testing.T) {
	x := seq(Shape{4, 4})
	mustNoError(t, x.Reinterpret(Shape{2, 8}), "Reinterpret")
	mustNoError(t, x.ModifyDiagonal(func(float64, int) float64 { return 0 }), "ModifyDiagonal")
	assertEqualFloat(t, 0, x.AtFlat(0), "AtFlat(0)")
	assertEqualFloat(t, 0, x.AtFlat(9), "AtFlat(9)")
	assertEqualFloat(t, 2, x.AtFlat(1), "AtFlat(1)")

	y := seq(Shape{3, 3})
	mustNoError(t, y.ModifyDiagonal(func(v float64, k int) float64 { return v + float64(k) }), "ModifyDiagonal")
	assertValues(t, y, []float64{1, 2, 3, 4, 6, 6, 7, 8, 11}, "diagonal plus index")

	if seq(Shape{2, 2, 2}).ModifyDiagonal(func(v float64, _ int) float64 { return math.Abs(v) }) == nil {
		t.Error("expected error for degree 3")
	}
}
