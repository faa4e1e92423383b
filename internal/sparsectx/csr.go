package sparsectx

import (
	"slices"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix. A matrix with a zero dimension has
// no backing storage.
type CSR struct {
	Rows, Cols int

	m *sparse.CSR
}

// FromMap builds a rows×cols CSR matrix from row-major positions. With
// transpose set, the result is the cols×rows transpose instead.
func FromMap(entries map[int]float64, rows, cols int, transpose bool) *CSR {
	outRows, outCols := rows, cols
	if transpose {
		outRows, outCols = cols, rows
	}
	c := &CSR{Rows: outRows, Cols: outCols}
	if cols == 0 || rows == 0 {
		return c
	}

	keys := make([]int, 0, len(entries))
	for pos, v := range entries {
		if v == 0 {
			continue
		}
		if transpose {
			r, col := pos/cols, pos%cols
			keys = append(keys, col*rows+r)
		} else {
			keys = append(keys, pos)
		}
	}
	slices.Sort(keys)

	rowPtr := make([]int, outRows+1)
	colIdx := make([]int, 0, len(keys))
	values := make([]float64, 0, len(keys))
	for _, key := range keys {
		r, col := key/outCols, key%outCols
		rowPtr[r+1]++
		colIdx = append(colIdx, col)
		if transpose {
			values = append(values, entries[col*cols+r])
		} else {
			values = append(values, entries[key])
		}
	}
	for r := range outRows {
		rowPtr[r+1] += rowPtr[r]
	}
	c.m = sparse.NewCSR(outRows, outCols, rowPtr, colIdx, values)
	return c
}

// Matrix returns the underlying matrix, or nil for a matrix with a zero
// dimension.
func (c *CSR) Matrix() mat.Matrix {
	if c.m == nil {
		return nil
	}
	return c.m
}

// ToMap returns the non-zero entries scaled by alpha as row-major positions.
func (c *CSR) ToMap(alpha float64) map[int]float64 {
	out := make(map[int]float64, c.NNZ())
	if c.m == nil {
		return out
	}
	c.m.DoNonZero(func(i, j int, v float64) {
		if v != 0 {
			out[i*c.Cols+j] = alpha * v
		}
	})
	return out
}

// NNZ returns the number of non-zero entries.
func (c *CSR) NNZ() int {
	if c.m == nil {
		return 0
	}
	n := 0
	c.m.DoNonZero(func(_, _ int, v float64) {
		if v != 0 {
			n++
		}
	})
	return n
}

// Dense returns the matrix as a row-major slice.
func (c *CSR) Dense() []float64 {
	out := make([]float64, c.Rows*c.Cols)
	if c.m == nil {
		return out
	}
	c.m.DoNonZero(func(i, j int, v float64) {
		out[i*c.Cols+j] = v
	})
	return out
}
