package tensor

import "fmt"

// ResizeDimension changes the extent of mode to newDim, adding zero slates at
// the end or dropping the last ones.
//
// Example:
//
//	t, _ := tensor.FromSlice(tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
//	_ = t.ResizeDimension(1, 3) // [[1 2 0] [3 4 0]]
func (t *Tensor) ResizeDimension(mode, newDim int) error {
	if mode < 0 || mode >= len(t.dims) {
		return fmt.Errorf("resize: mode %d out of range for degree %d", mode, len(t.dims))
	}
	return t.ResizeDimensionAt(mode, newDim, t.dims[mode])
}

// ResizeDimensionAt changes the extent of mode to newDim. When growing, the
// new zero slates are inserted before slate cutPos. When shrinking, the
// slates directly before cutPos are removed.
func (t *Tensor) ResizeDimensionAt(mode, newDim, cutPos int) error {
	if mode < 0 || mode >= len(t.dims) {
		return fmt.Errorf("resize: mode %d out of range for degree %d", mode, len(t.dims))
	}
	if newDim < 0 {
		return fmt.Errorf("resize: negative dimension %d", newDim)
	}
	oldDim := t.dims[mode]
	if cutPos < 0 || cutPos > oldDim {
		return fmt.Errorf("resize: cut position %d out of range [0, %d]", cutPos, oldDim)
	}
	if newDim == oldDim {
		return nil
	}

	var slate func(int) int // new slate -> old slate, -1 for a fresh zero slate
	if newDim > oldDim {
		added := newDim - oldDim
		slate = func(s int) int {
			switch {
			case s < cutPos:
				return s
			case s < cutPos+added:
				return -1
			default:
				return s - added
			}
		}
	} else {
		removed := oldDim - newDim
		if cutPos < removed {
			return fmt.Errorf("resize: cannot remove %d slates before position %d", removed, cutPos)
		}
		start := cutPos - removed
		slate = func(s int) int {
			if s < start {
				return s
			}
			return s + removed
		}
	}

	t.remapSlates(mode, newDim, slate)
	return nil
}

// RemoveSlate deletes slate pos of the given mode.
func (t *Tensor) RemoveSlate(mode, pos int) error {
	if mode < 0 || mode >= len(t.dims) {
		return fmt.Errorf("remove slate: mode %d out of range for degree %d", mode, len(t.dims))
	}
	if pos < 0 || pos >= t.dims[mode] {
		return fmt.Errorf("remove slate: position %d out of range for dimension %d", pos, t.dims[mode])
	}
	return t.ResizeDimensionAt(mode, t.dims[mode]-1, pos+1)
}

// remapSlates rebuilds the storage with dims[mode] = newDim, reading new
// slate s from old slate slate(s).
func (t *Tensor) remapSlates(mode, newDim int, slate func(int) int) {
	oldDim := t.dims[mode]
	after := 1
	for _, d := range t.dims[mode+1:] {
		after *= d
	}

	newDims := t.dims.Clone()
	newDims[mode] = newDim
	newSize := newDims.NumElements()

	if t.rep == Dense {
		old := t.dense.data
		data := make([]float64, newSize)
		before := 1
		for _, d := range t.dims[:mode] {
			before *= d
		}
		for b := range before {
			for s := range newDim {
				src := slate(s)
				if src < 0 {
					continue
				}
				copy(data[(b*newDim+s)*after:(b*newDim+s+1)*after], old[(b*oldDim+src)*after:(b*oldDim+src+1)*after])
			}
		}
		t.dense.release()
		t.dense = newBuffer(data)
	} else {
		inverse := make(map[int]int, newDim)
		for s := range newDim {
			if src := slate(s); src >= 0 {
				inverse[src] = s
			}
		}
		data := make(map[int]float64)
		for pos, v := range t.sparse.data {
			b, rest := pos/(oldDim*after), pos%(oldDim*after)
			s, r := rest/after, rest%after
			ns, kept := inverse[s]
			if !kept {
				continue
			}
			data[(b*newDim+ns)*after+r] = v
		}
		t.sparse.release()
		t.sparse = newBuffer(data)
	}

	t.dims = newDims
	t.size = newSize
}

// ModifyDiagonal replaces every diagonal entry (k, k) of a degree-2 tensor by
// fn(value, k).
func (t *Tensor) ModifyDiagonal(fn func(value float64, k int) float64) error {
	if len(t.dims) != 2 {
		return fmt.Errorf("modify diagonal: degree %d tensor, need degree 2", len(t.dims))
	}
	rows, cols := t.dims[0], t.dims[1]
	for k := range min(rows, cols) {
		pos := k*cols + k
		t.SetFlat(pos, fn(t.AtFlat(pos), k))
	}
	return nil
}
