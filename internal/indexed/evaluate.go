package indexed

import (
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/metrics"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Assign evaluates base into out, first resizing out's tensor to the
// dimensions implied by out's index order. Out keeps its representation.
func Assign(out, base *Expr) error {
	if out.Tensor == base.Tensor {
		return ErrAliasing
	}
	dims, err := EvaluatedDimensions(out.Indices, base)
	if err != nil {
		return err
	}
	if !out.Tensor.Dims().Equal(dims) {
		out.Tensor.Reset(dims, out.Tensor.Representation())
	}
	return Evaluate(out, base)
}

// Evaluate writes base into out, permuting, slicing and tracing according to
// the indices of both expressions. Out's dimensions must already match.
//
// Out's previous content is discarded. Its factor is one afterwards, unless
// both sides use the same index order, in which case out shares base's
// storage and factor.
func Evaluate(out, base *Expr) error {
	if out.Tensor == base.Tensor {
		return ErrAliasing
	}
	if base.Tensor.IsDense() && out.Tensor.IsSparse() {
		return fmt.Errorf("%w: dense base into sparse target", ErrUnsupportedEvaluation)
	}
	baseA, err := base.Assign()
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	outA, err := out.Assign()
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if err := checkCorrespondence(outA, baseA); err != nil {
		return err
	}

	start := time.Now()
	path := evaluate(out.Tensor, outA, base.Tensor, baseA)
	metrics.ObserveEvaluation(path, start)
	klog.V(4).InfoS("Evaluated index expression", "path", path, "base", baseA, "target", outA)
	return nil
}

// checkCorrespondence verifies that out's occurrences are exactly base's open
// occurrences, with matching spans and dimensions.
func checkCorrespondence(outA, baseA index.Assignment) error {
	for k, b := range baseA {
		switch b.State {
		case index.StateTraced:
			p := baseA.Partner(k)
			if b.Span != 1 || baseA[p].Span != 1 {
				return index.Malformed(index.ReasonMismatch, "traced index %v must have span 1", b.Index)
			}
			if b.Dimension != baseA[p].Dimension {
				return index.Malformed(index.ReasonMismatch, "traced index %v has dimensions %d and %d", b.Index, b.Dimension, baseA[p].Dimension)
			}
		case index.StateOpen:
			o := outA.Find(b.Index)
			if o < 0 {
				return index.Malformed(index.ReasonMismatch, "base index %v missing from target %v", b.Index, outA)
			}
			if outA[o].Span != b.Span || outA[o].Dimension != b.Dimension {
				return index.Malformed(index.ReasonMismatch, "index %v covers span %d dimension %d in base but span %d dimension %d in target",
					b.Index, b.Span, b.Dimension, outA[o].Span, outA[o].Dimension)
			}
		}
	}
	for _, o := range outA {
		if !o.IsOpen() {
			return index.Malformed(index.ReasonMismatch, "target index %v is %s", o.Index, o.State)
		}
		b := baseA.Find(o.Index)
		if b < 0 || !baseA[b].IsOpen() {
			return index.Malformed(index.ReasonMismatch, "target index %v is not an open index of base %v", o.Index, baseA)
		}
	}
	return nil
}

func evaluate(out *tensor.Tensor, outA index.Assignment, base *tensor.Tensor, baseA index.Assignment) string {
	if out.Size() == 0 {
		if out.IsDense() {
			out.OverrideDense()
		} else {
			out.OverrideSparse()
		}
		return metrics.PathEmpty
	}

	if baseA.AllOpen() && index.SameOrder(outA.Indices(), baseA.Indices()) {
		dims := out.Dims().Clone()
		dense := out.IsDense()
		out.Assign(base)
		if err := out.Reinterpret(dims); err != nil {
			panic(fmt.Sprintf("indexed: shared evaluation changed size: %v", err))
		}
		if dense {
			out.UseDense()
		}
		return metrics.PathShared
	}

	switch {
	case base.IsDense():
		evaluateDense(out, outA, base, baseA)
		return metrics.PathDense
	case out.IsSparse():
		evaluateSparse(out, outA, base, baseA)
		return metrics.PathSparse
	default:
		evaluateSparse(out, outA, base, baseA)
		return metrics.PathSparseDense
	}
}

// evaluateDense walks the target in row-major order. The trailing run of
// indices that base and target share in the same order is contiguous in both
// buffers and is copied (or accumulated) as one block.
func evaluateDense(out *tensor.Tensor, outA index.Assignment, base *tensor.Tensor, baseA index.Assignment) {
	steps := baseA.Steps()
	data := base.UnsanitizedDense()
	factor := base.Factor()

	fixedOffset := 0
	var traceSteps, traceDims []int
	for k, b := range baseA {
		switch b.State {
		case index.StateFixed:
			fixedOffset += b.Index.Value() * steps[k]
		case index.StateTraced:
			if p := baseA.Partner(k); p > k {
				traceSteps = append(traceSteps, steps[k]+steps[p])
				traceDims = append(traceDims, b.Dimension)
			}
		}
	}

	ordered := 0
	for ordered < len(outA) && ordered < len(baseA) {
		o, b := outA[len(outA)-1-ordered], baseA[len(baseA)-1-ordered]
		if !b.IsOpen() || !o.Index.Equal(b.Index) {
			break
		}
		ordered++
	}
	block := 1
	if ordered > 0 {
		first := len(baseA) - ordered
		block = steps[first] * baseA[first].Dimension
	}

	outer := outA[:len(outA)-ordered]
	outerSteps := make([]int, len(outer))
	outerDims := make([]int, len(outer))
	for k, o := range outer {
		outerSteps[k] = steps[baseA.Find(o.Index)]
		outerDims[k] = o.Dimension
	}

	walk := newStepper(outerSteps, outerDims)
	trace := newStepper(traceSteps, traceDims)
	traced := len(traceSteps) > 0
	diagonal := trace.count()

	target := out.OverrideDense()
	for outPos := 0; outPos < len(target); outPos += block {
		basePos := fixedOffset + walk.pos
		dst := target[outPos : outPos+block]
		if !traced {
			for i, v := range data[basePos : basePos+block] {
				dst[i] = factor * v
			}
		} else {
			for range diagonal {
				src := data[basePos+trace.pos : basePos+trace.pos+block]
				for i, v := range src {
					dst[i] += factor * v
				}
				trace.advance()
			}
		}
		walk.advance()
	}
}

// evaluateSparse re-keys every stored entry of base into out's index order,
// dropping entries off a fixed coordinate or off a trace diagonal.
//
// A sparse target without fixed or traced indices receives every key at most
// once. Otherwise entries landing on the same key are summed, and keys whose
// sum cancels to zero are dropped.
func evaluateSparse(out *tensor.Tensor, outA index.Assignment, base *tensor.Tensor, baseA index.Assignment) {
	steps := baseA.Steps()
	outSteps := outA.Steps()
	entries := base.UnsanitizedSparse()
	factor := base.Factor()
	peaceful := baseA.AllOpen()

	targetSteps := make([]int, len(baseA))
	partners := make([]int, len(baseA))
	for k, b := range baseA {
		switch b.State {
		case index.StateOpen:
			targetSteps[k] = outSteps[outA.Find(b.Index)]
		case index.StateTraced:
			partners[k] = baseA.Partner(k)
		}
	}

	locals := make([]int, len(baseA))
	rekey := func(pos int) (int, bool) {
		key := 0
		if peaceful {
			for k, b := range baseA {
				key += (pos / steps[k]) % b.Dimension * targetSteps[k]
			}
			return key, true
		}
		for k, b := range baseA {
			locals[k] = (pos / steps[k]) % b.Dimension
		}
		for k, b := range baseA {
			switch b.State {
			case index.StateFixed:
				if locals[k] != b.Index.Value() {
					return 0, false
				}
			case index.StateTraced:
				if locals[k] != locals[partners[k]] {
					return 0, false
				}
			default:
				key += locals[k] * targetSteps[k]
			}
		}
		return key, true
	}

	if out.IsSparse() {
		target := out.OverrideSparse()
		for pos, v := range entries {
			key, ok := rekey(pos)
			if !ok {
				continue
			}
			if peaceful {
				if _, dup := target[key]; dup {
					panic(fmt.Sprintf("indexed: sparse re-key collision at %d", key))
				}
				target[key] = factor * v
				continue
			}
			if sum := target[key] + factor*v; sum != 0 {
				target[key] = sum
			} else {
				delete(target, key)
			}
		}
		return
	}

	target := out.OverrideDense()
	for pos, v := range entries {
		if key, ok := rekey(pos); ok {
			target[key] += factor * v
		}
	}
}
