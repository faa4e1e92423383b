package job

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/born-ml/tensornet/internal/indexed"
	"github.com/born-ml/tensornet/internal/network"
	"github.com/born-ml/tensornet/internal/perfdata"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Options configures Run.
type Options struct {
	// Strategy orders the contractions of product operations.
	// Nil selects network.Generic.
	Strategy network.Strategy

	// Recorder receives one data point per operation: the Frobenius norm
	// of the result as residual and its dimensions as ranks. May be nil.
	Recorder *perfdata.Recorder
}

// Run builds the job's tensors and executes its operations in order. It
// returns the tensors named in Outputs, or every tensor when Outputs is
// empty. The context is checked between operations.
func (j *Job) Run(ctx context.Context, opts Options) (map[string]*tensor.Tensor, error) {
	logger := klog.FromContext(ctx).WithValues("job", j.Name)
	if opts.Strategy == nil {
		opts.Strategy = network.Generic{}
	}

	ws := make(map[string]*tensor.Tensor, len(j.Tensors))
	for name, spec := range j.Tensors {
		t, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		ws[name] = t
	}

	opts.Recorder.Start()
	for k, op := range j.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		name, out, err := op.execute(ws, opts.Strategy)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s %s): %w", k, op.Op, op.Target, err)
		}
		if old, ok := ws[name]; ok {
			old.Release()
		}
		ws[name] = out

		logger.V(2).Info("Executed operation", "index", k, "op", op.Op, "target", op.Target, "dims", out.Dims(), "elapsed", time.Since(start))
		opts.Recorder.AddNext(out.FrobNorm(), out.Dims(), 0)
	}

	if len(j.Outputs) == 0 {
		return ws, nil
	}
	result := make(map[string]*tensor.Tensor, len(j.Outputs))
	for _, name := range j.Outputs {
		result[name] = ws[name]
	}
	for name, t := range ws {
		if _, ok := result[name]; !ok {
			t.Release()
		}
	}
	return result, nil
}

// execute evaluates op into a fresh tensor and returns it with the target
// name. The workspace is not modified.
func (op Operation) execute(ws map[string]*tensor.Tensor, strategy network.Strategy) (string, *tensor.Tensor, error) {
	scope := Scope{}
	sources := make([]*indexed.Expr, len(op.Sources))
	for k, src := range op.Sources {
		e, err := ParseExpr(src)
		if err != nil {
			return "", nil, err
		}
		t, ok := ws[e.Tensor]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownTensor, e.Tensor)
		}
		sources[k] = indexed.New(t, scope.Bind(e)...)
	}

	target, err := ParseExpr(op.Target)
	if err != nil {
		return "", nil, err
	}
	rep := tensor.Dense
	if old, ok := ws[target.Tensor]; ok {
		rep = old.Representation()
	} else if op.Sparse {
		rep = tensor.Sparse
	}
	out := indexed.New(tensor.New(nil, rep), scope.Bind(target)...)

	switch op.Op {
	case OpAssign:
		err = indexed.Assign(out, sources[0])
	case OpSum:
		err = indexed.Sum(out, sources[0], sources[1])
	case OpProduct:
		err = product(out, sources, strategy)
	default:
		err = fmt.Errorf("%w: unknown op %q", ErrInvalid, op.Op)
	}
	if err != nil {
		return "", nil, err
	}

	if op.Scale != 0 {
		out.Tensor.Scale(op.Scale)
	}
	return target.Tensor, out.Tensor, nil
}

func product(out *indexed.Expr, sources []*indexed.Expr, strategy network.Strategy) error {
	acc, err := network.FromIndexed(sources[0], network.WithStrategy(strategy))
	if err != nil {
		return err
	}
	for _, src := range sources[1:] {
		next, err := network.FromIndexed(src, network.WithStrategy(strategy))
		if err != nil {
			return err
		}
		if acc, err = network.Multiply(acc, next); err != nil {
			return err
		}
	}
	return acc.EvaluateInto(out)
}
