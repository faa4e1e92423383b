// Package job reads tensor job files: named input tensors and an ordered list
// of index-expression operations evaluated over them.
//
// Example:
//
//	tensors:
//	  A: {dims: [2, 3], values: [1, 2, 3, 4, 5, 6]}
//	  B: {dims: [3, 2], ones: true}
//	operations:
//	  - {op: product, target: "C(i,k)", sources: ["A(i,j)", "B(j,k)"]}
//	  - {op: assign, target: "t()", sources: ["C(i,i)"]}
//	outputs: [C, t]
package job

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/tensornet/internal/tensor"
)

var (
	// ErrInvalid is returned for structurally invalid job files.
	ErrInvalid = errors.New("invalid job")

	// ErrSyntax is returned for malformed expression strings.
	ErrSyntax = errors.New("expression syntax error")

	// ErrUnknownTensor is returned when an operation reads an undefined tensor.
	ErrUnknownTensor = errors.New("unknown tensor")
)

// Operation kinds.
const (
	OpAssign  = "assign"
	OpProduct = "product"
	OpSum     = "sum"
)

// Job is a parsed job file.
type Job struct {
	// Name identifies the job in logs and output keys. Defaults to the
	// file name when loaded from disk.
	Name string `yaml:"name"`

	Tensors    map[string]TensorSpec `yaml:"tensors"`
	Operations []Operation           `yaml:"operations"`

	// Outputs lists the tensors to store after the run.
	Outputs []string `yaml:"outputs"`
}

// TensorSpec declares an input tensor. Exactly one of Values, Entries,
// Random or Ones sets its content; none gives a zero tensor.
type TensorSpec struct {
	Dims    []int           `yaml:"dims"`
	Values  []float64       `yaml:"values"`
	Entries map[int]float64 `yaml:"entries"`
	Random  *RandomSpec     `yaml:"random"`
	Ones    bool            `yaml:"ones"`
	Sparse  bool            `yaml:"sparse"`
	Factor  float64         `yaml:"factor"`
}

// RandomSpec fills a tensor with standard normal values. With Entries > 0
// the tensor is sparse with at most that many non-zeros.
type RandomSpec struct {
	Seed    int64 `yaml:"seed"`
	Entries int   `yaml:"entries"`
}

// Operation assigns an expression over its sources to the target.
type Operation struct {
	Op      string   `yaml:"op"`
	Target  string   `yaml:"target"`
	Sources []string `yaml:"sources"`

	// Sparse creates a missing target with sparse storage.
	Sparse bool `yaml:"sparse"`

	// Scale multiplies the result; zero means one.
	Scale float64 `yaml:"scale"`
}

// Parse decodes and validates a job document.
func Parse(data []byte) (*Job, error) {
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Load reads a job file. The job name defaults to the file path.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	j, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if j.Name == "" {
		j.Name = path
	}
	return j, nil
}

// Validate checks the structure of the job: tensor declarations,
// expression syntax, operation arity and that every source is defined
// before it is read.
func (j *Job) Validate() error {
	defined := make(map[string]bool, len(j.Tensors))
	for name, spec := range j.Tensors {
		if !isName(name) {
			return fmt.Errorf("%w: tensor name %q", ErrInvalid, name)
		}
		if err := spec.validate(); err != nil {
			return fmt.Errorf("%w: tensor %s: %v", ErrInvalid, name, err)
		}
		defined[name] = true
	}

	for k, op := range j.Operations {
		if err := op.validate(defined); err != nil {
			return fmt.Errorf("operation %d (%s): %w", k, op.Op, err)
		}
	}

	for _, name := range j.Outputs {
		if !defined[name] {
			return fmt.Errorf("%w: output %s", ErrUnknownTensor, name)
		}
	}
	return nil
}

func (s TensorSpec) validate() error {
	if err := tensor.Shape(s.Dims).Validate(); err != nil {
		return err
	}
	set := 0
	for _, b := range []bool{s.Values != nil, s.Entries != nil, s.Random != nil, s.Ones} {
		if b {
			set++
		}
	}
	if set > 1 {
		return errors.New("values, entries, random and ones are exclusive")
	}
	size := tensor.Shape(s.Dims).NumElements()
	if s.Values != nil && len(s.Values) != size {
		return fmt.Errorf("%d values for %d entries", len(s.Values), size)
	}
	for pos := range s.Entries {
		if pos < 0 || pos >= size {
			return fmt.Errorf("entry position %d out of range [0, %d)", pos, size)
		}
	}
	if s.Random != nil && s.Random.Entries < 0 {
		return fmt.Errorf("negative random entry count %d", s.Random.Entries)
	}
	return nil
}

func (op Operation) validate(defined map[string]bool) error {
	arity := map[string][2]int{
		OpAssign:  {1, 1},
		OpSum:     {2, 2},
		OpProduct: {1, -1},
	}
	bounds, ok := arity[op.Op]
	if !ok {
		return fmt.Errorf("%w: unknown op %q", ErrInvalid, op.Op)
	}
	if len(op.Sources) < bounds[0] || bounds[1] >= 0 && len(op.Sources) > bounds[1] {
		return fmt.Errorf("%w: %d sources", ErrInvalid, len(op.Sources))
	}

	for _, src := range op.Sources {
		e, err := ParseExpr(src)
		if err != nil {
			return err
		}
		if !defined[e.Tensor] {
			return fmt.Errorf("%w: %s", ErrUnknownTensor, e.Tensor)
		}
	}

	target, err := ParseExpr(op.Target)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(target.Indices, func(t IndexTerm) bool { return t.Fixed }) {
		return fmt.Errorf("%w: target %s has a fixed index", ErrInvalid, op.Target)
	}
	defined[target.Tensor] = true
	return nil
}

// Build creates the tensor declared by s.
func (s TensorSpec) Build() (*tensor.Tensor, error) {
	dims := tensor.Shape(s.Dims)
	var t *tensor.Tensor
	var err error
	switch {
	case s.Values != nil:
		t, err = tensor.FromSlice(dims, s.Values)
	case s.Entries != nil:
		t, err = tensor.FromEntries(dims, s.Entries)
	case s.Random != nil:
		rng := rand.New(rand.NewSource(s.Random.Seed))
		if s.Random.Entries > 0 {
			t = tensor.RandomSparse(dims, s.Random.Entries, rng)
		} else {
			t = tensor.Random(dims, rng)
		}
	case s.Ones:
		t = tensor.Ones(dims)
	default:
		t = tensor.Zeros(dims)
	}
	if err != nil {
		return nil, err
	}

	if s.Sparse {
		t.UseSparse()
	}
	if s.Factor != 0 {
		t.Scale(s.Factor)
	}
	return t, nil
}
