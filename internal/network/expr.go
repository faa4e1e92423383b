package network

import (
	"slices"

	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/indexed"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Expr is a network with indices attached to its external modes. Products of
// indexed expressions are built lazily as networks and contracted only when
// evaluated.
//
// Example:
//
//	a, _ := network.FromIndexed(indexed.New(A, i, j))
//	b, _ := network.FromIndexed(indexed.New(B, j, k))
//	ab, _ := network.Multiply(a, b)
//	err := ab.EvaluateInto(indexed.New(C, i, k)) // C = A·B
type Expr struct {
	Net     *Network
	Indices []index.Index
}

// FromIndexed wraps an indexed expression as a one-node network. Fixed and
// traced indices are evaluated first, so the network only carries open ones.
func FromIndexed(e *indexed.Expr, opts ...Option) (*Expr, error) {
	a, err := e.Assign()
	if err != nil {
		return nil, err
	}
	open := make([]index.Index, 0, len(a))
	for _, o := range a {
		if o.IsOpen() {
			open = append(open, o.Index.WithSpan(o.Span))
		}
	}

	t := e.Tensor
	if !a.AllOpen() {
		r := indexed.New(tensor.New(nil, e.Tensor.Representation()), open...)
		if err := indexed.Assign(r, e); err != nil {
			return nil, err
		}
		t = r.Tensor
	}
	return &Expr{Net: FromTensor(t, opts...), Indices: open}, nil
}

// Multiply returns the product of a and b: a network holding the nodes of
// both, with the modes of every index they share linked. The result keeps
// a's remaining indices followed by b's, and a's strategy.
func Multiply(a, b *Expr) (*Expr, error) {
	aA, err := index.Resolve(a.Net.Dimensions, a.Indices)
	if err != nil {
		return nil, err
	}
	bA, err := index.Resolve(b.Net.Dimensions, b.Indices)
	if err != nil {
		return nil, err
	}
	if !aA.AllOpen() || !bA.AllOpen() {
		return nil, index.Malformed(index.ReasonMismatch, "network factors %v and %v must only carry open indices", aA, bA)
	}

	net := a.Net.Clone()
	offset := len(net.Nodes)
	shift := net.Degree()
	rhs := b.Net.Clone()
	for _, node := range rhs.Nodes {
		for mode, l := range node.Neighbors {
			if l.External {
				node.Neighbors[mode].IndexPosition += shift
			} else {
				node.Neighbors[mode].Other += offset
			}
		}
		net.Nodes = append(net.Nodes, node)
	}
	for _, l := range rhs.ExternalLinks {
		l.Other += offset
		net.ExternalLinks = append(net.ExternalLinks, l)
	}
	net.Dimensions = append(net.Dimensions, rhs.Dimensions...)
	net.Factor *= rhs.Factor

	// Link the modes of shared indices pairwise.
	linked := make([]bool, len(net.Dimensions))
	var out []index.Index
	posA := 0
	for _, e := range aA {
		k := bA.Find(e.Index)
		if k < 0 {
			out = append(out, e.Index.WithSpan(e.Span))
			posA += e.Span
			continue
		}
		if bA[k].Span != e.Span || bA[k].Dimension != e.Dimension {
			return nil, index.Malformed(index.ReasonMismatch, "shared index %v covers dimension %d and %d", e.Index, e.Dimension, bA[k].Dimension)
		}
		posB := shift
		for _, f := range bA[:k] {
			posB += f.Span
		}
		for s := range e.Span {
			net.link(posA+s, posB+s)
			linked[posA+s], linked[posB+s] = true, true
		}
		posA += e.Span
	}
	for _, e := range bA {
		if aA.Find(e.Index) < 0 {
			out = append(out, e.Index.WithSpan(e.Span))
		}
	}

	net.dropExternal(linked)
	return &Expr{Net: net, Indices: out}, nil
}

// link joins the node modes behind external positions p and q.
func (n *Network) link(p, q int) {
	a, b := n.ExternalLinks[p], n.ExternalLinks[q]
	n.Nodes[a.Other].Neighbors[a.IndexPosition] = Link{Other: b.Other, IndexPosition: b.IndexPosition, Dimension: a.Dimension}
	n.Nodes[b.Other].Neighbors[b.IndexPosition] = Link{Other: a.Other, IndexPosition: a.IndexPosition, Dimension: b.Dimension}
}

// dropExternal removes the marked external positions and renumbers the rest.
func (n *Network) dropExternal(drop []bool) {
	var dims []int
	var links []Link
	for pos, l := range n.ExternalLinks {
		if drop[pos] {
			continue
		}
		n.Nodes[l.Other].Neighbors[l.IndexPosition].IndexPosition = len(links)
		links = append(links, l)
		dims = append(dims, n.Dimensions[pos])
	}
	n.ExternalLinks = links
	n.Dimensions = dims
}

// Degree returns the number of modes covered by the expression's indices.
func (e *Expr) Degree() int {
	return e.Net.Degree()
}

// EvaluateInto contracts the network and assigns the result to target.
func (e *Expr) EvaluateInto(target *indexed.Expr) error {
	t, err := e.Net.FullyContracted()
	if err != nil {
		return err
	}
	return indexed.Assign(target, indexed.New(t, slices.Clone(e.Indices)...))
}
