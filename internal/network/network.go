// Package network implements tensor networks: tensors joined by links
// between their modes, contracted pairwise into fewer tensors.
package network

import (
	"fmt"
	"slices"
	"time"

	"k8s.io/klog/v2"

	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/indexed"
	"github.com/born-ml/tensornet/internal/metrics"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Link binds one mode of a node.
//
// An internal link points at mode IndexPosition of node Other. An external
// link exposes the mode as position IndexPosition of the network's
// dimensions; Other is -1.
type Link struct {
	Other         int
	IndexPosition int
	Dimension     int
	External      bool
}

// Node is a tensor of the network with one link per mode.
// Tensor is nil in stripped networks. Erased nodes are placeholders left by
// contraction; they have no links and are removed by Sanitize.
type Node struct {
	Tensor    *tensor.Tensor
	Neighbors []Link
	Erased    bool
}

// Degree returns the number of links of the node.
func (n *Node) Degree() int {
	return len(n.Neighbors)
}

// Network is a graph of tensors whose value is the contraction over all
// internal links, times Factor.
//
// ExternalLinks[k] points at the node mode that provides Dimensions[k].
type Network struct {
	Dimensions    []int
	Nodes         []Node
	ExternalLinks []Link
	Factor        float64

	strategy Strategy
}

// Option configures a network.
type Option func(*Network)

// WithStrategy selects the contraction strategy. The default is Generic.
func WithStrategy(s Strategy) Option {
	return func(n *Network) {
		n.strategy = s
	}
}

// New returns an empty network, representing the scalar Factor.
func New(opts ...Option) *Network {
	n := &Network{Factor: 1, strategy: Generic{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FromTensor returns a network of one node whose modes are all external.
// The node shares t's storage.
func FromTensor(t *tensor.Tensor, opts ...Option) *Network {
	n := New(opts...)
	n.AddNode(t.Clone())
	return n
}

// AddNode appends t as a new node whose modes become new external links.
// It returns the node id.
func (n *Network) AddNode(t *tensor.Tensor) int {
	id := len(n.Nodes)
	node := Node{Tensor: t, Neighbors: make([]Link, t.Degree())}
	for mode, d := range t.Dims() {
		pos := len(n.Dimensions)
		node.Neighbors[mode] = Link{Other: -1, IndexPosition: pos, Dimension: d, External: true}
		n.Dimensions = append(n.Dimensions, d)
		n.ExternalLinks = append(n.ExternalLinks, Link{Other: id, IndexPosition: mode, Dimension: d})
	}
	n.Nodes = append(n.Nodes, node)
	return id
}

// Strategy returns the contraction strategy chosen at construction.
func (n *Network) Strategy() Strategy {
	if n.strategy == nil {
		return Generic{}
	}
	return n.strategy
}

// Degree returns the number of external modes.
func (n *Network) Degree() int {
	return len(n.Dimensions)
}

// Clone returns a structural copy. Tensors share storage (Copy-on-Write).
func (n *Network) Clone() *Network {
	c := &Network{
		Dimensions:    slices.Clone(n.Dimensions),
		Nodes:         make([]Node, len(n.Nodes)),
		ExternalLinks: slices.Clone(n.ExternalLinks),
		Factor:        n.Factor,
		strategy:      n.strategy,
	}
	for id, node := range n.Nodes {
		c.Nodes[id] = Node{Neighbors: slices.Clone(node.Neighbors), Erased: node.Erased}
		if node.Tensor != nil {
			c.Nodes[id].Tensor = node.Tensor.Clone()
		}
	}
	return c
}

func (n *Network) checkNode(id int) error {
	if id < 0 || id >= len(n.Nodes) {
		return fmt.Errorf("%w: %d of %d", ErrUnknownNode, id, len(n.Nodes))
	}
	if n.Nodes[id].Erased {
		return fmt.Errorf("%w: %d is erased", ErrUnknownNode, id)
	}
	return nil
}

// Connected reports whether any link joins the two nodes.
func (n *Network) Connected(id1, id2 int) bool {
	for _, l := range n.Nodes[id1].Neighbors {
		if !l.External && l.Other == id2 {
			return true
		}
	}
	return false
}

// ContractionCost estimates the work of contracting the two nodes: the
// product of id1's dimensions and of id2's dimensions not shared with id1.
func (n *Network) ContractionCost(id1, id2 int) float64 {
	cost := 1.0
	for _, l := range n.Nodes[id1].Neighbors {
		cost *= float64(l.Dimension)
	}
	for _, l := range n.Nodes[id2].Neighbors {
		if l.External || l.Other != id1 {
			cost *= float64(l.Dimension)
		}
	}
	return cost
}

// Contract merges node id2 into node id1, summing over all links between
// them. The merged node carries id1's remaining links followed by id2's.
// Node id2 is left erased until Sanitize.
func (n *Network) Contract(id1, id2 int) error {
	if err := n.checkNode(id1); err != nil {
		return err
	}
	if err := n.checkNode(id2); err != nil {
		return err
	}
	if id1 == id2 {
		return fmt.Errorf("%w: cannot contract node %d with itself", ErrUnknownNode, id1)
	}

	cost := n.ContractionCost(id1, id2)
	first, second := &n.Nodes[id1], &n.Nodes[id2]

	var merged []Link
	idx1 := make([]index.Index, len(first.Neighbors))
	for mode, l := range first.Neighbors {
		idx1[mode] = index.New()
		if l.External || l.Other != id2 {
			merged = append(merged, l)
		}
	}
	idx2 := make([]index.Index, len(second.Neighbors))
	for mode, l := range second.Neighbors {
		if !l.External && l.Other == id1 {
			idx2[mode] = idx1[l.IndexPosition]
			continue
		}
		idx2[mode] = index.New()
		merged = append(merged, l)
	}

	var result *tensor.Tensor
	if first.Tensor != nil && second.Tensor != nil {
		product, err := indexed.Contract(indexed.New(first.Tensor, idx1...), indexed.New(second.Tensor, idx2...))
		if err != nil {
			return fmt.Errorf("contract nodes %d and %d: %w", id1, id2, err)
		}
		result = product.Tensor
	}

	for pos, l := range merged {
		if l.External {
			n.ExternalLinks[l.IndexPosition] = Link{Other: id1, IndexPosition: pos, Dimension: l.Dimension}
			continue
		}
		n.Nodes[l.Other].Neighbors[l.IndexPosition] = Link{Other: id1, IndexPosition: pos, Dimension: l.Dimension}
	}

	if first.Tensor != nil {
		first.Tensor.Release()
	}
	if second.Tensor != nil {
		second.Tensor.Release()
	}
	n.Nodes[id1] = Node{Tensor: result, Neighbors: merged}
	n.Nodes[id2] = Node{Erased: true}

	metrics.ObserveContraction(cost)
	klog.V(3).InfoS("Contracted network nodes", "into", id1, "erased", id2, "cost", cost, "strategy", n.Strategy().Name())
	return nil
}

// ContractSet contracts the given nodes into one, repeatedly merging the pair
// picked by the network's strategy. It returns the id of the surviving node.
func (n *Network) ContractSet(ids []int) (int, error) {
	remaining := slices.Clone(ids)
	slices.Sort(remaining)
	remaining = slices.Compact(remaining)
	if len(remaining) == 0 {
		return 0, fmt.Errorf("%w: empty contraction set", ErrUnknownNode)
	}
	for _, id := range remaining {
		if err := n.checkNode(id); err != nil {
			return 0, err
		}
	}

	start := time.Now()
	for len(remaining) > 1 {
		a, b := n.Strategy().NextPair(n, remaining)
		if err := n.Contract(a, b); err != nil {
			return 0, err
		}
		remaining = slices.DeleteFunc(remaining, func(id int) bool { return id == b })
	}
	klog.V(3).InfoS("Contracted node set", "nodes", len(ids), "result", remaining[0], "elapsed", time.Since(start))
	return remaining[0], nil
}

// Validate checks the structural invariants: internal links are mirrored
// with equal dimensions, links agree with the tensors' dimensions, and the
// external links cover the network's dimensions exactly once.
func (n *Network) Validate() error {
	if len(n.ExternalLinks) != len(n.Dimensions) {
		return inconsistent(-1, -1, "%d external links for %d dimensions", len(n.ExternalLinks), len(n.Dimensions))
	}

	for id, node := range n.Nodes {
		if node.Erased {
			if len(node.Neighbors) != 0 {
				return inconsistent(id, -1, "erased node has %d links", len(node.Neighbors))
			}
			continue
		}
		if node.Tensor != nil {
			if node.Tensor.Degree() != len(node.Neighbors) {
				return inconsistent(id, -1, "tensor of degree %d has %d links", node.Tensor.Degree(), len(node.Neighbors))
			}
			for mode, d := range node.Tensor.Dims() {
				if node.Neighbors[mode].Dimension != d {
					return inconsistent(id, mode, "link dimension %d, tensor dimension %d", node.Neighbors[mode].Dimension, d)
				}
			}
		}

		for mode, l := range node.Neighbors {
			if l.External {
				if l.IndexPosition < 0 || l.IndexPosition >= len(n.ExternalLinks) {
					return inconsistent(id, mode, "external position %d out of range", l.IndexPosition)
				}
				back := n.ExternalLinks[l.IndexPosition]
				if back.Other != id || back.IndexPosition != mode {
					return inconsistent(id, mode, "external position %d points at node %d mode %d", l.IndexPosition, back.Other, back.IndexPosition)
				}
				if n.Dimensions[l.IndexPosition] != l.Dimension {
					return inconsistent(id, mode, "dimension %d, network dimension %d", l.Dimension, n.Dimensions[l.IndexPosition])
				}
				continue
			}
			if l.Other == id {
				return inconsistent(id, mode, "self link")
			}
			if l.Other < 0 || l.Other >= len(n.Nodes) || n.Nodes[l.Other].Erased {
				return inconsistent(id, mode, "link to missing node %d", l.Other)
			}
			other := n.Nodes[l.Other]
			if l.IndexPosition < 0 || l.IndexPosition >= len(other.Neighbors) {
				return inconsistent(id, mode, "link to mode %d of degree %d node %d", l.IndexPosition, len(other.Neighbors), l.Other)
			}
			back := other.Neighbors[l.IndexPosition]
			if back.External || back.Other != id || back.IndexPosition != mode {
				return inconsistent(id, mode, "link to node %d mode %d is not mirrored", l.Other, l.IndexPosition)
			}
			if back.Dimension != l.Dimension {
				return inconsistent(id, mode, "mirrored link dimensions %d and %d differ", l.Dimension, back.Dimension)
			}
		}
	}

	for pos, l := range n.ExternalLinks {
		if l.Other < 0 || l.Other >= len(n.Nodes) || n.Nodes[l.Other].Erased {
			return inconsistent(-1, pos, "external link to missing node %d", l.Other)
		}
		node := n.Nodes[l.Other]
		if l.IndexPosition < 0 || l.IndexPosition >= len(node.Neighbors) {
			return inconsistent(-1, pos, "external link to mode %d of degree %d node %d", l.IndexPosition, len(node.Neighbors), l.Other)
		}
		back := node.Neighbors[l.IndexPosition]
		if !back.External || back.IndexPosition != pos {
			return inconsistent(-1, pos, "node %d mode %d does not expose position %d", l.Other, l.IndexPosition, pos)
		}
		if l.Dimension != n.Dimensions[pos] {
			return inconsistent(-1, pos, "external link dimension %d, network dimension %d", l.Dimension, n.Dimensions[pos])
		}
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func (n *Network) IsValid() bool {
	return n.Validate() == nil
}

// CheckFormat validates the network and its strategy-specific format.
func (n *Network) CheckFormat() error {
	if err := n.Validate(); err != nil {
		return err
	}
	return n.Strategy().CheckFormat(n)
}

// Sanitize removes erased nodes and renumbers the remaining ones.
func (n *Network) Sanitize() {
	idMap := make([]int, len(n.Nodes))
	kept := make([]Node, 0, len(n.Nodes))
	for id, node := range n.Nodes {
		if node.Erased {
			idMap[id] = -1
			continue
		}
		idMap[id] = len(kept)
		kept = append(kept, node)
	}
	n.Nodes = kept
	n.remap(func(id int) int { return idMap[id] })
}

// ReshuffleNodes moves node id to position f(id). f must be a permutation of
// the node ids.
func (n *Network) ReshuffleNodes(f func(int) int) error {
	moved := make([]Node, len(n.Nodes))
	seen := make([]bool, len(n.Nodes))
	for id := range n.Nodes {
		to := f(id)
		if to < 0 || to >= len(n.Nodes) || seen[to] {
			return fmt.Errorf("%w: reshuffle maps node %d to %d", ErrUnknownNode, id, to)
		}
		seen[to] = true
	}
	for id, node := range n.Nodes {
		moved[f(id)] = node
	}
	n.Nodes = moved
	n.remap(f)
	return nil
}

func (n *Network) remap(f func(int) int) {
	for id := range n.Nodes {
		for mode, l := range n.Nodes[id].Neighbors {
			if !l.External {
				n.Nodes[id].Neighbors[mode].Other = f(l.Other)
			}
		}
	}
	for pos := range n.ExternalLinks {
		n.ExternalLinks[pos].Other = f(n.ExternalLinks[pos].Other)
	}
}

// SwapExternalLinks exchanges external positions i and j.
func (n *Network) SwapExternalLinks(i, j int) {
	a, b := n.ExternalLinks[i], n.ExternalLinks[j]
	n.Nodes[a.Other].Neighbors[a.IndexPosition].IndexPosition = j
	n.Nodes[b.Other].Neighbors[b.IndexPosition].IndexPosition = i
	n.ExternalLinks[i], n.ExternalLinks[j] = b, a
	n.Dimensions[i], n.Dimensions[j] = n.Dimensions[j], n.Dimensions[i]
}

// StrippedSubnet returns a copy of the structure restricted to ids, without
// tensors. Nodes outside ids are erased. Links from kept nodes into erased
// ones become external links, appended after the kept external links.
func (n *Network) StrippedSubnet(ids []int) *Network {
	keep := make([]bool, len(n.Nodes))
	for _, id := range ids {
		if id >= 0 && id < len(n.Nodes) && !n.Nodes[id].Erased {
			keep[id] = true
		}
	}

	s := &Network{Nodes: make([]Node, len(n.Nodes)), Factor: 1, strategy: n.strategy}
	for id, node := range n.Nodes {
		if keep[id] {
			s.Nodes[id] = Node{Neighbors: slices.Clone(node.Neighbors)}
		} else {
			s.Nodes[id] = Node{Erased: true}
		}
	}

	for _, l := range n.ExternalLinks {
		if !keep[l.Other] {
			continue
		}
		s.Nodes[l.Other].Neighbors[l.IndexPosition].IndexPosition = len(s.ExternalLinks)
		s.ExternalLinks = append(s.ExternalLinks, l)
		s.Dimensions = append(s.Dimensions, l.Dimension)
	}
	for id := range s.Nodes {
		if !keep[id] {
			continue
		}
		for mode, l := range s.Nodes[id].Neighbors {
			if l.External || keep[l.Other] {
				continue
			}
			s.Nodes[id].Neighbors[mode] = Link{Other: -1, IndexPosition: len(s.ExternalLinks), Dimension: l.Dimension, External: true}
			s.ExternalLinks = append(s.ExternalLinks, Link{Other: id, IndexPosition: mode, Dimension: l.Dimension})
			s.Dimensions = append(s.Dimensions, l.Dimension)
		}
	}
	return s
}

// FullyContracted returns the tensor the network represents, with modes in
// the order of the network's dimensions. The network is left unchanged.
func (n *Network) FullyContracted() (*tensor.Tensor, error) {
	var live []int
	for id, node := range n.Nodes {
		if node.Erased {
			continue
		}
		if node.Tensor == nil {
			return nil, ErrStripped
		}
		live = append(live, id)
	}
	if len(live) == 0 {
		if n.Degree() != 0 {
			return nil, inconsistent(-1, -1, "degree %d network without nodes", n.Degree())
		}
		return tensor.Scalar(n.Factor), nil
	}

	work := n.Clone()
	id, err := work.ContractSet(live)
	if err != nil {
		return nil, err
	}
	node := work.Nodes[id]

	ext := index.Group(n.Degree())
	modes := make([]index.Index, len(node.Neighbors))
	for mode, l := range node.Neighbors {
		if !l.External {
			return nil, inconsistent(id, mode, "internal link left after full contraction")
		}
		modes[mode] = ext[l.IndexPosition]
	}

	out := indexed.New(tensor.New(nil, node.Tensor.Representation()), ext...)
	if err := indexed.Assign(out, indexed.New(node.Tensor, modes...)); err != nil {
		return nil, err
	}
	node.Tensor.Release()
	out.Tensor.Scale(n.Factor)
	return out.Tensor, nil
}

// FrobNorm returns the Frobenius norm of the fully contracted network.
func (n *Network) FrobNorm() (float64, error) {
	t, err := n.FullyContracted()
	if err != nil {
		return 0, err
	}
	return t.FrobNorm(), nil
}
