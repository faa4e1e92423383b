package network

import (
	"fmt"
	"math"
)

// Strategy decides the contraction order of a network and the format the
// network must keep. It is chosen once, when the network is built.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// NextPair picks two of the given live nodes to contract next. The
	// second one is merged into the first.
	NextPair(n *Network, ids []int) (int, int)

	// CheckFormat reports format violations beyond Validate.
	CheckFormat(n *Network) error
}

// StrategyByName returns the strategy with the given Name.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case Generic{}.Name():
		return Generic{}, nil
	case Chain{}.Name():
		return Chain{}, nil
	default:
		return nil, fmt.Errorf("unknown contraction strategy %q", name)
	}
}

// Generic contracts the cheapest linked pair first, falling back to the
// cheapest unlinked pair (an outer product) when no pair is linked.
type Generic struct{}

// Name implements Strategy.
func (Generic) Name() string { return "generic" }

// NextPair implements Strategy.
func (Generic) NextPair(n *Network, ids []int) (int, int) {
	bestA, bestB := ids[0], ids[1]
	bestCost := math.Inf(1)
	bestLinked := false
	for x := range ids {
		for y := x + 1; y < len(ids); y++ {
			a, b := ids[x], ids[y]
			linked := n.Connected(a, b)
			if bestLinked && !linked {
				continue
			}
			cost := n.ContractionCost(a, b)
			if linked && !bestLinked || cost < bestCost {
				bestA, bestB, bestCost, bestLinked = a, b, cost, linked
			}
		}
	}
	return bestA, bestB
}

// CheckFormat implements Strategy. Any valid network is generic.
func (Generic) CheckFormat(*Network) error { return nil }

// Chain is the strategy of path-shaped networks such as tensor trains: node k
// is linked only to nodes k-1 and k+1, and contraction sweeps left to right.
type Chain struct{}

// Name implements Strategy.
func (Chain) Name() string { return "chain" }

// NextPair implements Strategy. ids are sorted.
func (Chain) NextPair(_ *Network, ids []int) (int, int) {
	return ids[0], ids[1]
}

// CheckFormat implements Strategy.
func (Chain) CheckFormat(n *Network) error {
	prev := -1
	for id, node := range n.Nodes {
		if node.Erased {
			continue
		}
		linkedToPrev := prev < 0
		for mode, l := range node.Neighbors {
			if l.External {
				continue
			}
			switch {
			case l.Other == prev:
				linkedToPrev = true
			case l.Other > id && !isNextLive(n, id, l.Other):
				return inconsistent(id, mode, "chain node linked to non-adjacent node %d", l.Other)
			case l.Other < id:
				return inconsistent(id, mode, "chain node linked to non-adjacent node %d", l.Other)
			}
		}
		if !linkedToPrev {
			return fmt.Errorf("%w: chain node %d is not linked to node %d", ErrInconsistentNetwork, id, prev)
		}
		prev = id
	}
	return nil
}

// isNextLive reports whether next is the first live node after id.
func isNextLive(n *Network, id, next int) bool {
	for k := id + 1; k < len(n.Nodes); k++ {
		if !n.Nodes[k].Erased {
			return k == next
		}
	}
	return false
}
