package network

import (
	"errors"
	"fmt"
)

var (
	// ErrInconsistentNetwork is matched by every structural violation found by Validate.
	ErrInconsistentNetwork = errors.New("inconsistent tensor network")

	// ErrUnknownNode is returned for node ids that are out of range or erased.
	ErrUnknownNode = errors.New("unknown node")

	// ErrStripped is returned by numeric operations on a network without tensors.
	ErrStripped = errors.New("network has no tensor data")
)

// InconsistentNetworkError locates a structural violation.
// Link is -1 when the violation concerns the node as a whole, Node is -1 for
// violations of the network's external links.
type InconsistentNetworkError struct {
	Node   int
	Link   int
	Detail string
}

// Error implements the error interface.
func (e *InconsistentNetworkError) Error() string {
	return fmt.Sprintf("%s: node %d link %d: %s", ErrInconsistentNetwork, e.Node, e.Link, e.Detail)
}

// Unwrap allows errors.Is(err, ErrInconsistentNetwork).
func (e *InconsistentNetworkError) Unwrap() error {
	return ErrInconsistentNetwork
}

func inconsistent(node, link int, format string, args ...any) error {
	return &InconsistentNetworkError{Node: node, Link: link, Detail: fmt.Sprintf(format, args...)}
}
