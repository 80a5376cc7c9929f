package graph

import (
	"errors"
	"fmt"
)

// Structural validation errors. Each is wrapped in a *ValidationError
// naming the offending node when one can be identified.
var (
	ErrEmptyNodeID     = errors.New("node id is empty")
	ErrDuplicateNode   = errors.New("duplicate node id")
	ErrInvalidNodeType = errors.New("invalid node type")
	ErrUnknownNode     = errors.New("edge references unknown node")
	ErrMissingStart    = errors.New("graph has no start node")
	ErrMultipleStart   = errors.New("graph has more than one start node")
	ErrMissingEnd      = errors.New("graph has no end node")
	ErrNoApprovers     = errors.New("graph has no approver on its approval path")
	ErrDanglingNode    = errors.New("node has no outgoing edge")
	ErrUnreachableNode = errors.New("node is not reachable from start")
	ErrCycleDetected   = errors.New("graph contains a cycle")
)

// ValidationError ties a structural error to the node that caused it.
type ValidationError struct {
	NodeID string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.NodeID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("node %q: %s", e.NodeID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(nodeID string, err error) error {
	return &ValidationError{NodeID: nodeID, Err: err}
}

// IsValidationError reports whether err came from graph validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrMalformed is returned when a persisted node or edge document cannot be decoded.
var ErrMalformed = errors.New("malformed graph document")

// NewValidationError wraps err as a validation failure at nodeID
func NewValidationError(nodeID string, err error) error {
	return invalid(nodeID, err)
}
