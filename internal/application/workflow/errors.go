package workflow

import (
	"errors"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/ledger"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/graph"
)

var (
	// ErrAlreadyTerminal is returned for decisions on a completed or rejected instance
	ErrAlreadyTerminal = errors.New("instance already decided")
	// ErrNodeMismatch is returned when the decision targets a node other than the current one
	ErrNodeMismatch = errors.New("decision does not target the current node")
	// ErrInstanceBusy is returned when another mutation of the instance is in flight
	ErrInstanceBusy = errors.New("instance is being modified, retry")
	// ErrConcurrentUpdate is returned when the instance changed between read and write
	ErrConcurrentUpdate = errors.New("instance was modified concurrently")
	// ErrInvalidInput is returned for malformed creation or decision input
	ErrInvalidInput = errors.New("invalid input")
	// ErrTemplateInactive is returned when creating a request on a superseded template
	ErrTemplateInactive = errors.New("template is not active")
	// ErrPersistence wraps storage failures that are not one of the typed errors
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidDecision is returned for decisions other than approved/rejected
	ErrInvalidDecision = ledger.ErrInvalidDecision
)

var typedErrors = []error{
	ErrAlreadyTerminal,
	ErrNodeMismatch,
	ErrInstanceBusy,
	ErrConcurrentUpdate,
	ErrInvalidInput,
	ErrTemplateInactive,
	ErrPersistence,
	port.ErrNotFound,
	ledger.ErrIndexConflict,
	ledger.ErrStepNotFound,
	ledger.ErrAlreadyDecided,
	ledger.ErrApproverMismatch,
	ledger.ErrInvalidDecision,
}

// classify passes typed errors through and folds everything else into ErrPersistence
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, typed := range typedErrors {
		if errors.Is(err, typed) {
			return err
		}
	}
	if graph.IsValidationError(err) {
		return err
	}
	if errors.Is(err, port.ErrVersionConflict) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
