// Package ledger maintains the append-only step history of flow instances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

var (
	// ErrIndexConflict is returned when an appended index is not last+1
	ErrIndexConflict = errors.New("step index conflict")
	// ErrStepNotFound is returned when no step exists at the requested index
	ErrStepNotFound = errors.New("step not found")
	// ErrAlreadyDecided is returned when the step already carries a decision
	ErrAlreadyDecided = errors.New("step already decided")
	// ErrApproverMismatch is returned when the approver is not assigned to the step
	ErrApproverMismatch = errors.New("approver not assigned to step")
	// ErrInvalidDecision is returned for decisions other than approved/rejected
	ErrInvalidDecision = errors.New("invalid decision")
)

// Ledger appends and settles step records for flow instances
type Ledger struct {
	steps port.StepRepository
	now   func() time.Time
}

// New creates a ledger over the given step repository
func New(steps port.StepRepository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{steps: steps, now: now}
}

// Append writes step as the next record of its instance.
// step.StepIndex must equal the current last index + 1.
func (l *Ledger) Append(ctx context.Context, step *entity.FlowStep) error {
	last, err := l.steps.LastIndex(ctx, step.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to read last step index: %w", err)
	}
	if step.StepIndex != last+1 {
		return fmt.Errorf("%w: instance %d expects index %d, got %d",
			ErrIndexConflict, step.InstanceID, last+1, step.StepIndex)
	}

	if step.Decision == "" {
		step.Decision = entity.DecisionPending
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = l.now()
	}

	if err := l.steps.Create(ctx, step); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return fmt.Errorf("%w: instance %d index %d already written", ErrIndexConflict, step.InstanceID, step.StepIndex)
		}
		return err
	}
	return nil
}

// RecordDecision settles the pending step at stepIndex
func (l *Ledger) RecordDecision(ctx context.Context, instanceID int64, stepIndex int, decision, approverID, comment string) (*entity.FlowStep, error) {
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	step, err := l.steps.GetByIndex(ctx, instanceID, stepIndex)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, fmt.Errorf("%w: instance %d index %d", ErrStepNotFound, instanceID, stepIndex)
		}
		return nil, err
	}
	if step.IsDecided() {
		return nil, fmt.Errorf("%w: instance %d index %d is %s", ErrAlreadyDecided, instanceID, stepIndex, step.Decision)
	}
	if !step.CanBeDecidedBy(approverID) {
		return nil, fmt.Errorf("%w: %s at node %s", ErrApproverMismatch, approverID, step.NodeID)
	}

	at := l.now()
	step.Decision = decision
	step.ApproverID = approverID
	step.Comment = comment
	step.DecisionAt = &at

	if err := l.steps.UpdateDecision(ctx, step); err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: instance %d index %d", ErrAlreadyDecided, instanceID, stepIndex)
		}
		return nil, err
	}
	return step, nil
}

// Last returns the most recent step of the instance
func (l *Ledger) Last(ctx context.Context, instanceID int64) (*entity.FlowStep, error) {
	last, err := l.steps.LastIndex(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if last < 0 {
		return nil, fmt.Errorf("%w: instance %d has no steps", ErrStepNotFound, instanceID)
	}
	return l.steps.GetByIndex(ctx, instanceID, last)
}

// History returns every step of the instance ordered by index
func (l *Ledger) History(ctx context.Context, instanceID int64) ([]*entity.FlowStep, error) {
	return l.steps.ListByInstance(ctx, instanceID)
}

// Verify checks that the instance's indexes run 0..N without gaps
func Verify(steps []*entity.FlowStep) error {
	for i, s := range steps {
		if s.StepIndex != i {
			return fmt.Errorf("%w: position %d holds index %d", ErrIndexConflict, i, s.StepIndex)
		}
	}
	return nil
}
