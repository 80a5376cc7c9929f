package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// StepRepository implements port.StepRepository
type StepRepository struct {
	s *Store
}

// findStep returns the live row at (instanceID, index)
func (d *dataset) findStep(instanceID int64, index int) *stepRow {
	for _, row := range d.steps {
		if !row.deleted() && row.step.InstanceID == instanceID && row.step.StepIndex == index {
			return row
		}
	}
	return nil
}

func (r *StepRepository) Create(ctx context.Context, step *entity.FlowStep) error {
	return r.s.write(ctx, func(d *dataset) error {
		if inst, ok := d.instances[step.InstanceID]; !ok || inst.deleted() {
			return fmt.Errorf("instance %d: %w", step.InstanceID, port.ErrNotFound)
		}
		if d.findStep(step.InstanceID, step.StepIndex) != nil {
			return fmt.Errorf("step %d of instance %d: %w", step.StepIndex, step.InstanceID, port.ErrDuplicate)
		}
		d.seq.step++
		step.ID = d.seq.step
		if step.CreatedAt.IsZero() {
			step.CreatedAt = r.s.now()
		}
		d.steps[step.ID] = &stepRow{step: step.Clone()}
		return nil
	})
}

func (r *StepRepository) GetByIndex(ctx context.Context, instanceID int64, stepIndex int) (*entity.FlowStep, error) {
	var out *entity.FlowStep
	err := r.s.read(ctx, func(d *dataset) error {
		row := d.findStep(instanceID, stepIndex)
		if row == nil {
			return fmt.Errorf("step %d of instance %d: %w", stepIndex, instanceID, port.ErrNotFound)
		}
		out = row.step.Clone()
		return nil
	})
	return out, err
}

func (r *StepRepository) LastIndex(ctx context.Context, instanceID int64) (int, error) {
	last := -1
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.steps {
			if !row.deleted() && row.step.InstanceID == instanceID && row.step.StepIndex > last {
				last = row.step.StepIndex
			}
		}
		return nil
	})
	return last, err
}

func (r *StepRepository) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.FlowStep, error) {
	var out []*entity.FlowStep
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.steps {
			if !row.deleted() && row.step.InstanceID == instanceID {
				out = append(out, row.step.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out, err
}

func (r *StepRepository) UpdateDecision(ctx context.Context, step *entity.FlowStep) error {
	return r.s.write(ctx, func(d *dataset) error {
		row := d.findStep(step.InstanceID, step.StepIndex)
		if row == nil {
			return fmt.Errorf("step %d of instance %d: %w", step.StepIndex, step.InstanceID, port.ErrNotFound)
		}
		if row.step.Decision != entity.DecisionPending {
			return fmt.Errorf("step %d of instance %d already %s: %w",
				step.StepIndex, step.InstanceID, row.step.Decision, port.ErrVersionConflict)
		}
		settled := step.Clone()
		row.step.Decision = settled.Decision
		row.step.ApproverID = settled.ApproverID
		row.step.Comment = settled.Comment
		row.step.DecisionAt = settled.DecisionAt
		return nil
	})
}

var _ port.StepRepository = (*StepRepository)(nil)
