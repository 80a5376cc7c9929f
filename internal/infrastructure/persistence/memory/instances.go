package memory

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	s *Store
}

func (r *InstanceRepository) Create(ctx context.Context, inst *entity.FlowInstance) error {
	return r.s.write(ctx, func(d *dataset) error {
		for _, row := range d.instances {
			if row.inst.RequestID == inst.RequestID {
				return fmt.Errorf("instance for request %d: %w", inst.RequestID, port.ErrDuplicate)
			}
		}
		d.seq.instance++
		now := r.s.now()
		inst.ID = d.seq.instance
		if inst.Version == 0 {
			inst.Version = 1
		}
		inst.CreatedAt, inst.UpdatedAt = now, now
		d.instances[inst.ID] = &instanceRow{inst: inst.Clone()}
		return nil
	})
}

func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*entity.FlowInstance, error) {
	var out *entity.FlowInstance
	err := r.s.read(ctx, func(d *dataset) error {
		row, ok := d.instances[id]
		if !ok || row.deleted() {
			return fmt.Errorf("instance %d: %w", id, port.ErrNotFound)
		}
		out = row.inst.Clone()
		return nil
	})
	return out, err
}

func (r *InstanceRepository) GetByRequestID(ctx context.Context, requestID int64) (*entity.FlowInstance, error) {
	var out *entity.FlowInstance
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.instances {
			if row.inst.RequestID == requestID && !row.deleted() {
				out = row.inst.Clone()
				return nil
			}
		}
		return fmt.Errorf("instance for request %d: %w", requestID, port.ErrNotFound)
	})
	return out, err
}

func (r *InstanceRepository) UpdateState(ctx context.Context, inst *entity.FlowInstance, expectedVersion int64) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.instances[inst.ID]
		if !ok || row.deleted() {
			return fmt.Errorf("instance %d: %w", inst.ID, port.ErrNotFound)
		}
		if row.inst.Version != expectedVersion {
			return fmt.Errorf("instance %d at version %d, expected %d: %w",
				inst.ID, row.inst.Version, expectedVersion, port.ErrVersionConflict)
		}
		inst.UpdatedAt = r.s.now()
		row.inst.CurrentNodeID = inst.CurrentNodeID
		row.inst.Status = inst.Status
		row.inst.Version = inst.Version
		row.inst.UpdatedAt = inst.UpdatedAt
		row.inst.CompletedAt = inst.Clone().CompletedAt
		return nil
	})
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
