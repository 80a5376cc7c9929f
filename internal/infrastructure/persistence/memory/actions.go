package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// ActionRepository implements port.ActionRepository
type ActionRepository struct {
	s *Store
}

func (r *ActionRepository) Create(ctx context.Context, action *entity.ApprovalAction) error {
	return r.s.write(ctx, func(d *dataset) error {
		if req, ok := d.requests[action.RequestID]; !ok || req.deleted() {
			return fmt.Errorf("request %d: %w", action.RequestID, port.ErrNotFound)
		}
		d.seq.action++
		action.ID = d.seq.action
		if action.Timestamp.IsZero() {
			action.Timestamp = r.s.now()
		}
		a := *action
		d.actions[a.ID] = &actionRow{action: &a}
		return nil
	})
}

func (r *ActionRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.ApprovalAction, error) {
	var out []*entity.ApprovalAction
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.actions {
			if !row.deleted() && row.action.RequestID == requestID {
				a := *row.action
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

var _ port.ActionRepository = (*ActionRepository)(nil)
