package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	s *Store
}

func (r *RequestRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	return r.s.write(ctx, func(d *dataset) error {
		if tpl, ok := d.templates[req.TemplateID]; !ok || tpl.deleted() {
			return fmt.Errorf("template %d: %w", req.TemplateID, port.ErrNotFound)
		}
		d.seq.request++
		now := r.s.now()
		req.ID = d.seq.request
		req.CreatedAt, req.UpdatedAt = now, now
		d.requests[req.ID] = &requestRow{req: req.Clone()}
		return nil
	})
}

func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRequest, error) {
	var out *entity.ApprovalRequest
	err := r.s.read(ctx, func(d *dataset) error {
		row, ok := d.requests[id]
		if !ok || row.deleted() {
			return fmt.Errorf("request %d: %w", id, port.ErrNotFound)
		}
		out = row.req.Clone()
		return nil
	})
	return out, err
}

func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.ApprovalRequest, error) {
	return r.collect(ctx, filter.Limit, filter.Offset, func(d *dataset, req *entity.ApprovalRequest) bool {
		return (filter.RequesterID == "" || req.RequesterID == filter.RequesterID) &&
			(filter.Status == "" || req.Status == filter.Status) &&
			(filter.Category == "" || req.Category == filter.Category)
	})
}

func (r *RequestRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error) {
	return r.collect(ctx, 0, 0, func(d *dataset, req *entity.ApprovalRequest) bool {
		for _, row := range d.steps {
			if row.deleted() || row.step.InstanceID != req.FlowInstanceID {
				continue
			}
			if row.step.Decision == entity.DecisionPending && row.step.CanBeDecidedBy(approverID) {
				return true
			}
		}
		return false
	})
}

func (r *RequestRepository) ListOverdue(ctx context.Context, now time.Time) ([]*entity.ApprovalRequest, error) {
	return r.collect(ctx, 0, 0, func(d *dataset, req *entity.ApprovalRequest) bool {
		return req.IsOverdue(now)
	})
}

// collect returns matching live requests, newest first
func (r *RequestRepository) collect(ctx context.Context, limit, offset int, match func(*dataset, *entity.ApprovalRequest) bool) ([]*entity.ApprovalRequest, error) {
	var out []*entity.ApprovalRequest
	err := r.s.read(ctx, func(d *dataset) error {
		var hits []*entity.ApprovalRequest
		for _, row := range d.requests {
			if !row.deleted() && match(d, row.req) {
				hits = append(hits, row.req)
			}
		}
		sort.Slice(hits, func(i, j int) bool {
			if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
				return hits[i].CreatedAt.After(hits[j].CreatedAt)
			}
			return hits[i].ID > hits[j].ID
		})
		for _, req := range page(hits, limit, offset) {
			out = append(out, req.Clone())
		}
		return nil
	})
	return out, err
}

func (r *RequestRepository) SetFlowInstance(ctx context.Context, requestID, instanceID int64) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.requests[requestID]
		if !ok || row.deleted() {
			return fmt.Errorf("request %d: %w", requestID, port.ErrNotFound)
		}
		row.req.FlowInstanceID = instanceID
		row.req.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *RequestRepository) UpdateProjection(ctx context.Context, requestID int64, status string, currentStep int) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.requests[requestID]
		if !ok || row.deleted() {
			return fmt.Errorf("request %d: %w", requestID, port.ErrNotFound)
		}
		row.req.Status = status
		row.req.CurrentStep = currentStep
		row.req.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *RequestRepository) TombstoneCascade(ctx context.Context, requestID int64) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.requests[requestID]
		if !ok || row.deleted() {
			return fmt.Errorf("request %d: %w", requestID, port.ErrNotFound)
		}
		now := r.s.now()

		for _, a := range d.actions {
			if a.action.RequestID == requestID && !a.deleted() {
				a.deletedAt = &now
			}
		}
		for _, inst := range d.instances {
			if inst.inst.RequestID != requestID || inst.deleted() {
				continue
			}
			for _, st := range d.steps {
				if st.step.InstanceID == inst.inst.ID && !st.deleted() {
					st.deletedAt = &now
				}
			}
			inst.deletedAt = &now
		}
		row.deletedAt = &now
		return nil
	})
}

func (r *RequestRepository) Stats(ctx context.Context) (*entity.RequestStats, error) {
	stats := &entity.RequestStats{}
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.requests {
			if !row.deleted() {
				stats.Add(row.req.Status, 1)
			}
		}
		return nil
	})
	return stats, err
}

func (r *RequestRepository) CategoryStats(ctx context.Context) ([]*entity.CategoryStats, error) {
	byCategory := make(map[string]*entity.CategoryStats)
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.requests {
			if row.deleted() {
				continue
			}
			cs, ok := byCategory[row.req.Category]
			if !ok {
				cs = &entity.CategoryStats{Category: row.req.Category}
				byCategory[row.req.Category] = cs
			}
			cs.Add(row.req.Status, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*entity.CategoryStats, 0, len(byCategory))
	for _, cs := range byCategory {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

var _ port.RequestRepository = (*RequestRepository)(nil)
