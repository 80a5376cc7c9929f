package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	s *Store
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	return r.s.write(ctx, func(d *dataset) error {
		d.seq.template++
		now := r.s.now()
		tpl.ID = d.seq.template
		if tpl.Version == 0 {
			tpl.Version = 1
		}
		tpl.CreatedAt, tpl.UpdatedAt = now, now
		d.templates[tpl.ID] = &templateRow{tpl: tpl.Clone()}
		return nil
	})
}

func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.Template, error) {
	var out *entity.Template
	err := r.s.read(ctx, func(d *dataset) error {
		row, ok := d.templates[id]
		if !ok || row.deleted() {
			return fmt.Errorf("template %d: %w", id, port.ErrNotFound)
		}
		out = row.tpl.Clone()
		return nil
	})
	return out, err
}

// GetByName returns the newest active template with the given name
func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*entity.Template, error) {
	var out *entity.Template
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.templates {
			if row.deleted() || !row.tpl.IsActive || row.tpl.Name != name {
				continue
			}
			if out == nil || row.tpl.ID > out.ID {
				out = row.tpl
			}
		}
		if out == nil {
			return fmt.Errorf("template %q: %w", name, port.ErrNotFound)
		}
		out = out.Clone()
		return nil
	})
	return out, err
}

func (r *TemplateRepository) List(ctx context.Context, limit, offset int) ([]*entity.Template, int, error) {
	var out []*entity.Template
	var total int
	err := r.s.read(ctx, func(d *dataset) error {
		all := make([]*entity.Template, 0, len(d.templates))
		for _, row := range d.templates {
			if !row.deleted() {
				all = append(all, row.tpl)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

		total = len(all)
		for _, t := range page(all, limit, offset) {
			out = append(out, t.Clone())
		}
		return nil
	})
	return out, total, err
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *entity.Template) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.templates[tpl.ID]
		if !ok || row.deleted() {
			return fmt.Errorf("template %d: %w", tpl.ID, port.ErrNotFound)
		}
		tpl.CreatedAt = row.tpl.CreatedAt
		tpl.UpdatedAt = r.s.now()
		row.tpl = tpl.Clone()
		return nil
	})
}

func (r *TemplateRepository) Deactivate(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.templates[id]
		if !ok || row.deleted() {
			return fmt.Errorf("template %d: %w", id, port.ErrNotFound)
		}
		row.tpl.IsActive = false
		row.tpl.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *TemplateRepository) SoftDelete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(d *dataset) error {
		row, ok := d.templates[id]
		if !ok || row.deleted() {
			return fmt.Errorf("template %d: %w", id, port.ErrNotFound)
		}
		now := r.s.now()
		row.deletedAt = &now
		row.tpl.IsActive = false
		return nil
	})
}

func (r *TemplateRepository) CountActiveInstances(ctx context.Context, templateID int64) (int, error) {
	var n int
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.instances {
			if !row.deleted() && row.inst.TemplateID == templateID && !row.inst.IsTerminal() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *TemplateRepository) CountBoundInstances(ctx context.Context, templateID int64) (int, error) {
	var n int
	err := r.s.read(ctx, func(d *dataset) error {
		for _, row := range d.instances {
			if !row.deleted() && row.inst.TemplateID == templateID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// page applies limit/offset; limit <= 0 means no limit
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ port.TemplateRepository = (*TemplateRepository)(nil)
