package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return r.s.write(ctx, func(d *dataset) error {
		if _, ok := d.users[user.ID]; ok {
			return fmt.Errorf("user %s: %w", user.ID, port.ErrDuplicate)
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = r.s.now()
		}
		u := *user
		d.users[u.ID] = &u
		return nil
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var out *entity.User
	err := r.s.read(ctx, func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return fmt.Errorf("user %s: %w", id, port.ErrNotFound)
		}
		c := *u
		out = &c
		return nil
	})
	return out, err
}

func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	var out []*entity.User
	err := r.s.read(ctx, func(d *dataset) error {
		for _, u := range d.users {
			c := *u
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

var _ port.UserRepository = (*UserRepository)(nil)
