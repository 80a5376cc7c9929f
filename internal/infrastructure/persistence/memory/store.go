// Package memory is an in-process implementation of the repository ports.
//
// Transactions work on a private copy of the dataset that is swapped in on
// commit, so readers outside a transaction only ever see committed state.
// Writers are serialized by a single store-wide lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

type tombstone struct {
	deletedAt *time.Time
}

func (t *tombstone) deleted() bool { return t.deletedAt != nil }

type templateRow struct {
	tombstone
	tpl *entity.Template
}

type requestRow struct {
	tombstone
	req *entity.ApprovalRequest
}

type instanceRow struct {
	tombstone
	inst *entity.FlowInstance
}

type stepRow struct {
	tombstone
	step *entity.FlowStep
}

type actionRow struct {
	tombstone
	action *entity.ApprovalAction
}

type sequences struct {
	template, request, instance, step, action int64
}

type dataset struct {
	templates map[int64]*templateRow
	requests  map[int64]*requestRow
	instances map[int64]*instanceRow
	steps     map[int64]*stepRow
	actions   map[int64]*actionRow
	users     map[string]*entity.User
	seq       sequences
}

func newDataset() *dataset {
	return &dataset{
		templates: make(map[int64]*templateRow),
		requests:  make(map[int64]*requestRow),
		instances: make(map[int64]*instanceRow),
		steps:     make(map[int64]*stepRow),
		actions:   make(map[int64]*actionRow),
		users:     make(map[string]*entity.User),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	c.seq = d.seq
	for id, r := range d.templates {
		c.templates[id] = &templateRow{tombstone: r.tombstone, tpl: r.tpl.Clone()}
	}
	for id, r := range d.requests {
		c.requests[id] = &requestRow{tombstone: r.tombstone, req: r.req.Clone()}
	}
	for id, r := range d.instances {
		c.instances[id] = &instanceRow{tombstone: r.tombstone, inst: r.inst.Clone()}
	}
	for id, r := range d.steps {
		c.steps[id] = &stepRow{tombstone: r.tombstone, step: r.step.Clone()}
	}
	for id, r := range d.actions {
		a := *r.action
		c.actions[id] = &actionRow{tombstone: r.tombstone, action: &a}
	}
	for id, u := range d.users {
		cu := *u
		c.users[id] = &cu
	}
	return c
}

type txKey struct{}

// Store holds every entity in memory
type Store struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	data    *dataset
	now     func() time.Time
}

// Option configures the store
type Option func(*Store)

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{data: newDataset(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories returns every port backed by this store
func (s *Store) Repositories() port.Store {
	return port.Store{
		Templates: &TemplateRepository{s: s},
		Requests:  &RequestRepository{s: s},
		Instances: &InstanceRepository{s: s},
		Steps:     &StepRepository{s: s},
		Actions:   &ActionRepository{s: s},
		Users:     &UserRepository{s: s},
		Tx:        s,
	}
}

// WithTransaction implements port.TransactionManager.
// A nested call joins the enclosing transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*dataset); ok {
		return fn(ctx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, working)); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

// read runs fn against the transaction's working copy or the committed data
func (s *Store) read(ctx context.Context, fn func(d *dataset) error) error {
	if d, ok := ctx.Value(txKey{}).(*dataset); ok {
		return fn(d)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// write runs fn inside the caller's transaction or a single-statement one
func (s *Store) write(ctx context.Context, fn func(d *dataset) error) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*dataset))
	})
}

var _ port.TransactionManager = (*Store)(nil)
