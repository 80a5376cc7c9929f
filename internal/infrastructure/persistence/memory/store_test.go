package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRequest(t *testing.T, repos port.Store) (*entity.ApprovalRequest, *entity.FlowInstance) {
	t.Helper()
	ctx := context.Background()

	g, err := graph.New(
		[]graph.Node{{ID: "s", Type: graph.NodeStart}, {ID: "a", Type: graph.NodeApprover}, {ID: "e", Type: graph.NodeEnd}},
		[]graph.Edge{{Source: "s", Target: "a"}, {Source: "a", Target: "e"}},
	)
	require.NoError(t, err)

	tpl := &entity.Template{Name: "expense", Graph: g, IsActive: true}
	require.NoError(t, repos.Templates.Create(ctx, tpl))

	req := &entity.ApprovalRequest{Title: "t", RequesterID: "u1", TemplateID: tpl.ID,
		Status: entity.RequestStatusInProgress, Category: "it", TotalSteps: 1, CurrentStep: 1}
	require.NoError(t, repos.Requests.Create(ctx, req))

	inst := &entity.FlowInstance{TemplateID: tpl.ID, RequestID: req.ID, CurrentNodeID: "a", Status: entity.InstanceStatusInProgress}
	require.NoError(t, repos.Instances.Create(ctx, inst))
	require.NoError(t, repos.Requests.SetFlowInstance(ctx, req.ID, inst.ID))
	req.FlowInstanceID = inst.ID

	require.NoError(t, repos.Steps.Create(ctx, &entity.FlowStep{InstanceID: inst.ID, NodeID: "s", ApproverID: "u1", Decision: entity.DecisionApproved, StepIndex: 0}))
	require.NoError(t, repos.Steps.Create(ctx, &entity.FlowStep{InstanceID: inst.ID, NodeID: "a", Assignees: []string{"mgr"}, Decision: entity.DecisionPending, StepIndex: 1}))
	return req, inst
}

func TestStore_TransactionRollsBack(t *testing.T) {
	s := NewStore()
	repos := s.Repositories()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repos.Users.Create(ctx, &entity.User{ID: "u1", Name: "Ann"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Users.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestStore_UncommittedWritesInvisibleOutside(t *testing.T) {
	s := NewStore()
	repos := s.Repositories()
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repos.Users.Create(txCtx, &entity.User{ID: "u1"}))

		_, err := repos.Users.GetByID(txCtx, "u1")
		require.NoError(t, err)

		_, err = repos.Users.GetByID(ctx, "u1")
		assert.ErrorIs(t, err, port.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = repos.Users.GetByID(ctx, "u1")
	assert.NoError(t, err)
}

func TestStore_ReturnedEntitiesAreCopies(t *testing.T) {
	repos := NewStore().Repositories()
	req, _ := seedRequest(t, repos)

	got, err := repos.Requests.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	got.Status = "tampered"

	again, err := repos.Requests.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusInProgress, again.Status)
}

func TestInstanceRepository_UpdateStateCompareAndSet(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	_, inst := seedRequest(t, repos)

	inst.Status = entity.InstanceStatusCompleted
	inst.CurrentNodeID = "e"
	inst.Version = 2
	require.NoError(t, repos.Instances.UpdateState(ctx, inst, 1))

	stale := inst.Clone()
	stale.Version = 2
	err := repos.Instances.UpdateState(ctx, stale, 1)
	assert.ErrorIs(t, err, port.ErrVersionConflict)

	got, err := repos.Instances.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "e", got.CurrentNodeID)
}

func TestStepRepository_UniqueIndexAndPendingOnlyUpdate(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	_, inst := seedRequest(t, repos)

	err := repos.Steps.Create(ctx, &entity.FlowStep{InstanceID: inst.ID, NodeID: "a", StepIndex: 1})
	assert.ErrorIs(t, err, port.ErrDuplicate)

	last, err := repos.Steps.LastIndex(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, last)

	step, err := repos.Steps.GetByIndex(ctx, inst.ID, 1)
	require.NoError(t, err)
	now := time.Now()
	step.Decision, step.ApproverID, step.DecisionAt = entity.DecisionApproved, "mgr", &now
	require.NoError(t, repos.Steps.UpdateDecision(ctx, step))

	step.Decision = entity.DecisionRejected
	assert.ErrorIs(t, repos.Steps.UpdateDecision(ctx, step), port.ErrVersionConflict)

	steps, err := repos.Steps.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, entity.DecisionApproved, steps[1].Decision)
}

func TestRequestRepository_PendingForApprover(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	req, _ := seedRequest(t, repos)

	got, err := repos.Requests.ListPendingForApprover(ctx, "mgr")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, req.ID, got[0].ID)

	got, err = repos.Requests.ListPendingForApprover(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRequestRepository_TombstoneCascade(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	req, inst := seedRequest(t, repos)
	require.NoError(t, repos.Actions.Create(ctx, &entity.ApprovalAction{RequestID: req.ID, ApproverID: "u1", Action: "submitted"}))

	require.NoError(t, repos.Requests.TombstoneCascade(ctx, req.ID))

	_, err := repos.Requests.GetByID(ctx, req.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
	_, err = repos.Instances.GetByID(ctx, inst.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
	_, err = repos.Instances.GetByRequestID(ctx, req.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
	_, err = repos.Steps.GetByIndex(ctx, inst.ID, 0)
	assert.ErrorIs(t, err, port.ErrNotFound)

	actions, err := repos.Actions.ListByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, actions)

	assert.ErrorIs(t, repos.Requests.TombstoneCascade(ctx, req.ID), port.ErrNotFound)

	stats, err := repos.Requests.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestRequestRepository_ListAndStats(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	repos := s.Repositories()
	ctx := context.Background()
	req, _ := seedRequest(t, repos)

	second := &entity.ApprovalRequest{Title: "b", RequesterID: "u2", TemplateID: req.TemplateID,
		Status: entity.RequestStatusApproved, Category: "travel", TotalSteps: 1, CurrentStep: 1}
	require.NoError(t, repos.Requests.Create(ctx, second))

	all, err := repos.Requests.List(ctx, port.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	mine, err := repos.Requests.List(ctx, port.RequestFilter{RequesterID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	paged, err := repos.Requests.List(ctx, port.RequestFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, req.ID, paged[0].ID)

	stats, err := repos.Requests.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStats{Total: 2, InProgress: 1, Approved: 1}, *stats)

	cats, err := repos.Requests.CategoryStats(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "it", cats[0].Category)
	assert.Equal(t, 1, cats[1].Approved)
}

func TestTemplateRepository_ListAndActiveInstances(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	req, inst := seedRequest(t, repos)

	n, err := repos.Templates.CountActiveInstances(ctx, req.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inst.Status = entity.InstanceStatusRejected
	inst.Version = 2
	require.NoError(t, repos.Instances.UpdateState(ctx, inst, 1))

	n, err = repos.Templates.CountActiveInstances(ctx, req.TemplateID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repos.Templates.CountBoundInstances(ctx, req.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tpls, total, err := repos.Templates.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tpls, 1)

	byName, err := repos.Templates.GetByName(ctx, "expense")
	require.NoError(t, err)
	assert.Equal(t, req.TemplateID, byName.ID)

	require.NoError(t, repos.Templates.SoftDelete(ctx, req.TemplateID))
	_, err = repos.Templates.GetByID(ctx, req.TemplateID)
	assert.ErrorIs(t, err, port.ErrNotFound)
}
