package service

import (
	"context"
	"testing"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_ListApprovers(t *testing.T) {
	store := memory.NewStore().Repositories()
	svc := NewUserService(store.Users, &mockLogger{})
	ctx := context.Background()

	for _, u := range []*entity.User{
		{ID: "u1", Name: "Ann", Role: "Engineer"},
		{ID: "u2", Name: "Bo", Role: "Engineering Manager"},
		{ID: "u3", Name: "Chen", Role: "财务总监"},
		{ID: "u4", Name: "Dee", Role: "Shift Supervisor"},
	} {
		require.NoError(t, svc.CreateUser(ctx, u))
	}

	approvers, err := svc.ListApprovers(ctx)
	require.NoError(t, err)
	ids := make([]string, len(approvers))
	for i, u := range approvers {
		ids[i] = u.ID
	}
	assert.Equal(t, []string{"u2", "u3", "u4"}, ids)

	all, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUserService_CreateValidation(t *testing.T) {
	store := memory.NewStore().Repositories()
	svc := NewUserService(store.Users, &mockLogger{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.CreateUser(ctx, &entity.User{ID: " ", Name: "x"}), workflow.ErrInvalidInput)
	assert.ErrorIs(t, svc.CreateUser(ctx, &entity.User{ID: "u2", Name: "Bo", Email: "bo-at-corp"}), workflow.ErrInvalidInput)
	require.NoError(t, svc.CreateUser(ctx, &entity.User{ID: "u1", Name: "Ann"}))
	assert.ErrorIs(t, svc.CreateUser(ctx, &entity.User{ID: "u1", Name: "Ann"}), port.ErrDuplicate)

	_, err := svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
