package service

import (
	"context"
	"testing"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateService_CreateValidatesGraph(t *testing.T) {
	s := newServices(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   TemplateInput
		want error
	}{
		{"missing name", linearInput(" ", "a"), workflow.ErrInvalidInput},
		{"no approvers", TemplateInput{
			Name:  "empty",
			Nodes: []graph.Node{{ID: "s", Type: graph.NodeStart}, {ID: "e", Type: graph.NodeEnd}},
			Edges: []graph.Edge{{Source: "s", Target: "e"}},
		}, graph.ErrNoApprovers},
		{"cycle", TemplateInput{
			Name: "loop",
			Nodes: []graph.Node{
				{ID: "s", Type: graph.NodeStart}, {ID: "a", Type: graph.NodeApprover},
				{ID: "b", Type: graph.NodeApprover}, {ID: "e", Type: graph.NodeEnd},
			},
			Edges: []graph.Edge{{Source: "s", Target: "a"}, {Source: "a", Target: "b"}, {Source: "b", Target: "a"}, {Source: "b", Target: "e"}},
		}, graph.ErrCycleDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.templates.CreateTemplate(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, total, err := s.templates.ListTemplates(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTemplateService_UpdateInPlaceWhenUnused(t *testing.T) {
	s := newServices(t, nil)
	ctx := context.Background()
	tpl := s.template(t, "lead")

	updated, err := s.templates.UpdateTemplate(ctx, tpl.ID, linearInput("trip", "lead", "finance"))
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, updated.ID)
	assert.Equal(t, 1, updated.Version)

	got, err := s.templates.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "finance"}, got.Graph.ApproverSequence())
}

func TestTemplateService_UpdateVersionsWhenInUse(t *testing.T) {
	s := newServices(t, nil)
	ctx := context.Background()
	tpl := s.template(t, "lead")

	snap, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "t"})
	require.NoError(t, err)

	next, err := s.templates.UpdateTemplate(ctx, tpl.ID, linearInput("trip", "lead", "finance"))
	require.NoError(t, err)
	assert.NotEqual(t, tpl.ID, next.ID)
	assert.Equal(t, 2, next.Version)
	assert.True(t, next.IsActive)

	old, err := s.templates.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Equal(t, []string{"lead"}, old.Graph.ApproverSequence())

	// the open request keeps its original one-step graph
	done, err := s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "lead", Decision: "approved"})
	require.NoError(t, err)
	assert.Equal(t, "approved", done.Request.Status)

	_, err = s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "t"})
	assert.ErrorIs(t, err, workflow.ErrTemplateInactive)

	_, err = s.templates.UpdateTemplate(ctx, 999, linearInput("x", "a"))
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestTemplateService_UpdateVersionsWhenOnlyFinishedRequestsBound(t *testing.T) {
	s := newServices(t, nil)
	ctx := context.Background()
	tpl := s.template(t, "lead", "finance")

	snap, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "t"})
	require.NoError(t, err)
	rejected, err := s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "lead", Decision: "rejected"})
	require.NoError(t, err)
	require.Equal(t, "rejected", rejected.Request.Status)

	next, err := s.templates.UpdateTemplate(ctx, tpl.ID, linearInput("trip", "cfo"))
	require.NoError(t, err)
	assert.NotEqual(t, tpl.ID, next.ID)
	assert.Equal(t, 2, next.Version)

	inst := rejected.Instance
	bound, err := s.templates.GetTemplate(ctx, inst.TemplateID)
	require.NoError(t, err)
	_, ok := bound.Graph.Node(inst.CurrentNodeID)
	assert.True(t, ok, "current node %q missing from bound template", inst.CurrentNodeID)
	assert.Equal(t, rejected.Request.TotalSteps, bound.Graph.TotalSteps())
}

func TestTemplateService_Delete(t *testing.T) {
	s := newServices(t, nil)
	ctx := context.Background()
	tpl := s.template(t, "lead")

	snap, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "t"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.templates.DeleteTemplate(ctx, tpl.ID), ErrTemplateInUse)

	_, err = s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "lead", Decision: "rejected"})
	require.NoError(t, err)

	require.NoError(t, s.templates.DeleteTemplate(ctx, tpl.ID))
	_, err = s.templates.GetTemplate(ctx, tpl.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.ErrorIs(t, s.templates.DeleteTemplate(ctx, tpl.ID), port.ErrNotFound)
}

func TestTemplateService_Import(t *testing.T) {
	s := newServices(t, nil)
	ctx := context.Background()
	s.template(t, "lead")

	n, err := s.templates.ImportTemplates(ctx, []TemplateInput{
		linearInput("trip", "x"),
		linearInput("purchase", "buyer", "cfo"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, total, err := s.templates.ListTemplates(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "purchase", list[0].Name)

	_, err = s.templates.ImportTemplates(ctx, []TemplateInput{{Name: "broken"}})
	assert.Error(t, err)
}
