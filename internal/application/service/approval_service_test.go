package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/graph"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockExporter struct {
	exportFunc func(w io.Writer, requests []*entity.ApprovalRequest, stats *entity.RequestStats, categories []*entity.CategoryStats) error
}

func (m *mockExporter) ExportRequests(w io.Writer, requests []*entity.ApprovalRequest, stats *entity.RequestStats, categories []*entity.CategoryStats) error {
	if m.exportFunc != nil {
		return m.exportFunc(w, requests, stats, categories)
	}
	_, err := w.Write([]byte("ok"))
	return err
}

func (m *mockExporter) ContentType() string   { return "text/plain" }
func (m *mockExporter) FileExtension() string { return ".txt" }

func linearInput(name string, approvers ...string) TemplateInput {
	in := TemplateInput{
		Name:     name,
		Category: "travel",
		Nodes:    []graph.Node{{ID: "start", Type: graph.NodeStart}},
	}
	prev := "start"
	for _, a := range approvers {
		in.Nodes = append(in.Nodes, graph.Node{ID: a, Type: graph.NodeApprover, Label: a, ApproverIDs: []string{a}})
		in.Edges = append(in.Edges, graph.Edge{Source: prev, Target: a})
		prev = a
	}
	in.Nodes = append(in.Nodes, graph.Node{ID: "end", Type: graph.NodeEnd})
	in.Edges = append(in.Edges, graph.Edge{Source: prev, Target: "end"})
	return in
}

type services struct {
	store     port.Store
	approvals ApprovalService
	templates TemplateService
	logger    *mockLogger
}

func newServices(t *testing.T, exporter port.ReportExporter) *services {
	t.Helper()
	store := memory.NewStore().Repositories()
	logger := &mockLogger{}
	engine := workflow.NewEngine(store)
	return &services{
		store:     store,
		approvals: NewApprovalService(engine, store, exporter, logger),
		templates: NewTemplateService(store.Templates, store.Tx, logger),
		logger:    logger,
	}
}

func (s *services) template(t *testing.T, approvers ...string) *entity.Template {
	t.Helper()
	tpl, err := s.templates.CreateTemplate(context.Background(), linearInput("trip", approvers...))
	require.NoError(t, err)
	return tpl
}

func TestApprovalService_DecisionDefaultsToCurrentNode(t *testing.T) {
	s := newServices(t, nil)
	tpl := s.template(t, "lead", "finance")
	ctx := context.Background()

	snap, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "Berlin trip"})
	require.NoError(t, err)

	snap, err = s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "lead", Decision: " Approved "})
	require.NoError(t, err)
	assert.Equal(t, "finance", snap.Instance.CurrentNodeID)
	assert.Equal(t, 2, snap.Request.CurrentStep)

	_, err = s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "lead", NodeID: "lead", Decision: "approved"})
	assert.ErrorIs(t, err, workflow.ErrNodeMismatch)

	snap, err = s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "finance", Decision: "rejected", Comment: "over budget"})
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusRejected, snap.Request.Status)

	_, err = s.approvals.SubmitDecision(ctx, 999, DecisionInput{ApproverID: "x", Decision: "approved"})
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestApprovalService_GetRequest(t *testing.T) {
	s := newServices(t, nil)
	tpl := s.template(t, "lead")
	ctx := context.Background()

	snap, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "Lap\x00top"})
	require.NoError(t, err)
	_, err = s.approvals.SubmitDecision(ctx, snap.Request.ID, DecisionInput{ApproverID: "lead", Decision: "approved", Comment: "fine"})
	require.NoError(t, err)

	detail, err := s.approvals.GetRequest(ctx, snap.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, "trip", detail.TemplateName)
	assert.Equal(t, "Laptop", detail.Request.Title)
	assert.Equal(t, entity.RequestStatusApproved, detail.Request.Status)
	assert.Len(t, detail.Steps, 2)
	require.Len(t, detail.Actions, 2)
	assert.Equal(t, workflow.ActionSubmitted, detail.Actions[0].Action)
	assert.Equal(t, "fine", detail.Actions[1].Comment)

	require.NoError(t, s.approvals.DeleteRequest(ctx, snap.Request.ID))
	_, err = s.approvals.GetRequest(ctx, snap.Request.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestApprovalService_Lists(t *testing.T) {
	s := newServices(t, nil)
	tpl := s.template(t, "lead", "finance")
	ctx := context.Background()

	first, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: "A"})
	require.NoError(t, err)
	_, err = s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "ben", Title: "B"})
	require.NoError(t, err)
	_, err = s.approvals.SubmitDecision(ctx, first.Request.ID, DecisionInput{ApproverID: "lead", Decision: "approved"})
	require.NoError(t, err)

	mine, err := s.approvals.ListRequests(ctx, port.RequestFilter{RequesterID: "amy"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.Request.ID, mine[0].ID)

	leadQueue, err := s.approvals.ListPending(ctx, "lead")
	require.NoError(t, err)
	require.Len(t, leadQueue, 1)
	assert.Equal(t, "B", leadQueue[0].Title)

	financeQueue, err := s.approvals.ListPending(ctx, "finance")
	require.NoError(t, err)
	require.Len(t, financeQueue, 1)
	assert.Equal(t, "A", financeQueue[0].Title)

	none, err := s.approvals.ListPending(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = s.approvals.ListPending(ctx, " ")
	assert.ErrorIs(t, err, workflow.ErrInvalidInput)
	_, err = s.approvals.ListRequests(ctx, port.RequestFilter{Status: "archived"})
	assert.ErrorIs(t, err, workflow.ErrInvalidInput)
}

func TestApprovalService_StatsAndExport(t *testing.T) {
	var gotRequests int
	var gotStats *entity.RequestStats
	exporter := &mockExporter{
		exportFunc: func(w io.Writer, requests []*entity.ApprovalRequest, stats *entity.RequestStats, categories []*entity.CategoryStats) error {
			gotRequests = len(requests)
			gotStats = stats
			_, err := w.Write([]byte("xlsx"))
			return err
		},
	}
	s := newServices(t, exporter)
	tpl := s.template(t, "lead")
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		_, err := s.approvals.CreateRequest(ctx, workflow.CreateInput{TemplateID: tpl.ID, RequesterID: "amy", Title: title})
		require.NoError(t, err)
	}
	_, err := s.approvals.SubmitDecision(ctx, 1, DecisionInput{ApproverID: "lead", Decision: "approved"})
	require.NoError(t, err)
	_, err = s.approvals.SubmitDecision(ctx, 2, DecisionInput{ApproverID: "lead", Decision: "rejected"})
	require.NoError(t, err)

	report, err := s.approvals.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStats{Total: 3, InProgress: 1, Approved: 1, Rejected: 1}, *report.Totals)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, "travel", report.Categories[0].Category)

	var buf bytes.Buffer
	require.NoError(t, s.approvals.Export(ctx, &buf, port.RequestFilter{}))
	assert.Equal(t, "xlsx", buf.String())
	assert.Equal(t, 3, gotRequests)
	assert.Equal(t, 3, gotStats.Total)

	ct, ext := s.approvals.ExportFormat()
	assert.Equal(t, "text/plain", ct)
	assert.Equal(t, ".txt", ext)

	exporter.exportFunc = func(io.Writer, []*entity.ApprovalRequest, *entity.RequestStats, []*entity.CategoryStats) error {
		return errors.New("disk full")
	}
	assert.Error(t, s.approvals.Export(ctx, &buf, port.RequestFilter{}))
}

func TestApprovalService_ExportWithoutExporter(t *testing.T) {
	s := newServices(t, nil)
	err := s.approvals.Export(context.Background(), io.Discard, port.RequestFilter{})
	assert.ErrorIs(t, err, workflow.ErrInvalidInput)
}

func TestApprovalService_CreateLogsFailure(t *testing.T) {
	s := newServices(t, nil)
	_, err := s.approvals.CreateRequest(context.Background(), workflow.CreateInput{TemplateID: 42, RequesterID: "amy", Title: "x"})
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.Contains(t, s.logger.errors, "Failed to create request")
}

func TestRequestOverdue(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	req := &entity.ApprovalRequest{Status: entity.RequestStatusInProgress, DueDate: &due}
	assert.True(t, req.IsOverdue(due.Add(time.Minute)))
	req.Status = entity.RequestStatusApproved
	assert.False(t, req.IsOverdue(due.Add(time.Minute)))
}
