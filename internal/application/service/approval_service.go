package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DecisionInput is an approver's verdict on a request.
// An empty NodeID targets the node the request currently waits on.
type DecisionInput struct {
	ApproverID string `json:"approver_id"`
	NodeID     string `json:"node_id"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment"`
}

// RequestDetail is a request with its flow, ledger and audit trail
type RequestDetail struct {
	Request      *entity.ApprovalRequest  `json:"request"`
	Instance     *entity.FlowInstance     `json:"instance"`
	Steps        []*entity.FlowStep       `json:"steps"`
	Actions      []*entity.ApprovalAction `json:"actions"`
	TemplateName string                   `json:"template_name"`
}

// StatsReport holds the status totals and the per-category breakdown
type StatsReport struct {
	Totals     *entity.RequestStats    `json:"totals"`
	Categories []*entity.CategoryStats `json:"categories"`
}

// ApprovalService manages approval requests and their decisions
type ApprovalService interface {
	CreateRequest(ctx context.Context, in workflow.CreateInput) (*workflow.Snapshot, error)
	GetRequest(ctx context.Context, id int64) (*RequestDetail, error)
	ListRequests(ctx context.Context, filter port.RequestFilter) ([]*entity.ApprovalRequest, error)
	ListPending(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error)
	SubmitDecision(ctx context.Context, requestID int64, in DecisionInput) (*workflow.Snapshot, error)
	DeleteRequest(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*StatsReport, error)
	Export(ctx context.Context, w io.Writer, filter port.RequestFilter) error
	ExportFormat() (contentType, extension string)
}

type approvalServiceImpl struct {
	engine    workflow.Engine
	requests  port.RequestRepository
	actions   port.ActionRepository
	templates port.TemplateRepository
	exporter  port.ReportExporter
	logger    Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	engine workflow.Engine,
	store port.Store,
	exporter port.ReportExporter,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		engine:    engine,
		requests:  store.Requests,
		actions:   store.Actions,
		templates: store.Templates,
		exporter:  exporter,
		logger:    logger,
	}
}

// CreateRequest submits a new request on a template
func (s *approvalServiceImpl) CreateRequest(ctx context.Context, in workflow.CreateInput) (*workflow.Snapshot, error) {
	in.Title = utils.SanitizeString(in.Title)
	in.Description = utils.SanitizeString(in.Description)

	snap, err := s.engine.Create(ctx, in)
	if err != nil {
		s.logger.Error("Failed to create request", "error", err, "template_id", in.TemplateID, "requester_id", in.RequesterID)
		return nil, err
	}

	s.logger.Info("Request created",
		"request_id", snap.Request.ID,
		"instance_id", snap.Instance.ID,
		"total_steps", snap.Request.TotalSteps,
	)
	return snap, nil
}

// GetRequest returns the request with its instance, steps and actions
func (s *approvalServiceImpl) GetRequest(ctx context.Context, id int64) (*RequestDetail, error) {
	snap, err := s.engine.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	actions, err := s.actions.ListByRequest(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list actions", "error", err, "request_id", id)
		return nil, fmt.Errorf("list actions: %w", err)
	}

	detail := &RequestDetail{
		Request:  snap.Request,
		Instance: snap.Instance,
		Steps:    snap.Steps,
		Actions:  actions,
	}
	if tpl, err := s.templates.GetByID(ctx, snap.Request.TemplateID); err == nil {
		detail.TemplateName = tpl.Name
	}
	return detail, nil
}

// ListRequests lists requests, optionally narrowed by requester, status or category
func (s *approvalServiceImpl) ListRequests(ctx context.Context, filter port.RequestFilter) ([]*entity.ApprovalRequest, error) {
	if filter.Status != "" && !entity.IsValidRequestStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", workflow.ErrInvalidInput, filter.Status)
	}
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list requests", "error", err)
		return nil, err
	}
	return nonNil(requests), nil
}

// ListPending lists requests the approver may decide right now
func (s *approvalServiceImpl) ListPending(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error) {
	if strings.TrimSpace(approverID) == "" {
		return nil, fmt.Errorf("%w: approver id is required", workflow.ErrInvalidInput)
	}
	requests, err := s.requests.ListPendingForApprover(ctx, approverID)
	if err != nil {
		s.logger.Error("Failed to list pending requests", "error", err, "approver_id", approverID)
		return nil, err
	}
	return nonNil(requests), nil
}

// SubmitDecision applies an approver decision to the request's flow instance
func (s *approvalServiceImpl) SubmitDecision(ctx context.Context, requestID int64, in DecisionInput) (*workflow.Snapshot, error) {
	current, err := s.engine.Snapshot(ctx, requestID)
	if err != nil {
		return nil, err
	}

	nodeID := in.NodeID
	if nodeID == "" {
		nodeID = current.Instance.CurrentNodeID
	}

	snap, err := s.engine.Advance(ctx, workflow.Decision{
		InstanceID: current.Instance.ID,
		NodeID:     nodeID,
		ApproverID: strings.TrimSpace(in.ApproverID),
		Decision:   strings.ToLower(strings.TrimSpace(in.Decision)),
		Comment:    in.Comment,
	})
	if err != nil {
		s.logger.Error("Decision rejected",
			"error", err,
			"request_id", requestID,
			"node_id", nodeID,
			"approver_id", in.ApproverID,
		)
		return nil, err
	}

	s.logger.Info("Decision recorded",
		"request_id", requestID,
		"node_id", nodeID,
		"decision", in.Decision,
		"status", snap.Request.Status,
		"current_step", snap.Request.CurrentStep,
	)
	return snap, nil
}

// DeleteRequest tombstones the request and everything attached to it
func (s *approvalServiceImpl) DeleteRequest(ctx context.Context, id int64) error {
	if err := s.engine.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete request", "error", err, "request_id", id)
		return err
	}
	s.logger.Info("Request deleted", "request_id", id)
	return nil
}

// Stats returns status totals and the per-category breakdown
func (s *approvalServiceImpl) Stats(ctx context.Context) (*StatsReport, error) {
	totals, err := s.requests.Stats(ctx)
	if err != nil {
		s.logger.Error("Failed to compute stats", "error", err)
		return nil, err
	}
	categories, err := s.requests.CategoryStats(ctx)
	if err != nil {
		s.logger.Error("Failed to compute category stats", "error", err)
		return nil, err
	}
	if categories == nil {
		categories = []*entity.CategoryStats{}
	}
	return &StatsReport{Totals: totals, Categories: categories}, nil
}

// Export writes the filtered requests and current stats through the configured exporter
func (s *approvalServiceImpl) Export(ctx context.Context, w io.Writer, filter port.RequestFilter) error {
	if s.exporter == nil {
		return fmt.Errorf("%w: export is not configured", workflow.ErrInvalidInput)
	}

	requests, err := s.ListRequests(ctx, filter)
	if err != nil {
		return err
	}
	report, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	if err := s.exporter.ExportRequests(w, requests, report.Totals, report.Categories); err != nil {
		s.logger.Error("Failed to export requests", "error", err, "count", len(requests))
		return fmt.Errorf("export requests: %w", err)
	}

	s.logger.Info("Requests exported", "count", len(requests))
	return nil
}

// ExportFormat reports the content type and file extension of exports
func (s *approvalServiceImpl) ExportFormat() (string, string) {
	if s.exporter == nil {
		return "", ""
	}
	return s.exporter.ContentType(), s.exporter.FileExtension()
}

func nonNil(requests []*entity.ApprovalRequest) []*entity.ApprovalRequest {
	if requests == nil {
		return []*entity.ApprovalRequest{}
	}
	return requests
}
