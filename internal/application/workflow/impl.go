package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/ledger"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
	"github.com/garyjia/approval-flow/internal/domain/graph"
	domainwf "github.com/garyjia/approval-flow/internal/domain/workflow"
)

// ActionSubmitted is the action recorded for the requester's submission
const ActionSubmitted = "submitted"

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	templates port.TemplateRepository
	requests  port.RequestRepository
	instances port.InstanceRepository
	steps     port.StepRepository
	actions   port.ActionRepository
	txManager port.TransactionManager

	ledger     *ledger.Ledger
	locks      *keyedLock
	dispatcher dispatcher.Dispatcher
	recorder   Recorder
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = r
	}
}

// WithLogger sets the logger used for post-commit failures
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a workflow engine over the given store
func NewEngine(store port.Store, opts ...EngineOption) Engine {
	e := &engineImpl{
		templates: store.Templates,
		requests:  store.Requests,
		instances: store.Instances,
		steps:     store.Steps,
		actions:   store.Actions,
		txManager: store.Tx,
		locks:     newKeyedLock(),
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = ledger.New(store.Steps, e.now)
	return e
}

func (e *engineImpl) Create(ctx context.Context, in CreateInput) (*Snapshot, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	var snap *Snapshot
	var events []*event.Event

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tpl, err := e.templates.GetByID(txCtx, in.TemplateID)
		if err != nil {
			return err
		}
		if !tpl.IsActive {
			return fmt.Errorf("%w: template %d", ErrTemplateInactive, tpl.ID)
		}

		g := tpl.Graph
		start := g.Start()
		first, ok := g.NextStop(start.ID)
		if !ok || first.Type != graph.NodeApprover {
			return graph.NewValidationError(start.ID, graph.ErrNoApprovers)
		}

		machine := domainwf.NewApprovalMachine(domainwf.StatePending)
		if err := machine.Fire(domainwf.TriggerSubmit, domainwf.Progress{}); err != nil {
			return err
		}
		status := machine.State().String()

		category := in.Category
		if category == "" {
			category = tpl.Category
		}

		req := &entity.ApprovalRequest{
			Title:       in.Title,
			Description: in.Description,
			RequesterID: in.RequesterID,
			TemplateID:  tpl.ID,
			Status:      entity.RequestStatusFor(status),
			Priority:    in.Priority,
			Category:    category,
			CurrentStep: g.StepNumber(first.ID),
			TotalSteps:  g.TotalSteps(),
			DueDate:     in.DueDate,
			Attachments: in.Attachments,
		}
		if err := e.requests.Create(txCtx, req); err != nil {
			return err
		}

		inst := &entity.FlowInstance{
			TemplateID:    tpl.ID,
			RequestID:     req.ID,
			CurrentNodeID: first.ID,
			Status:        status,
			Version:       1,
		}
		if err := e.instances.Create(txCtx, inst); err != nil {
			return err
		}
		if err := e.requests.SetFlowInstance(txCtx, req.ID, inst.ID); err != nil {
			return err
		}
		req.FlowInstanceID = inst.ID

		submittedAt := e.now()
		submission := &entity.FlowStep{
			InstanceID: inst.ID,
			NodeID:     start.ID,
			ApproverID: in.RequesterID,
			Decision:   entity.DecisionApproved,
			StepIndex:  0,
			DecisionAt: &submittedAt,
		}
		if err := e.ledger.Append(txCtx, submission); err != nil {
			return err
		}
		placeholder := e.placeholder(inst.ID, first, 1)
		if err := e.ledger.Append(txCtx, placeholder); err != nil {
			return err
		}

		if err := e.actions.Create(txCtx, &entity.ApprovalAction{
			RequestID:  req.ID,
			ApproverID: in.RequesterID,
			Action:     ActionSubmitted,
			Step:       0,
			Timestamp:  submittedAt,
		}); err != nil {
			return err
		}

		snap = &Snapshot{Request: req, Instance: inst, Steps: []*entity.FlowStep{submission, placeholder}}

		correlation := correlationFor(inst)
		created := event.NewEventWithCorrelation(event.TypeRequestCreated, req.ID, inst.ID, map[string]interface{}{
			event.KeyTitle:       req.Title,
			event.KeyRequesterID: req.RequesterID,
			event.KeyTemplateID:  tpl.ID,
			event.KeyTotalSteps:  req.TotalSteps,
		}, correlation)
		events = append(events, created, e.assignedEvent(correlation, req, inst, first, placeholder))
		return nil
	})
	if err != nil {
		e.recorder.OperationFailed("create")
		return nil, classify(err)
	}

	e.recorder.RequestCreated(snap.Request.Category)
	e.recorder.Transition(entity.InstanceStatusPending, snap.Instance.Status)
	e.publish(ctx, events)
	return snap, nil
}

func (e *engineImpl) Advance(ctx context.Context, d Decision) (*Snapshot, error) {
	if d.Decision != entity.DecisionApproved && d.Decision != entity.DecisionRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, d.Decision)
	}
	if d.InstanceID <= 0 || d.NodeID == "" || d.ApproverID == "" {
		return nil, fmt.Errorf("%w: instance, node and approver are required", ErrInvalidInput)
	}

	release, ok := e.locks.TryLock(d.InstanceID)
	if !ok {
		e.recorder.LockContention()
		return nil, fmt.Errorf("%w: instance %d", ErrInstanceBusy, d.InstanceID)
	}
	defer release()

	var snap *Snapshot
	var events []*event.Event
	var from, to string

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := e.instances.GetByID(txCtx, d.InstanceID)
		if err != nil {
			return err
		}
		if inst.IsTerminal() {
			return fmt.Errorf("%w: instance %d is %s", ErrAlreadyTerminal, inst.ID, inst.Status)
		}
		if inst.CurrentNodeID != d.NodeID {
			return fmt.Errorf("%w: instance %d is at %q, not %q", ErrNodeMismatch, inst.ID, inst.CurrentNodeID, d.NodeID)
		}

		tpl, err := e.templates.GetByID(txCtx, inst.TemplateID)
		if err != nil {
			return err
		}
		g := tpl.Graph
		if _, ok := g.Node(inst.CurrentNodeID); !ok {
			return fmt.Errorf("%w: node %q missing from template %d", ErrPersistence, inst.CurrentNodeID, tpl.ID)
		}

		open, err := e.ledger.Last(txCtx, inst.ID)
		if err != nil {
			return err
		}
		if open.NodeID != inst.CurrentNodeID || open.IsDecided() {
			return fmt.Errorf("%w: open step %d does not belong to node %q", ledger.ErrIndexConflict, open.StepIndex, inst.CurrentNodeID)
		}

		decided, err := e.ledger.RecordDecision(txCtx, inst.ID, open.StepIndex, d.Decision, d.ApproverID, d.Comment)
		if err != nil {
			return err
		}

		req, err := e.requests.GetByID(txCtx, inst.RequestID)
		if err != nil {
			return err
		}

		from = inst.Status
		expected := inst.Version
		machine := domainwf.NewApprovalMachine(domainwf.State(inst.Status))
		correlation := correlationFor(inst)
		var assigned *event.Event

		if d.Decision == entity.DecisionRejected {
			if err := machine.Fire(domainwf.TriggerReject, domainwf.Progress{}); err != nil {
				return err
			}
		} else {
			next, ok := g.NextStop(inst.CurrentNodeID)
			if !ok {
				return fmt.Errorf("%w: node %q has no successor", ErrPersistence, inst.CurrentNodeID)
			}

			if err := machine.Fire(domainwf.TriggerApprove, domainwf.Progress{Final: next.Type == graph.NodeEnd}); err != nil {
				return err
			}
			if machine.State() == domainwf.StateCompleted {
				completedAt := e.now()
				inst.CompletedAt = &completedAt
			} else {
				placeholder := e.placeholder(inst.ID, next, open.StepIndex+1)
				if err := e.ledger.Append(txCtx, placeholder); err != nil {
					return err
				}
				assigned = e.assignedEvent(correlation, req, inst, next, placeholder)
			}
			inst.CurrentNodeID = next.ID
		}

		inst.Status = machine.State().String()
		inst.Version = expected + 1
		if err := e.instances.UpdateState(txCtx, inst, expected); err != nil {
			if errors.Is(err, port.ErrVersionConflict) {
				return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
			}
			return err
		}
		to = inst.Status

		req.Status = entity.RequestStatusFor(inst.Status)
		req.CurrentStep = projectedStep(g, inst, req)
		if err := e.requests.UpdateProjection(txCtx, req.ID, req.Status, req.CurrentStep); err != nil {
			return err
		}

		if err := e.actions.Create(txCtx, &entity.ApprovalAction{
			RequestID:  req.ID,
			ApproverID: d.ApproverID,
			Action:     d.Decision,
			Comment:    d.Comment,
			Step:       decided.StepIndex,
			Timestamp:  *decided.DecisionAt,
		}); err != nil {
			return err
		}

		history, err := e.ledger.History(txCtx, inst.ID)
		if err != nil {
			return err
		}
		snap = &Snapshot{Request: req, Instance: inst, Steps: history}
		events = e.decisionEvents(correlation, req, inst, decided, from, assigned)
		return nil
	})
	// publish may call slow notifiers; don't hold the instance lock for them
	release()
	if err != nil {
		e.recorder.OperationFailed("advance")
		return nil, classify(err)
	}

	e.recorder.DecisionRecorded(d.Decision)
	if from != to {
		e.recorder.Transition(from, to)
	}
	e.publish(ctx, events)
	return snap, nil
}

func (e *engineImpl) Delete(ctx context.Context, requestID int64) error {
	req, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return classify(err)
	}

	release := func() {}
	if req.FlowInstanceID > 0 {
		var ok bool
		release, ok = e.locks.TryLock(req.FlowInstanceID)
		if !ok {
			e.recorder.LockContention()
			return fmt.Errorf("%w: instance %d", ErrInstanceBusy, req.FlowInstanceID)
		}
		defer release()
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.requests.TombstoneCascade(txCtx, requestID)
	})
	release()
	if err != nil {
		e.recorder.OperationFailed("delete")
		return classify(err)
	}

	e.publish(ctx, []*event.Event{
		event.NewEventWithCorrelation(event.TypeRequestDeleted, req.ID, req.FlowInstanceID, map[string]interface{}{
			event.KeyTitle:       req.Title,
			event.KeyRequesterID: req.RequesterID,
		}, correlationFor(&entity.FlowInstance{ID: req.FlowInstanceID})),
	})
	return nil
}

func (e *engineImpl) Snapshot(ctx context.Context, requestID int64) (*Snapshot, error) {
	req, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, classify(err)
	}
	inst, err := e.instances.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, classify(err)
	}
	steps, err := e.ledger.History(ctx, inst.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &Snapshot{Request: req, Instance: inst, Steps: steps}, nil
}

// placeholder builds the pending step for an approver node
func (e *engineImpl) placeholder(instanceID int64, node graph.Node, index int) *entity.FlowStep {
	return &entity.FlowStep{
		InstanceID: instanceID,
		NodeID:     node.ID,
		Assignees:  append([]string(nil), node.ApproverIDs...),
		Decision:   entity.DecisionPending,
		StepIndex:  index,
	}
}

// projectedStep is the request's 1-based approver position, capped at TotalSteps
func projectedStep(g *graph.Graph, inst *entity.FlowInstance, req *entity.ApprovalRequest) int {
	if inst.Status == entity.InstanceStatusCompleted {
		return req.TotalSteps
	}
	n := g.StepNumber(inst.CurrentNodeID)
	if n == 0 {
		return req.CurrentStep
	}
	if n > req.TotalSteps {
		return req.TotalSteps
	}
	return n
}

func (e *engineImpl) assignedEvent(correlation string, req *entity.ApprovalRequest, inst *entity.FlowInstance, node graph.Node, step *entity.FlowStep) *event.Event {
	return event.NewEventWithCorrelation(event.TypeApproverAssigned, req.ID, inst.ID, map[string]interface{}{
		event.KeyTitle:       req.Title,
		event.KeyRequesterID: req.RequesterID,
		event.KeyNodeID:      node.ID,
		event.KeyNodeLabel:   node.Label,
		event.KeyAssignees:   append([]string(nil), node.ApproverIDs...),
		event.KeyStepIndex:   step.StepIndex,
		event.KeyCurrentStep: req.CurrentStep,
		event.KeyTotalSteps:  req.TotalSteps,
	}, correlation)
}

func (e *engineImpl) decisionEvents(correlation string, req *entity.ApprovalRequest, inst *entity.FlowInstance, step *entity.FlowStep, from string, assigned *event.Event) []*event.Event {
	base := map[string]interface{}{
		event.KeyTitle:       req.Title,
		event.KeyRequesterID: req.RequesterID,
		event.KeyNodeID:      step.NodeID,
		event.KeyApproverID:  step.ApproverID,
		event.KeyDecision:    step.Decision,
		event.KeyComment:     step.Comment,
		event.KeyStepIndex:   step.StepIndex,
		event.KeyCurrentStep: req.CurrentStep,
		event.KeyTotalSteps:  req.TotalSteps,
	}
	events := []*event.Event{
		event.NewEventWithCorrelation(event.TypeStepDecided, req.ID, inst.ID, base, correlation),
	}

	if from != inst.Status {
		changed := event.NewEventWithCorrelation(event.TypeStatusChanged, req.ID, inst.ID, nil, correlation).
			WithPayload(event.KeyOldStatus, entity.RequestStatusFor(from)).
			WithPayload(event.KeyNewStatus, req.Status).
			WithPayload(event.KeyRequesterID, req.RequesterID).
			WithPayload(event.KeyTitle, req.Title)
		events = append(events, changed)
	}

	switch inst.Status {
	case entity.InstanceStatusCompleted:
		events = append(events, event.NewEventWithCorrelation(event.TypeRequestCompleted, req.ID, inst.ID, base, correlation))
	case entity.InstanceStatusRejected:
		events = append(events, event.NewEventWithCorrelation(event.TypeRequestRejected, req.ID, inst.ID, base, correlation))
	}

	if assigned != nil {
		events = append(events, assigned)
	}
	return events
}

// correlationFor groups every event raised for one instance
func correlationFor(inst *entity.FlowInstance) string {
	return fmt.Sprintf("instance-%d", inst.ID)
}

// publish dispatches committed events; handler failures never undo the commit
func (e *engineImpl) publish(ctx context.Context, events []*event.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range events {
		if err := e.dispatcher.Dispatch(ctx, evt); err != nil && e.logger != nil {
			e.logger.Error("Event dispatch failed",
				"event_type", evt.Type,
				"request_id", evt.RequestID,
				"error", err,
			)
		}
	}
}

func validateCreate(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.RequesterID = strings.TrimSpace(in.RequesterID)

	var missing []string
	if in.TemplateID <= 0 {
		missing = append(missing, "template_id")
	}
	if in.RequesterID == "" {
		missing = append(missing, "requester_id")
	}
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	if in.Priority == "" {
		in.Priority = entity.PriorityMedium
	}
	if !entity.IsValidPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}
	if in.Attachments == nil {
		in.Attachments = []string{}
	}
	return nil
}
