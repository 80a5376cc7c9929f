package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
)

// NotificationService tells approvers and requesters about flow progress
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)
	NotifyAssigned(ctx context.Context, evt *event.Event) error
	NotifyOutcome(ctx context.Context, evt *event.Event) error
	// RemindOverdue re-notifies the approvers of open requests past their due date
	// and returns how many requests were reminded
	RemindOverdue(ctx context.Context, now time.Time) (int, error)
}

type notificationServiceImpl struct {
	users     port.UserRepository
	requests  port.RequestRepository
	instances port.InstanceRepository
	steps     port.StepRepository
	sender    port.MessageSender
	logger    Logger
}

// NewNotificationService creates a new NotificationService.
// A nil sender logs messages instead of delivering them.
func NewNotificationService(store port.Store, sender port.MessageSender, logger Logger) NotificationService {
	return &notificationServiceImpl{
		users:     store.Users,
		requests:  store.Requests,
		instances: store.Instances,
		steps:     store.Steps,
		sender:    sender,
		logger:    logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApproverAssigned, "notify-approvers", s.quiet(s.NotifyAssigned))
	d.SubscribeNamed(event.TypeRequestCompleted, "notify-requester", s.quiet(s.NotifyOutcome))
	d.SubscribeNamed(event.TypeRequestRejected, "notify-requester", s.quiet(s.NotifyOutcome))
}

// quiet logs handler failures instead of returning them, so a failed
// notification never stops the handlers after it
func (s *notificationServiceImpl) quiet(h dispatcher.Handler) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if err := h(ctx, evt); err != nil {
			s.logger.Error("Notification failed",
				"error", err,
				"event_type", evt.Type,
				"request_id", evt.RequestID,
			)
		}
		return nil
	}
}

// NotifyAssigned messages every approver listed on the newly opened step
func (s *notificationServiceImpl) NotifyAssigned(ctx context.Context, evt *event.Event) error {
	assignees := evt.GetPayloadStrings(event.KeyAssignees)
	if len(assignees) == 0 {
		s.logger.Info("Step open to any approver, nobody to notify", "request_id", evt.RequestID)
		return nil
	}

	msg := fmt.Sprintf("Approval needed: %q (request #%d, step %d of %d, %s)",
		evt.GetPayloadString(event.KeyTitle),
		evt.RequestID,
		evt.GetPayloadInt(event.KeyCurrentStep),
		evt.GetPayloadInt(event.KeyTotalSteps),
		evt.GetPayloadString(event.KeyNodeLabel),
	)
	return s.sendAll(ctx, assignees, msg)
}

// NotifyOutcome messages the requester once the request is approved or rejected
func (s *notificationServiceImpl) NotifyOutcome(ctx context.Context, evt *event.Event) error {
	requester := evt.GetPayloadString(event.KeyRequesterID)
	if requester == "" {
		return fmt.Errorf("event %s carries no requester", evt.ID)
	}

	outcome := "approved"
	if evt.Type == event.TypeRequestRejected {
		outcome = "rejected"
	}
	msg := fmt.Sprintf("Your request %q (#%d) was %s by %s",
		evt.GetPayloadString(event.KeyTitle),
		evt.RequestID,
		outcome,
		evt.GetPayloadString(event.KeyApproverID),
	)
	if comment := evt.GetPayloadString(event.KeyComment); comment != "" {
		msg += ": " + comment
	}
	return s.send(ctx, requester, msg)
}

func (s *notificationServiceImpl) RemindOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.requests.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	reminded := 0
	for _, req := range overdue {
		step, err := s.openStep(ctx, req.ID)
		if err != nil {
			s.logger.Error("Failed to load open step", "error", err, "request_id", req.ID)
			continue
		}
		if step == nil || len(step.Assignees) == 0 {
			continue
		}

		msg := fmt.Sprintf("Reminder: %q (request #%d) was due %s and still waits for your decision",
			req.Title, req.ID, req.DueDate.Format(time.RFC3339))
		if err := s.sendAll(ctx, step.Assignees, msg); err != nil {
			s.logger.Error("Failed to send reminder", "error", err, "request_id", req.ID)
			continue
		}
		reminded++
	}

	if reminded > 0 {
		s.logger.Info("Overdue reminders sent", "count", reminded)
	}
	return reminded, nil
}

// openStep returns the pending step of the request's instance, or nil
func (s *notificationServiceImpl) openStep(ctx context.Context, requestID int64) (*entity.FlowStep, error) {
	inst, err := s.instances.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if inst.IsTerminal() {
		return nil, nil
	}
	last, err := s.steps.LastIndex(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if last < 0 {
		return nil, nil
	}
	step, err := s.steps.GetByIndex(ctx, inst.ID, last)
	if err != nil {
		return nil, err
	}
	if step.IsDecided() {
		return nil, nil
	}
	return step, nil
}

func (s *notificationServiceImpl) sendAll(ctx context.Context, userIDs []string, msg string) error {
	var errs []error
	for _, id := range userIDs {
		if err := s.send(ctx, id, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// send delivers msg to a directory user through their chat id
func (s *notificationServiceImpl) send(ctx context.Context, userID, msg string) error {
	if s.sender == nil {
		s.logger.Info("Notification", "user_id", userID, "message", msg)
		return nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			s.logger.Info("Recipient not in directory, skipping", "user_id", userID)
			return nil
		}
		return fmt.Errorf("get user %s: %w", userID, err)
	}
	if user.LarkOpenID == "" {
		s.logger.Info("Recipient has no chat id, skipping", "user_id", userID)
		return nil
	}

	if err := s.sender.SendMessage(ctx, user.LarkOpenID, msg); err != nil {
		return fmt.Errorf("send message to %s: %w", userID, err)
	}

	s.logger.Info("Notification sent", "user_id", userID, "message_length", len(msg))
	return nil
}
