package port

import (
	"context"
	"time"

	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// TemplateRepository defines persistence operations for flow templates.
// Soft-deleted templates are invisible to every read.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *entity.Template) error
	GetByID(ctx context.Context, id int64) (*entity.Template, error)
	GetByName(ctx context.Context, name string) (*entity.Template, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Template, int, error)
	Update(ctx context.Context, tpl *entity.Template) error
	Deactivate(ctx context.Context, id int64) error
	SoftDelete(ctx context.Context, id int64) error
	// CountActiveInstances counts non-terminal, non-deleted instances bound to the template
	CountActiveInstances(ctx context.Context, templateID int64) (int, error)
	// CountBoundInstances counts non-deleted instances bound to the template in any status
	CountBoundInstances(ctx context.Context, templateID int64) (int, error)
}

// RequestFilter narrows RequestRepository.List
type RequestFilter struct {
	RequesterID string
	Status      string
	Category    string
	Limit       int
	Offset      int
}

// RequestRepository defines persistence operations for approval requests
type RequestRepository interface {
	Create(ctx context.Context, req *entity.ApprovalRequest) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]*entity.ApprovalRequest, error)
	// ListPendingForApprover returns requests whose open step the approver may decide
	ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error)
	// ListOverdue returns open requests whose due date is before now
	ListOverdue(ctx context.Context, now time.Time) ([]*entity.ApprovalRequest, error)
	SetFlowInstance(ctx context.Context, requestID, instanceID int64) error
	// UpdateProjection writes the status and current step mirrored from the instance
	UpdateProjection(ctx context.Context, requestID int64, status string, currentStep int) error
	// TombstoneCascade soft-deletes the request with its instance, steps and actions
	TombstoneCascade(ctx context.Context, requestID int64) error
	Stats(ctx context.Context) (*entity.RequestStats, error)
	CategoryStats(ctx context.Context) ([]*entity.CategoryStats, error)
}

// InstanceRepository defines persistence operations for flow instances
type InstanceRepository interface {
	Create(ctx context.Context, inst *entity.FlowInstance) error
	GetByID(ctx context.Context, id int64) (*entity.FlowInstance, error)
	GetByRequestID(ctx context.Context, requestID int64) (*entity.FlowInstance, error)
	// UpdateState writes node, status, version and completion time when the stored
	// version equals expectedVersion; otherwise it returns ErrVersionConflict.
	UpdateState(ctx context.Context, inst *entity.FlowInstance, expectedVersion int64) error
}

// StepRepository defines persistence operations for the step ledger
type StepRepository interface {
	// Create appends a step; ErrDuplicate if (instance, index) already exists
	Create(ctx context.Context, step *entity.FlowStep) error
	GetByIndex(ctx context.Context, instanceID int64, stepIndex int) (*entity.FlowStep, error)
	// LastIndex returns the highest step index for the instance, or -1
	LastIndex(ctx context.Context, instanceID int64) (int, error)
	ListByInstance(ctx context.Context, instanceID int64) ([]*entity.FlowStep, error)
	// UpdateDecision settles a pending step; ErrVersionConflict if it is no longer pending
	UpdateDecision(ctx context.Context, step *entity.FlowStep) error
}

// ActionRepository defines persistence operations for approval actions
type ActionRepository interface {
	Create(ctx context.Context, action *entity.ApprovalAction) error
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.ApprovalAction, error)
}

// UserRepository defines persistence operations for the user directory
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories of one backing store
type Store struct {
	Templates TemplateRepository
	Requests  RequestRepository
	Instances InstanceRepository
	Steps     StepRepository
	Actions   ActionRepository
	Users     UserRepository
	Tx        TransactionManager
}
