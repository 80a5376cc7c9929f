package workflow

import (
	"context"
	"time"

	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// Engine drives approval requests through their template graph.
// Every mutating call is atomic: on error nothing it did is visible.
type Engine interface {
	// Create writes a request, its flow instance, the requester's step 0 and
	// the placeholder for the first approver.
	Create(ctx context.Context, in CreateInput) (*Snapshot, error)

	// Advance applies one approver decision to the instance's current node.
	Advance(ctx context.Context, d Decision) (*Snapshot, error)

	// Delete tombstones a request together with its instance, steps and actions.
	Delete(ctx context.Context, requestID int64) error

	// Snapshot reads the committed state of a request.
	Snapshot(ctx context.Context, requestID int64) (*Snapshot, error)
}

// CreateInput is what a requester submits
type CreateInput struct {
	TemplateID  int64
	RequesterID string
	Title       string
	Description string
	Priority    string
	Category    string
	DueDate     *time.Time
	Attachments []string
}

// Decision is one approver's verdict on the instance's current node
type Decision struct {
	InstanceID int64
	NodeID     string
	ApproverID string
	Decision   string
	Comment    string
}

// Snapshot is a consistent view of a request and its flow
type Snapshot struct {
	Request  *entity.ApprovalRequest `json:"request"`
	Instance *entity.FlowInstance    `json:"instance"`
	Steps    []*entity.FlowStep      `json:"steps"`
}

// Recorder receives engine measurements
type Recorder interface {
	RequestCreated(category string)
	DecisionRecorded(decision string)
	Transition(from, to string)
	LockContention()
	OperationFailed(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RequestCreated(string)   {}
func (nopRecorder) DecisionRecorded(string) {}
func (nopRecorder) Transition(_, _ string)  {}
func (nopRecorder) LockContention()         {}
func (nopRecorder) OperationFailed(string)  {}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
