package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const stepColumns = `id, instance_id, node_id, approver_id, assignees, decision,
	comments, step_index, decision_at, created_at`

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *sqlite.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a step; the (instance_id, step_index) unique key rejects a second writer
func (r *StepRepository) Create(ctx context.Context, step *entity.FlowStep) error {
	assignees, err := encodeStrings(step.Assignees)
	if err != nil {
		return err
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO approval_flow_steps (
			instance_id, node_id, approver_id, assignees, decision,
			comments, step_index, decision_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		step.InstanceID,
		step.NodeID,
		step.ApproverID,
		assignees,
		step.Decision,
		step.Comment,
		step.StepIndex,
		nullTime(step.DecisionAt),
		step.CreatedAt,
	)
	if err != nil {
		what := fmt.Sprintf("step %d of instance %d", step.StepIndex, step.InstanceID)
		if sqlite.IsUniqueViolation(err) {
			return duplicate(err, what)
		}
		r.logger.Error("Failed to create step", zap.Int64("instance_id", step.InstanceID), zap.Error(err))
		return fmt.Errorf("failed to create step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	step.ID = id
	return nil
}

// GetByIndex retrieves the live step at index
func (r *StepRepository) GetByIndex(ctx context.Context, instanceID int64, stepIndex int) (*entity.FlowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_flow_steps
		WHERE instance_id = ? AND step_index = ? AND deleted_at IS NULL`

	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, instanceID, stepIndex))
	if err == sql.ErrNoRows {
		return nil, notFound(err, fmt.Sprintf("step %d of instance %d", stepIndex, instanceID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// LastIndex returns the highest live step index, or -1
func (r *StepRepository) LastIndex(ctx context.Context, instanceID int64) (int, error) {
	var last int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(step_index), -1) FROM approval_flow_steps WHERE instance_id = ? AND deleted_at IS NULL`,
		instanceID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to read last step: %w", err)
	}
	return last, nil
}

// ListByInstance returns the live ledger in index order
func (r *StepRepository) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.FlowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_flow_steps
		WHERE instance_id = ? AND deleted_at IS NULL ORDER BY step_index ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to list steps", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.FlowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// UpdateDecision settles a pending step
func (r *StepRepository) UpdateDecision(ctx context.Context, step *entity.FlowStep) error {
	query := `
		UPDATE approval_flow_steps
		SET decision = ?, approver_id = ?, comments = ?, decision_at = ?
		WHERE instance_id = ? AND step_index = ? AND decision = ? AND deleted_at IS NULL
	`
	exec := r.db.Executor(ctx)

	result, err := exec.ExecContext(ctx, query,
		step.Decision,
		step.ApproverID,
		step.Comment,
		nullTime(step.DecisionAt),
		step.InstanceID,
		step.StepIndex,
		entity.DecisionPending,
	)
	if err != nil {
		r.logger.Error("Failed to record decision",
			zap.Int64("instance_id", step.InstanceID), zap.Int("step", step.StepIndex), zap.Error(err))
		return fmt.Errorf("failed to record decision: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = exec.QueryRowContext(ctx,
		`SELECT decision FROM approval_flow_steps WHERE instance_id = ? AND step_index = ? AND deleted_at IS NULL`,
		step.InstanceID, step.StepIndex,
	).Scan(&current)
	if err != nil {
		return notFound(err, fmt.Sprintf("step %d of instance %d", step.StepIndex, step.InstanceID))
	}
	return fmt.Errorf("step %d of instance %d already %s: %w", step.StepIndex, step.InstanceID, current, port.ErrVersionConflict)
}

func scanStep(row rowScanner) (*entity.FlowStep, error) {
	var step entity.FlowStep
	var assignees string
	var decisionAt sql.NullTime

	if err := row.Scan(
		&step.ID,
		&step.InstanceID,
		&step.NodeID,
		&step.ApproverID,
		&assignees,
		&step.Decision,
		&step.Comment,
		&step.StepIndex,
		&decisionAt,
		&step.CreatedAt,
	); err != nil {
		return nil, err
	}

	list, err := decodeStrings(assignees)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		step.Assignees = list
	}
	step.DecisionAt = timePtr(decisionAt)
	return &step, nil
}

var _ port.StepRepository = (*StepRepository)(nil)
