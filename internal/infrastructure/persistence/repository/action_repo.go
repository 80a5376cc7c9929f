package repository

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ActionRepository implements port.ActionRepository
type ActionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewActionRepository creates a new action repository
func NewActionRepository(db *sqlite.DB, logger *zap.Logger) port.ActionRepository {
	return &ActionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit action
func (r *ActionRepository) Create(ctx context.Context, action *entity.ApprovalAction) error {
	query := `
		INSERT INTO approval_actions (request_id, approver_id, action, comments, step, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		action.RequestID,
		action.ApproverID,
		action.Action,
		action.Comment,
		action.Step,
		action.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create action", zap.Int64("request_id", action.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	action.ID = id
	return nil
}

// ListByRequest returns the live actions of a request in order
func (r *ActionRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.ApprovalAction, error) {
	query := `
		SELECT id, request_id, approver_id, action, comments, step, timestamp
		FROM approval_actions
		WHERE request_id = ? AND deleted_at IS NULL
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list actions", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*entity.ApprovalAction
	for rows.Next() {
		var a entity.ApprovalAction
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ApproverID, &a.Action, &a.Comment, &a.Step, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

var _ port.ActionRepository = (*ActionRepository)(nil)
