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

const instanceColumns = `id, template_id, request_id, current_node_id, status, version,
	created_at, updated_at, completed_at`

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sqlite.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new flow instance
func (r *InstanceRepository) Create(ctx context.Context, inst *entity.FlowInstance) error {
	query := `
		INSERT INTO approval_flow_instances (
			template_id, request_id, current_node_id, status, version,
			created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		inst.TemplateID,
		inst.RequestID,
		inst.CurrentNodeID,
		inst.Status,
		inst.Version,
		now,
		now,
		nullTime(inst.CompletedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Int64("request_id", inst.RequestID), zap.Error(err))
		return duplicate(fmt.Errorf("failed to create instance: %w", err), fmt.Sprintf("instance for request %d", inst.RequestID))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	inst.ID = id
	inst.CreatedAt, inst.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a live flow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*entity.FlowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM approval_flow_instances WHERE id = ? AND deleted_at IS NULL`
	return r.get(ctx, fmt.Sprintf("instance %d", id), query, id)
}

// GetByRequestID retrieves the live flow instance of a request
func (r *InstanceRepository) GetByRequestID(ctx context.Context, requestID int64) (*entity.FlowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM approval_flow_instances WHERE request_id = ? AND deleted_at IS NULL`
	return r.get(ctx, fmt.Sprintf("instance of request %d", requestID), query, requestID)
}

// UpdateState writes the instance's position when the stored version matches
func (r *InstanceRepository) UpdateState(ctx context.Context, inst *entity.FlowInstance, expectedVersion int64) error {
	query := `
		UPDATE approval_flow_instances
		SET current_node_id = ?, status = ?, version = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL
	`
	now := time.Now()
	exec := r.db.Executor(ctx)

	result, err := exec.ExecContext(ctx, query,
		inst.CurrentNodeID,
		inst.Status,
		inst.Version,
		nullTime(inst.CompletedAt),
		now,
		inst.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.Int64("id", inst.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		inst.UpdatedAt = now
		return nil
	}

	var stored int64
	err = exec.QueryRowContext(ctx,
		`SELECT version FROM approval_flow_instances WHERE id = ? AND deleted_at IS NULL`, inst.ID).Scan(&stored)
	if err != nil {
		return notFound(err, fmt.Sprintf("instance %d", inst.ID))
	}
	return fmt.Errorf("instance %d at version %d, expected %d: %w", inst.ID, stored, expectedVersion, port.ErrVersionConflict)
}

func (r *InstanceRepository) get(ctx context.Context, what, query string, arg interface{}) (*entity.FlowInstance, error) {
	var inst entity.FlowInstance
	var completedAt sql.NullTime

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(
		&inst.ID,
		&inst.TemplateID,
		&inst.RequestID,
		&inst.CurrentNodeID,
		&inst.Status,
		&inst.Version,
		&inst.CreatedAt,
		&inst.UpdatedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, notFound(err, what)
	}
	if err != nil {
		r.logger.Error("Failed to get instance", zap.String("lookup", what), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	inst.CompletedAt = timePtr(completedAt)
	return &inst, nil
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
