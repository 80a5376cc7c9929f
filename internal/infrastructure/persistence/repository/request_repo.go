package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const requestColumns = `r.id, r.title, r.description, r.requester_id, r.template_id,
	COALESCE(r.flow_instance_id, 0), r.status, r.priority, r.category,
	r.current_step, r.total_steps, r.due_date, r.attachments, r.created_at, r.updated_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqlite.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a request
func (r *RequestRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	attachments, err := encodeStrings(req.Attachments)
	if err != nil {
		return err
	}
	now := time.Now()

	query := `
		INSERT INTO approval_requests (
			title, description, requester_id, template_id, status, priority,
			category, current_step, total_steps, due_date, attachments,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		req.Title,
		req.Description,
		req.RequesterID,
		req.TemplateID,
		req.Status,
		req.Priority,
		req.Category,
		req.CurrentStep,
		req.TotalSteps,
		nullTime(req.DueDate),
		attachments,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("requester_id", req.RequesterID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	req.CreatedAt, req.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a live request
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests r WHERE r.id = ? AND r.deleted_at IS NULL`

	req, err := scanRequest(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound(err, fmt.Sprintf("request %d", id))
		}
		r.logger.Error("Failed to get request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// List returns live requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.ApprovalRequest, error) {
	where := []string{"r.deleted_at IS NULL"}
	var args []interface{}

	if filter.RequesterID != "" {
		where = append(where, "r.requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		where = append(where, "r.category = ?")
		args = append(args, filter.Category)
	}

	limit, offset := paging(filter.Limit, filter.Offset)
	args = append(args, limit, offset)

	query := `SELECT ` + requestColumns + ` FROM approval_requests r
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`

	return r.query(ctx, "list requests", query, args...)
}

// ListPendingForApprover returns requests whose open step lists the approver,
// or lists nobody
func (r *RequestRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests r
		JOIN approval_flow_steps s
			ON s.instance_id = r.flow_instance_id AND s.deleted_at IS NULL AND s.decision = ?
		WHERE r.deleted_at IS NULL
			AND (s.assignees = '[]' OR EXISTS (
				SELECT 1 FROM json_each(s.assignees) WHERE json_each.value = ?
			))
		ORDER BY r.created_at DESC, r.id DESC`

	return r.query(ctx, "list pending requests", query, entity.DecisionPending, approverID)
}

// ListOverdue returns open requests whose due date has passed
func (r *RequestRepository) ListOverdue(ctx context.Context, now time.Time) ([]*entity.ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests r
		WHERE r.deleted_at IS NULL AND r.due_date IS NOT NULL AND r.due_date < ?
			AND r.status IN (?, ?)
		ORDER BY r.due_date ASC, r.id ASC`

	return r.query(ctx, "list overdue requests", query, now.UTC(),
		entity.RequestStatusPending, entity.RequestStatusInProgress)
}

// SetFlowInstance links the request to its instance
func (r *RequestRepository) SetFlowInstance(ctx context.Context, requestID, instanceID int64) error {
	query := `UPDATE approval_requests SET flow_instance_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, instanceID, time.Now(), requestID)
	if err != nil {
		r.logger.Error("Failed to link flow instance", zap.Int64("id", requestID), zap.Error(err))
		return fmt.Errorf("failed to link flow instance: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("request %d", requestID))
}

// UpdateProjection mirrors instance progress onto the request
func (r *RequestRepository) UpdateProjection(ctx context.Context, requestID int64, status string, currentStep int) error {
	query := `UPDATE approval_requests SET status = ?, current_step = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, currentStep, time.Now(), requestID)
	if err != nil {
		r.logger.Error("Failed to update request projection",
			zap.Int64("id", requestID), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("request %d", requestID))
}

// TombstoneCascade soft-deletes the request, its instance, steps and actions in one transaction
func (r *RequestRepository) TombstoneCascade(ctx context.Context, requestID int64) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)
		now := time.Now()

		result, err := exec.ExecContext(txCtx,
			`UPDATE approval_requests SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, requestID)
		if err != nil {
			return fmt.Errorf("failed to delete request: %w", err)
		}
		if err := requireAffected(result, fmt.Sprintf("request %d", requestID)); err != nil {
			return err
		}

		statements := []string{
			`UPDATE approval_actions SET deleted_at = ? WHERE request_id = ? AND deleted_at IS NULL`,
			`UPDATE approval_flow_steps SET deleted_at = ?
				WHERE deleted_at IS NULL AND instance_id IN (
					SELECT id FROM approval_flow_instances WHERE request_id = ?
				)`,
			`UPDATE approval_flow_instances SET deleted_at = ? WHERE request_id = ? AND deleted_at IS NULL`,
		}
		for _, stmt := range statements {
			if _, err := exec.ExecContext(txCtx, stmt, now, requestID); err != nil {
				r.logger.Error("Failed to tombstone request children", zap.Int64("id", requestID), zap.Error(err))
				return fmt.Errorf("failed to delete request children: %w", err)
			}
		}
		return nil
	})
}

// Stats counts live requests by status
func (r *RequestRepository) Stats(ctx context.Context) (*entity.RequestStats, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM approval_requests WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to compute request stats", zap.Error(err))
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer rows.Close()

	stats := &entity.RequestStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats.Add(status, n)
	}
	return stats, rows.Err()
}

// CategoryStats counts live requests per category, largest first
func (r *RequestRepository) CategoryStats(ctx context.Context) ([]*entity.CategoryStats, error) {
	query := `
		SELECT category, status, COUNT(*) FROM approval_requests
		WHERE deleted_at IS NULL
		GROUP BY category, status
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to compute category stats", zap.Error(err))
		return nil, fmt.Errorf("failed to compute category stats: %w", err)
	}
	defer rows.Close()

	var out []*entity.CategoryStats
	index := make(map[string]*entity.CategoryStats)
	for rows.Next() {
		var category, status string
		var n int
		if err := rows.Scan(&category, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		cs, ok := index[category]
		if !ok {
			cs = &entity.CategoryStats{Category: category}
			index[category] = cs
			out = append(out, cs)
		}
		cs.Add(status, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCategoryStats(out)
	return out, nil
}

func (r *RequestRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.ApprovalRequest, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var requests []*entity.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return requests, nil
}

func scanRequest(row rowScanner) (*entity.ApprovalRequest, error) {
	var req entity.ApprovalRequest
	var dueDate sql.NullTime
	var attachments string

	if err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&req.RequesterID,
		&req.TemplateID,
		&req.FlowInstanceID,
		&req.Status,
		&req.Priority,
		&req.Category,
		&req.CurrentStep,
		&req.TotalSteps,
		&dueDate,
		&attachments,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}

	list, err := decodeStrings(attachments)
	if err != nil {
		return nil, err
	}
	req.Attachments = list
	req.DueDate = timePtr(dueDate)
	return &req, nil
}

var _ port.RequestRepository = (*RequestRepository)(nil)
