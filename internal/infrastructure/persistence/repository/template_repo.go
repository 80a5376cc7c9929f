package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/graph"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const templateColumns = `id, name, description, category, nodes, edges, version,
	created_by, is_active, created_at, updated_at`

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlite.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a template; the graph is persisted as editor JSON
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	nodes, edges, err := tpl.Graph.Encode()
	if err != nil {
		return err
	}
	if tpl.Version == 0 {
		tpl.Version = 1
	}
	now := time.Now()

	query := `
		INSERT INTO approval_flow_templates (
			name, description, category, nodes, edges, version,
			created_by, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		tpl.Name,
		tpl.Description,
		tpl.Category,
		string(nodes),
		string(edges),
		tpl.Version,
		tpl.CreatedBy,
		tpl.IsActive,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create template", zap.String("name", tpl.Name), zap.Error(err))
		return fmt.Errorf("failed to create template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	tpl.ID = id
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a live template
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM approval_flow_templates WHERE id = ? AND deleted_at IS NULL`

	tpl, err := r.scan(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("template %d", id))
	}
	return tpl, nil
}

// GetByName returns the newest active template with the given name
func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*entity.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM approval_flow_templates
		WHERE name = ? AND is_active = 1 AND deleted_at IS NULL
		ORDER BY id DESC LIMIT 1`

	tpl, err := r.scan(r.db.Executor(ctx).QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("template %q", name))
	}
	return tpl, nil
}

// List returns a page of live templates, newest first, with the total count
func (r *TemplateRepository) List(ctx context.Context, limit, offset int) ([]*entity.Template, int, error) {
	exec := r.db.Executor(ctx)

	var total int
	if err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approval_flow_templates WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		r.logger.Error("Failed to count templates", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	limit, offset = paging(limit, offset)
	query := `SELECT ` + templateColumns + ` FROM approval_flow_templates
		WHERE deleted_at IS NULL ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := exec.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*entity.Template
	for rows.Next() {
		tpl, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate templates: %w", err)
	}
	return templates, total, nil
}

// Update overwrites every mutable column of a live template
func (r *TemplateRepository) Update(ctx context.Context, tpl *entity.Template) error {
	nodes, edges, err := tpl.Graph.Encode()
	if err != nil {
		return err
	}
	now := time.Now()

	query := `
		UPDATE approval_flow_templates
		SET name = ?, description = ?, category = ?, nodes = ?, edges = ?,
			version = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		tpl.Name, tpl.Description, tpl.Category, string(nodes), string(edges),
		tpl.Version, tpl.IsActive, now, tpl.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update template", zap.Int64("id", tpl.ID), zap.Error(err))
		return fmt.Errorf("failed to update template: %w", err)
	}
	if err := requireAffected(result, fmt.Sprintf("template %d", tpl.ID)); err != nil {
		return err
	}
	tpl.UpdatedAt = now
	return nil
}

// Deactivate clears is_active so no new requests use the template
func (r *TemplateRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE approval_flow_templates SET is_active = 0, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to deactivate template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to deactivate template: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("template %d", id))
}

// SoftDelete tombstones a template
func (r *TemplateRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE approval_flow_templates SET is_active = 0, deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to delete template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("template %d", id))
}

// CountActiveInstances counts open instances still bound to the template
func (r *TemplateRepository) CountActiveInstances(ctx context.Context, templateID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM approval_flow_instances
		WHERE template_id = ? AND deleted_at IS NULL AND status NOT IN (?, ?)
	`
	var n int
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, templateID,
		entity.InstanceStatusCompleted, entity.InstanceStatusRejected).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}
	return n, nil
}

// CountBoundInstances counts instances bound to the template, finished ones included
func (r *TemplateRepository) CountBoundInstances(ctx context.Context, templateID int64) (int, error) {
	query := `SELECT COUNT(*) FROM approval_flow_instances WHERE template_id = ? AND deleted_at IS NULL`
	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, templateID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count instances: %w", err)
	}
	return n, nil
}

func (r *TemplateRepository) scan(row rowScanner) (*entity.Template, error) {
	var tpl entity.Template
	var nodes, edges string

	if err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Description,
		&tpl.Category,
		&nodes,
		&edges,
		&tpl.Version,
		&tpl.CreatedBy,
		&tpl.IsActive,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	); err != nil {
		return nil, err
	}

	g, err := graph.Decode([]byte(nodes), []byte(edges))
	if err != nil {
		r.logger.Error("Stored template graph is invalid", zap.Int64("id", tpl.ID), zap.Error(err))
		return nil, fmt.Errorf("template %d: %w", tpl.ID, err)
	}
	tpl.Graph = g
	return &tpl, nil
}

var _ port.TemplateRepository = (*TemplateRepository)(nil)
