package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/graph"
)

// ErrTemplateInUse is returned when deleting a template that open requests still follow
var ErrTemplateInUse = errors.New("template has active flow instances")

// TemplateInput describes a template to create or replace
type TemplateInput struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Category    string       `json:"category" yaml:"category"`
	CreatedBy   string       `json:"created_by" yaml:"created_by"`
	Nodes       []graph.Node `json:"nodes" yaml:"nodes"`
	Edges       []graph.Edge `json:"edges" yaml:"edges"`
}

// TemplateService manages approval flow templates
type TemplateService interface {
	CreateTemplate(ctx context.Context, in TemplateInput) (*entity.Template, error)
	GetTemplate(ctx context.Context, id int64) (*entity.Template, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]*entity.Template, int, error)
	UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (*entity.Template, error)
	DeleteTemplate(ctx context.Context, id int64) error
	// ImportTemplates creates every template whose name is not taken yet and
	// returns how many were created
	ImportTemplates(ctx context.Context, inputs []TemplateInput) (int, error)
}

type templateServiceImpl struct {
	templates port.TemplateRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templates port.TemplateRepository, txManager port.TransactionManager, logger Logger) TemplateService {
	return &templateServiceImpl{
		templates: templates,
		txManager: txManager,
		logger:    logger,
	}
}

// build validates the input and its graph
func build(in TemplateInput) (*entity.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: template name is required", workflow.ErrInvalidInput)
	}
	g, err := graph.New(in.Nodes, in.Edges)
	if err != nil {
		return nil, err
	}
	return &entity.Template{
		Name:        name,
		Description: in.Description,
		Category:    in.Category,
		CreatedBy:   in.CreatedBy,
		Graph:       g,
		Version:     1,
		IsActive:    true,
	}, nil
}

// CreateTemplate validates the graph and stores the template
func (s *templateServiceImpl) CreateTemplate(ctx context.Context, in TemplateInput) (*entity.Template, error) {
	tpl, err := build(in)
	if err != nil {
		s.logger.Error("Template rejected", "error", err, "name", in.Name)
		return nil, err
	}

	if err := s.templates.Create(ctx, tpl); err != nil {
		s.logger.Error("Failed to create template", "error", err, "name", tpl.Name)
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.Info("Template created", "id", tpl.ID, "name", tpl.Name, "approvers", tpl.Graph.TotalSteps())
	return tpl, nil
}

// GetTemplate retrieves a template by ID
func (s *templateServiceImpl) GetTemplate(ctx context.Context, id int64) (*entity.Template, error) {
	return s.templates.GetByID(ctx, id)
}

// ListTemplates returns a page of templates and the total count
func (s *templateServiceImpl) ListTemplates(ctx context.Context, limit, offset int) ([]*entity.Template, int, error) {
	templates, total, err := s.templates.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list templates", "error", err)
		return nil, 0, err
	}
	if templates == nil {
		templates = []*entity.Template{}
	}
	return templates, total, nil
}

// UpdateTemplate replaces a template's definition.
// When any request, open or finished, is bound to the template, the change is
// stored as a new template row with the next version and the old row is
// deactivated, so every bound instance keeps resolving its current node.
func (s *templateServiceImpl) UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (*entity.Template, error) {
	next, err := build(in)
	if err != nil {
		s.logger.Error("Template rejected", "error", err, "id", id)
		return nil, err
	}

	var result *entity.Template
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.templates.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		bound, err := s.templates.CountBoundInstances(txCtx, id)
		if err != nil {
			return fmt.Errorf("count instances: %w", err)
		}

		if next.CreatedBy == "" {
			next.CreatedBy = current.CreatedBy
		}

		if bound == 0 {
			next.ID = current.ID
			next.Version = current.Version
			next.IsActive = current.IsActive
			if err := s.templates.Update(txCtx, next); err != nil {
				return fmt.Errorf("update template: %w", err)
			}
			result = next
			return nil
		}

		if err := s.templates.Deactivate(txCtx, current.ID); err != nil {
			return fmt.Errorf("deactivate template: %w", err)
		}
		next.Version = current.Version + 1
		if err := s.templates.Create(txCtx, next); err != nil {
			return fmt.Errorf("create template version: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update template", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("Template updated", "id", id, "stored_as", result.ID, "version", result.Version)
	return result, nil
}

// DeleteTemplate tombstones a template no open request follows
func (s *templateServiceImpl) DeleteTemplate(ctx context.Context, id int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		active, err := s.templates.CountActiveInstances(txCtx, id)
		if err != nil {
			return fmt.Errorf("count instances: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("%w: %d open", ErrTemplateInUse, active)
		}
		return s.templates.SoftDelete(txCtx, id)
	})
	if err != nil {
		s.logger.Error("Failed to delete template", "error", err, "id", id)
		return err
	}

	s.logger.Info("Template deleted", "id", id)
	return nil
}

// ImportTemplates creates the templates whose names are not yet taken
func (s *templateServiceImpl) ImportTemplates(ctx context.Context, inputs []TemplateInput) (int, error) {
	created := 0
	for _, in := range inputs {
		_, err := s.templates.GetByName(ctx, strings.TrimSpace(in.Name))
		if err == nil {
			s.logger.Info("Template already present, skipping", "name", in.Name)
			continue
		}
		if !errors.Is(err, port.ErrNotFound) {
			return created, fmt.Errorf("lookup template %q: %w", in.Name, err)
		}

		if _, err := s.CreateTemplate(ctx, in); err != nil {
			return created, fmt.Errorf("import template %q: %w", in.Name, err)
		}
		created++
	}
	return created, nil
}
