package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/pkg/utils"
)

// UserService exposes the user directory
type UserService interface {
	CreateUser(ctx context.Context, user *entity.User) error
	GetUser(ctx context.Context, id string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
	// ListApprovers returns users whose role qualifies them to approve
	ListApprovers(ctx context.Context) ([]*entity.User, error)
}

type userServiceImpl struct {
	users  port.UserRepository
	logger Logger
}

// NewUserService creates a new UserService
func NewUserService(users port.UserRepository, logger Logger) UserService {
	return &userServiceImpl{users: users, logger: logger}
}

func (s *userServiceImpl) CreateUser(ctx context.Context, user *entity.User) error {
	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	if user.ID == "" || user.Name == "" {
		return fmt.Errorf("%w: user id and name are required", workflow.ErrInvalidInput)
	}
	user.Email = strings.TrimSpace(user.Email)
	if user.Email != "" {
		if err := utils.ValidateEmail(user.Email); err != nil {
			return fmt.Errorf("%w: %v", workflow.ErrInvalidInput, err)
		}
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", "error", err, "id", user.ID)
		return err
	}
	s.logger.Info("User created", "id", user.ID, "role", user.Role)
	return nil
}

func (s *userServiceImpl) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userServiceImpl) ListUsers(ctx context.Context) ([]*entity.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return nil, err
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

func (s *userServiceImpl) ListApprovers(ctx context.Context) ([]*entity.User, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	approvers := make([]*entity.User, 0, len(users))
	for _, u := range users {
		if u.IsApprover() {
			approvers = append(approvers, u)
		}
	}
	return approvers, nil
}
