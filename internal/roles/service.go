package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/db/models"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/enums"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
)

type rolesRepository interface {
	Upsert(ctx context.Context, username string, role enums.RoleType) (*models.UserRole, error)
	FindByUsername(ctx context.Context, username string) (*models.UserRole, error)
	List(ctx context.Context) ([]models.UserRole, error)
	Delete(ctx context.Context, username string) (bool, error)
}

// Service exposes the role registry: who holds which permission level.
type Service interface {
	AssignRole(ctx context.Context, username, role string) (*RoleAssignment, error)
	GetRole(ctx context.Context, username string) (*RoleAssignment, error)
	ListRoles(ctx context.Context) ([]RoleAssignment, error)
	RemoveRole(ctx context.Context, username string) error
}

type service struct {
	repo rolesRepository
}

// NewService builds the role registry service with the provided repository.
func NewService(repo rolesRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("roles repository required")
	}
	return &service{repo: repo}, nil
}

// AssignRole grants a role to a username, replacing any previous role.
// Assigning the role a user already holds succeeds without change.
func (s *service) AssignRole(ctx context.Context, username, role string) (*RoleAssignment, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}
	parsed, err := enums.ParseRoleType(strings.TrimSpace(role))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse role")
	}

	assignment, err := s.repo.Upsert(ctx, username, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign role")
	}
	return FromModel(assignment), nil
}

// GetRole returns the assignment for one username.
func (s *service) GetRole(ctx context.Context, username string) (*RoleAssignment, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}

	assignment, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role")
	}
	return FromModel(assignment), nil
}

// ListRoles returns every assignment ordered by username.
func (s *service) ListRoles(ctx context.Context) ([]RoleAssignment, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list roles")
	}

	assignments := make([]RoleAssignment, len(rows))
	for i := range rows {
		assignments[i] = *FromModel(&rows[i])
	}
	return assignments, nil
}

// RemoveRole deletes the assignment for one username. Removal is deliberate:
// a missing assignment reports not found rather than succeeding silently.
func (s *service) RemoveRole(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}

	removed, err := s.repo.Delete(ctx, username)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove role")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
	}
	return nil
}
