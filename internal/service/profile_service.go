package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// ProfileService manages the operator and department directories.
type ProfileService struct {
	profiles    repository.ProfileRepository
	departments repository.DepartmentRepository
	logger      *zap.Logger
}

// ProfileListFilter holds UI filters for the user list.
type ProfileListFilter struct {
	Role         *domain.Role
	DepartmentID *string
	Limit        int
	Offset       int
}

// NewProfileService builds the service.
func NewProfileService(profiles repository.ProfileRepository, departments repository.DepartmentRepository, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{profiles: profiles, departments: departments, logger: logger}
}

// ListProfiles returns the profiles visible to the caller. It doubles as
// the assignee picker.
func (s *ProfileService) ListProfiles(ctx context.Context, caller auth.Caller, filter ProfileListFilter) ([]domain.Profile, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *filter.Role})
	}
	profiles, err := s.profiles.List(ctx, repository.ProfileFilter{
		Scope:        auth.ProfileScope(caller),
		Role:         filter.Role,
		DepartmentID: filter.DepartmentID,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profiles, nil
}

// ListDepartments returns the departments visible to the caller.
func (s *ProfileService) ListDepartments(ctx context.Context, caller auth.Caller) ([]domain.Department, error) {
	departments, err := s.departments.List(ctx, auth.DepartmentScope(caller))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return departments, nil
}

// UpdateRole changes a profile's role.
func (s *ProfileService) UpdateRole(ctx context.Context, caller auth.Caller, id string, role domain.Role) (*domain.Profile, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	target, err := s.loadManaged(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAssignRole(caller, role) {
		return nil, apperrors.NewForbidden("not allowed to grant this role")
	}
	if target.Role == role {
		return target, nil
	}
	if err := s.profiles.UpdateRole(ctx, target.ID, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("role changed",
		zap.String("profile_id", target.ID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(role)),
		zap.String("by", caller.ID))
	target.Role = role
	return target, nil
}

// DeleteProfile removes a profile.
func (s *ProfileService) DeleteProfile(ctx context.Context, caller auth.Caller, id string) error {
	if id == caller.ID {
		return apperrors.NewConflict("cannot delete your own profile", nil)
	}
	target, err := s.loadManaged(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, target.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("profile deleted", zap.String("profile_id", target.ID), zap.String("by", caller.ID))
	return nil
}

func (s *ProfileService) loadManaged(ctx context.Context, caller auth.Caller, id string) (*domain.Profile, error) {
	target, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("profile", map[string]any{"profile_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if !auth.CanManageUser(caller, target) {
		return nil, apperrors.NewForbidden("not allowed to manage this user")
	}
	return target, nil
}
