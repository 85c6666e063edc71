package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// SessionService resolves the profile behind a verified identity token.
type SessionService struct {
	profiles repository.ProfileRepository
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSessionService builds the service. Lookups longer than timeout fail
// with a retryable unavailable error.
func NewSessionService(profiles repository.ProfileRepository, timeout time.Duration, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &SessionService{profiles: profiles, timeout: timeout, logger: logger}
}

// ResolveProfile implements auth.SessionResolver.
func (s *SessionService) ResolveProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorized("missing subject")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, apperrors.NewUnauthorized("no profile for this account")
	case errors.Is(err, context.DeadlineExceeded) || apperrors.IsConnectionError(err):
		s.logger.Warn("session lookup unavailable", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.NewUnavailable("session check timed out, retry", err)
	default:
		return nil, apperrors.MapError(err)
	}
}
