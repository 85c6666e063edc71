package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

const profileCachePrefix = "profile:"

// cachedProfileRepository is a read-through redis cache in front of the
// profile table. Redis failures fall through to Postgres.
type cachedProfileRepository struct {
	next   ProfileRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProfileRepository wraps next with a redis cache. A nil client
// returns next unchanged.
func NewCachedProfileRepository(next ProfileRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) ProfileRepository {
	if client == nil || ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedProfileRepository{next: next, client: client, ttl: ttl, logger: logger}
}

type cachedProfile struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	Role         domain.Role `json:"role"`
	DepartmentID *string     `json:"department_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (r *cachedProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	key := profileCachePrefix + id
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedProfile
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &domain.Profile{
				ID:           cached.ID,
				Email:        cached.Email,
				FullName:     cached.FullName,
				Role:         cached.Role,
				DepartmentID: cached.DepartmentID,
				CreatedAt:    cached.CreatedAt,
				UpdatedAt:    cached.UpdatedAt,
			}, nil
		}
	} else if err != redis.Nil {
		r.logger.Debug("profile cache read failed", zap.Error(err))
	}

	profile, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, _ := json.Marshal(cachedProfile{
		ID:           profile.ID,
		Email:        profile.Email,
		FullName:     profile.FullName,
		Role:         profile.Role,
		DepartmentID: profile.DepartmentID,
		CreatedAt:    profile.CreatedAt,
		UpdatedAt:    profile.UpdatedAt,
	})
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.Debug("profile cache write failed", zap.Error(err))
	}
	return profile, nil
}

func (r *cachedProfileRepository) List(ctx context.Context, filter ProfileFilter) ([]domain.Profile, error) {
	return r.next.List(ctx, filter)
}

func (r *cachedProfileRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	if err := r.next.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedProfileRepository) Delete(ctx context.Context, id string) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedProfileRepository) invalidate(ctx context.Context, id string) {
	if err := r.client.Del(ctx, profileCachePrefix+id).Err(); err != nil {
		r.logger.Warn("profile cache invalidation failed", zap.String("profile_id", id), zap.Error(err))
	}
}
