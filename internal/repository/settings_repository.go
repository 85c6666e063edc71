package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingLastEmailCheck is the mailbox polling watermark key.
const SettingLastEmailCheck = "last_email_check"

// Setting is a row of system_settings.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingsRepository manages key/value system settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Put(ctx context.Context, key, value string) error
	GetTime(ctx context.Context, key string) (*time.Time, error)
	PutTime(ctx context.Context, key string, value time.Time) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository constructs repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*Setting, error) {
	const query = `SELECT key, value, updated_at FROM system_settings WHERE key=$1`
	var setting Setting
	if err := r.pool.QueryRow(ctx, query, key).Scan(&setting.Key, &setting.Value, &setting.UpdatedAt); err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *settingsRepository) Put(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO system_settings (key, value, updated_at)
        VALUES ($1,$2,NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}

// GetTime reads an RFC 3339 timestamp. A missing key returns nil, nil.
func (r *settingsRepository) GetTime(ctx context.Context, key string) (*time.Time, error) {
	setting, err := r.Get(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, setting.Value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (r *settingsRepository) PutTime(ctx context.Context, key string, value time.Time) error {
	return r.Put(ctx, key, value.UTC().Format(time.RFC3339Nano))
}
