package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// EmailQueueRepository persists outbound notifications.
type EmailQueueRepository interface {
	Enqueue(ctx context.Context, email *domain.OutboundEmail) error
	GetByID(ctx context.Context, id string) (*domain.OutboundEmail, error)
	ListDeliverable(ctx context.Context, limit int) ([]domain.OutboundEmail, error)
	MarkSent(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, reason string) (*domain.OutboundEmail, error)
	ResetForRetry(ctx context.Context, id string) error
}

type emailQueueRepository struct {
	pool *pgxpool.Pool
}

// NewEmailQueueRepository builds repository.
func NewEmailQueueRepository(pool *pgxpool.Pool) EmailQueueRepository {
	return &emailQueueRepository{pool: pool}
}

const emailColumns = `q.id, q.ticket_id, t.ticket_number, q.to_email, COALESCE(q.cc_emails, '{}'), q.subject, q.body,
               q.template_type, q.status, q.attempts, q.last_error, q.sent_at, q.created_at, q.updated_at`

func (r *emailQueueRepository) Enqueue(ctx context.Context, email *domain.OutboundEmail) error {
	const query = `
        INSERT INTO email_queue (ticket_id, to_email, cc_emails, subject, body, template_type, status, attempts)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0)
        RETURNING id, status, attempts, created_at, updated_at`
	cc := email.CcEmails
	if cc == nil {
		cc = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		email.TicketID,
		email.ToEmail,
		cc,
		email.Subject,
		email.Body,
		email.Template,
	).Scan(&email.ID, &email.Status, &email.Attempts, &email.CreatedAt, &email.UpdatedAt)
}

func (r *emailQueueRepository) GetByID(ctx context.Context, id string) (*domain.OutboundEmail, error) {
	query := `SELECT ` + emailColumns + `
        FROM email_queue q LEFT JOIN tickets t ON t.id = q.ticket_id
        WHERE q.id=$1`
	return scanEmail(r.pool.QueryRow(ctx, query, id))
}

// ListDeliverable returns pending entries under the attempt bound, oldest first.
func (r *emailQueueRepository) ListDeliverable(ctx context.Context, limit int) ([]domain.OutboundEmail, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + emailColumns + `
        FROM email_queue q LEFT JOIN tickets t ON t.id = q.ticket_id
        WHERE q.status='pending' AND q.attempts < $1
        ORDER BY q.created_at ASC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, domain.MaxDeliveryAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OutboundEmail
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *email)
	}
	return result, rows.Err()
}

func (r *emailQueueRepository) MarkSent(ctx context.Context, id string) error {
	const query = `
        UPDATE email_queue SET status='sent', sent_at=NOW(), last_error=NULL, updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RecordFailure increments attempts in SQL so overlapping workers cannot lose
// an attempt, and flips the entry to failed once the bound is reached.
func (r *emailQueueRepository) RecordFailure(ctx context.Context, id string, reason string) (*domain.OutboundEmail, error) {
	query, args := buildRecordFailureQuery(id, reason)
	email := domain.OutboundEmail{ID: id, LastError: &reason}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&email.Attempts, &email.Status); err != nil {
		return nil, err
	}
	return &email, nil
}

// buildRecordFailureQuery mirrors domain.NextDeliveryState: the entry fails
// once attempts+1 reaches domain.MaxDeliveryAttempts.
func buildRecordFailureQuery(id, reason string) (string, []any) {
	const query = `
        UPDATE email_queue
        SET attempts = attempts + 1,
            status = CASE WHEN attempts + 1 >= $1 THEN 'failed' ELSE 'pending' END,
            last_error = $2,
            updated_at = NOW()
        WHERE id=$3
        RETURNING attempts, status`
	return query, []any{domain.MaxDeliveryAttempts, reason, id}
}

// ResetForRetry puts a failed entry back in the queue with a fresh budget.
func (r *emailQueueRepository) ResetForRetry(ctx context.Context, id string) error {
	const query = `
        UPDATE email_queue SET status='pending', attempts=0, last_error=NULL, updated_at=NOW()
        WHERE id=$1 AND status='failed'`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanEmail(row pgx.Row) (*domain.OutboundEmail, error) {
	var email domain.OutboundEmail
	if err := row.Scan(
		&email.ID,
		&email.TicketID,
		&email.TicketNumber,
		&email.ToEmail,
		&email.CcEmails,
		&email.Subject,
		&email.Body,
		&email.Template,
		&email.Status,
		&email.Attempts,
		&email.LastError,
		&email.SentAt,
		&email.CreatedAt,
		&email.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &email, nil
}
