package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// TicketFilter captures board search parameters. Scope is the caller's
// visibility clause and is always ANDed in.
type TicketFilter struct {
	Scope        Scope
	Search       *string
	DepartmentID *string
	AssignedTo   *string
	Unassigned   bool
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, completedAt *time.Time) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, title, description, priority, status, department_id, assigned_to,
               requester_name, requester_email, requester_phone, created_via, email_thread_id, created_by,
               created_at, updated_at, completed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, priority, status, department_id, assigned_to,
            requester_name, requester_email, requester_phone, created_via, email_thread_id, created_by, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, ticket_number, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.DepartmentID,
		ticket.AssignedTo,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.RequesterPhone,
		ticket.CreatedVia,
		ticket.EmailThreadID,
		ticket.CreatedBy,
		ticket.CompletedAt,
	).Scan(&ticket.ID, &ticket.Number, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes every mutable field in one statement. department_id is
// fixed at creation and never updated.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, priority=$3, status=$4, assigned_to=$5,
            requester_name=$6, requester_email=$7, requester_phone=$8, completed_at=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.RequesterPhone,
		ticket.CompletedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, completedAt *time.Time) error {
	const query = `UPDATE tickets SET status=$1, completed_at=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, status, completedAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, number))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args := buildTicketListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func buildTicketListQuery(filter TicketFilter) (string, []any) {
	args := []any{}
	visibility, args := scopeClause(filter.Scope, scopeColumns{departmentColumn: "department_id", selfColumn: "assigned_to"}, args)
	clauses := []string{visibility}

	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	} else if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		values := make([]any, len(filter.Statuses))
		for i, status := range filter.Statuses {
			values[i] = string(status)
		}
		var marks string
		marks, args = placeholders(args, values...)
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", marks))
	}
	if len(filter.Priorities) > 0 {
		values := make([]any, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			values[i] = string(priority)
		}
		var marks string
		marks, args = placeholders(args, values...)
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", marks))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		term := strings.TrimSpace(*filter.Search)
		args = append(args, "%"+strings.ToLower(term)+"%")
		p := fmt.Sprintf("$%d", len(args))
		search := fmt.Sprintf("LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(requester_email) LIKE %s", p, p, p)
		if number, err := strconv.ParseInt(strings.TrimPrefix(term, "#"), 10, 64); err == nil {
			args = append(args, number)
			search += fmt.Sprintf(" OR ticket_number=$%d", len(args))
		}
		clauses = append(clauses, "("+search+")")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.DepartmentID,
		&ticket.AssignedTo,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.RequesterPhone,
		&ticket.CreatedVia,
		&ticket.EmailThreadID,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
