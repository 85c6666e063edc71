package dto

import (
	"time"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// CreateTicketRequest is the internal ticket form.
type CreateTicketRequest struct {
	DepartmentID   string                `json:"department_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	AssignedTo     *string               `json:"assigned_to"`
	RequesterName  string                `json:"requester_name"`
	RequesterEmail string                `json:"requester_email"`
	RequesterPhone string                `json:"requester_phone"`
}

// PublicTicketRequest is the public form. The requester email comes from
// the sign-in token, never from the body.
type PublicTicketRequest struct {
	DepartmentID   string                `json:"department_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	RequesterName  string                `json:"requester_name"`
	RequesterPhone string                `json:"requester_phone"`
}

// UpdateTicketRequest is the full edit from the detail view.
type UpdateTicketRequest struct {
	Title         *string                `json:"title"`
	Description   *string                `json:"description"`
	Priority      *domain.TicketPriority `json:"priority"`
	Status        *domain.TicketStatus   `json:"status"`
	AssignedTo    *string                `json:"assigned_to"`
	ClearAssignee bool                   `json:"clear_assignee"`
}

// MoveTicketRequest is a kanban drag.
type MoveTicketRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest sets or clears (null) the assignee.
type AssignTicketRequest struct {
	AssignedTo *string `json:"assigned_to"`
}

// RequestInfoRequest asks the requester for more information.
type RequestInfoRequest struct {
	Request string `json:"request"`
}

// TicketResponse is the ticket as the board and detail view render it.
type TicketResponse struct {
	ID             string                `json:"id"`
	Number         int64                 `json:"ticket_number"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Priority       domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus   `json:"status"`
	DepartmentID   string                `json:"department_id"`
	AssignedTo     *string               `json:"assigned_to"`
	RequesterName  string                `json:"requester_name"`
	RequesterEmail string                `json:"requester_email"`
	RequesterPhone string                `json:"requester_phone,omitempty"`
	CreatedVia     domain.TicketSource   `json:"created_via"`
	CreatedBy      *string               `json:"created_by"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CompletedAt    *time.Time            `json:"completed_at"`
}

// PublicTicketResponse is what a requester sees of their own ticket.
type PublicTicketResponse struct {
	Number      int64                 `json:"ticket_number"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at"`
	Comments    []CommentResponse     `json:"comments"`
}

// CreateCommentRequest adds a note to a ticket.
type CreateCommentRequest struct {
	Body       string `json:"body"`
	IsInternal bool   `json:"is_internal"`
}

// CommentResponse is one comment.
type CommentResponse struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticket_id"`
	UserID        *string   `json:"user_id"`
	Body          string    `json:"body"`
	IsInternal    bool      `json:"is_internal"`
	IsInfoRequest bool      `json:"is_info_request"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID        string               `json:"id"`
	UserID    *string              `json:"user_id"`
	Action    domain.HistoryAction `json:"action"`
	FieldName *string              `json:"field_name"`
	OldValue  *string              `json:"old_value"`
	NewValue  *string              `json:"new_value"`
	CreatedAt time.Time            `json:"created_at"`
}
