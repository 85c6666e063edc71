package dto

import (
	"time"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// ProfileResponse is an operator profile.
type ProfileResponse struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	Role         domain.Role `json:"role"`
	DepartmentID *string     `json:"department_id"`
	CreatedAt    time.Time   `json:"created_at"`
}

// UpdateRoleRequest changes a profile's role.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// DepartmentResponse is a department.
type DepartmentResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

// OutboundEmailResponse is a queued email.
type OutboundEmailResponse struct {
	ID        string               `json:"id"`
	TicketID  *string              `json:"ticket_id"`
	ToEmail   string               `json:"to_email"`
	Subject   string               `json:"subject"`
	Template  domain.EmailTemplate `json:"template_name"`
	Status    domain.EmailStatus   `json:"status"`
	Attempts  int                  `json:"attempts"`
	LastError *string              `json:"error_message"`
	SentAt    *time.Time           `json:"sent_at"`
	CreatedAt time.Time            `json:"created_at"`
}

// InboundResponse reports what the webhook did with a message.
type InboundResponse struct {
	Action        domain.InboundAction `json:"action"`
	TicketID      string               `json:"ticket_id"`
	TicketNumber  int64                `json:"ticket_number"`
	CommentID     string               `json:"comment_id,omitempty"`
	StatusChanged bool                 `json:"status_changed"`
}
