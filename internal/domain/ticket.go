package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates the kanban columns a ticket moves through.
type TicketStatus string

const (
	TicketStatusTodo       TicketStatus = "todo"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusReview     TicketStatus = "review"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusOnHold     TicketStatus = "on_hold"
)

// TicketStatuses lists the board columns in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusTodo,
	TicketStatusInProgress,
	TicketStatusReview,
	TicketStatusOnHold,
	TicketStatusCompleted,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketSource records which channel created a ticket.
type TicketSource string

const (
	TicketSourceInternal   TicketSource = "internal"
	TicketSourcePublicForm TicketSource = "public_form"
	TicketSourceEmail      TicketSource = "email"
)

// Ticket is the aggregate for maintenance and support requests.
type Ticket struct {
	ID             string
	Number         int64
	Title          string
	Description    string
	Priority       TicketPriority
	Status         TicketStatus
	DepartmentID   string
	AssignedTo     *string
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	CreatedVia     TicketSource
	EmailThreadID  *string
	CreatedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// DisplayNumber renders the human-facing ticket number, e.g. "#1042".
func (t *Ticket) DisplayNumber() string {
	return fmt.Sprintf("#%d", t.Number)
}

// IsAssignedTo reports whether profileID is the ticket's assignee.
func (t *Ticket) IsAssignedTo(profileID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == profileID
}
