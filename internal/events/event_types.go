package events

import (
	"time"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventCommentAdded          EventType = "comment_added"
	EventInfoRequested         EventType = "info_requested"
	EventInboundReply          EventType = "inbound_reply"
)

// Actor identifies who caused an event. A nil ProfileID means the system or
// an external requester (public form, inbound email).
type Actor struct {
	ProfileID *string `json:"profile_id,omitempty"`
	Email     string  `json:"email,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber int64               `json:"ticket_number"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	Reopened     bool                `json:"reopened"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	TicketNumber int64                 `json:"ticket_number"`
	OldPriority  domain.TicketPriority `json:"old_priority"`
	NewPriority  domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketNumber int64   `json:"ticket_number"`
	OldAssignee  *string `json:"old_assignee,omitempty"`
	NewAssignee  *string `json:"new_assignee,omitempty"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	Ticket  domain.Ticket  `json:"ticket"`
	Comment domain.Comment `json:"comment"`
}

// InfoRequestedPayload payload.
type InfoRequestedPayload struct {
	Ticket  domain.Ticket `json:"ticket"`
	Request string        `json:"request"`
}

// InboundReplyPayload payload.
type InboundReplyPayload struct {
	Ticket domain.Ticket `json:"ticket"`
	From   string        `json:"from"`
	Body   string        `json:"body"`
}
