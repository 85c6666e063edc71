package service

import (
	"time"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// StatusCommand is a two-phase status move: Apply tentatively changes the
// in-memory ticket, Revert restores it when the write is not confirmed.
type StatusCommand struct {
	TicketID string
	From     domain.TicketStatus
	To       domain.TicketStatus

	prevCompletedAt *time.Time
	applied         bool
}

// NewStatusCommand captures ticket's current state for a move to `to`.
func NewStatusCommand(ticket *domain.Ticket, to domain.TicketStatus) *StatusCommand {
	return &StatusCommand{
		TicketID:        ticket.ID,
		From:            ticket.Status,
		To:              to,
		prevCompletedAt: ticket.CompletedAt,
	}
}

// Apply moves ticket to the target status. It reports whether anything that
// must be persisted changed.
func (c *StatusCommand) Apply(ticket *domain.Ticket, now time.Time) bool {
	changed := domain.ApplyStatus(ticket, c.To, now)
	c.applied = true
	return changed || ticket.CompletedAt != c.prevCompletedAt
}

// Revert restores the status and completion stamp captured at construction.
func (c *StatusCommand) Revert(ticket *domain.Ticket) {
	if !c.applied {
		return
	}
	ticket.Status = c.From
	ticket.CompletedAt = c.prevCompletedAt
	c.applied = false
}

// Reopens reports whether the move takes the ticket out of completed.
func (c *StatusCommand) Reopens() bool {
	return domain.IsReopen(c.From, c.To)
}
