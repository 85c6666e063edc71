package domain

import "time"

// ApplyStatus moves t to next and keeps CompletedAt consistent with it:
// entering completed stamps now, leaving completed clears the stamp.
// Re-applying the current status leaves CompletedAt untouched.
// It reports whether the status changed.
func ApplyStatus(t *Ticket, next TicketStatus, now time.Time) bool {
	if t.Status == next {
		if next == TicketStatusCompleted && t.CompletedAt == nil {
			stamp := now
			t.CompletedAt = &stamp
		}
		return false
	}
	t.Status = next
	if next == TicketStatusCompleted {
		stamp := now
		t.CompletedAt = &stamp
	} else {
		t.CompletedAt = nil
	}
	return true
}

// IsReopen reports whether a transition takes a ticket out of completed.
func IsReopen(from, to TicketStatus) bool {
	return from == TicketStatusCompleted && to != TicketStatusCompleted
}
