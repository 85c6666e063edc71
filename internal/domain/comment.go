package domain

import "time"

// Comment is a note on a ticket thread. A nil UserID marks system or
// email-originated comments.
type Comment struct {
	ID            string
	TicketID      string
	UserID        *string
	Body          string
	IsInternal    bool
	IsInfoRequest bool
	CreatedAt     time.Time
}

// IsAuthoredBy reports whether profileID wrote the comment.
func (c *Comment) IsAuthoredBy(profileID string) bool {
	return c.UserID != nil && *c.UserID == profileID
}
