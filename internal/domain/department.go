package domain

import "time"

// Department owns tickets and profiles and has its own notification mailbox.
type Department struct {
	ID        string
	Name      string
	Email     *string
	CreatedAt time.Time
}
