package domain

import "time"

// MaxDeliveryAttempts bounds outbound delivery retries.
const MaxDeliveryAttempts = 3

// EmailStatus is the delivery state of a queued email.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// EmailTemplate identifies why an email was queued.
type EmailTemplate string

const (
	TemplateTicketCreated EmailTemplate = "ticket_created"
	TemplateTicketUpdated EmailTemplate = "ticket_updated"
	TemplateCommentAdded  EmailTemplate = "comment_added"
	TemplateStatusChanged EmailTemplate = "status_changed"
	TemplateInfoRequested EmailTemplate = "info_requested"
)

// OutboundEmail is one queued message.
type OutboundEmail struct {
	ID           string
	TicketID     *string
	TicketNumber *int64
	ToEmail      string
	CcEmails     []string
	Subject      string
	Body         string
	Template     EmailTemplate
	Status       EmailStatus
	Attempts     int
	LastError    *string
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NextDeliveryState returns the attempt count and status after a failed
// delivery of an entry that had already been attempted `attempts` times.
func NextDeliveryState(attempts int) (int, EmailStatus) {
	next := attempts + 1
	if next >= MaxDeliveryAttempts {
		return next, EmailStatusFailed
	}
	return next, EmailStatusPending
}

// Deliverable reports whether the delivery worker may pick the entry up.
func (e *OutboundEmail) Deliverable() bool {
	return e.Status == EmailStatusPending && e.Attempts < MaxDeliveryAttempts
}
