package domain

import "time"

// InboundMessage is a normalized inbound email regardless of channel.
type InboundMessage struct {
	From       string
	FromName   string
	To         []string
	Subject    string
	Body       string
	ThreadID   string
	ReceivedAt time.Time
}

// InboundAction describes what the correlator did with a message.
type InboundAction string

const (
	InboundReplied       InboundAction = "replied"
	InboundTicketCreated InboundAction = "ticket_created"
)

// InboundOutcome is the result of a successful correlation.
type InboundOutcome struct {
	Action        InboundAction
	TicketID      string
	TicketNumber  int64
	CommentID     string
	StatusChanged bool
}
