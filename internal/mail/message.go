// Package mail adapts outbound delivery providers and inbound mailboxes to
// the ticket workflow.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// Message is an outbound email ready for a provider.
type Message struct {
	From    string
	To      []string
	Cc      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

// Sender delivers one message.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Authenticator is implemented by senders that need a credential before a
// batch can be attempted.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// LogSender is the development sender: it logs the message and reports success.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, no provider configured",
		zap.Strings("to", msg.To),
		zap.Strings("cc", msg.Cc),
		zap.String("subject", msg.Subject),
	)
	return nil
}
