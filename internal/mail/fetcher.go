package mail

import (
	"context"
	"strings"
	"time"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// Handler processes one inbound message. Returning nil tells the fetcher the
// message is done and may be marked read; an error leaves it unread so the
// next poll sees it again.
type Handler func(ctx context.Context, msg domain.InboundMessage) error

// FetchStats summarizes one mailbox fetch.
type FetchStats struct {
	Fetched int
	Handled int
	Failed  int
}

// Fetcher implementations (IMAP, Graph) stream unread messages received
// since a watermark to a handler. Fetch only returns an error for
// mailbox-level failures (connect, auth, listing); per-message handler
// errors are counted in FetchStats.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, account config.MailboxAccount, since time.Time, handle Handler) (FetchStats, error)
}

// withDeliveredTo appends the mailbox address to the recipients unless it is
// already there, so department resolution works for BCC and forwarded mail.
func withDeliveredTo(to []string, address string) []string {
	address = strings.TrimSpace(address)
	if address == "" {
		return to
	}
	for _, existing := range to {
		if strings.EqualFold(existing, address) {
			return to
		}
	}
	return append(to, address)
}
