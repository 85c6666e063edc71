package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
)

type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}

// IMAPFetcher polls IMAP/IMAPS mailboxes for unseen messages.
type IMAPFetcher struct {
	dialTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
	newClient   func(config.MailboxAccount) (imapClient, error)
}

// IMAPFetcherOption customizes fetcher behavior.
type IMAPFetcherOption func(*IMAPFetcher)

// NewIMAPFetcher returns an IMAP fetcher.
func NewIMAPFetcher(opts ...IMAPFetcherOption) *IMAPFetcher {
	f := &IMAPFetcher{
		dialTimeout: 10 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      zap.NewNop(),
	}
	f.newClient = f.defaultClientFactory
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithIMAPLogger overrides the logger.
func WithIMAPLogger(logger *zap.Logger) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithIMAPDialTimeout overrides the socket dial timeout.
func WithIMAPDialTimeout(timeout time.Duration) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if timeout > 0 {
			f.dialTimeout = timeout
		}
	}
}

// WithIMAPClock overrides the wall clock.
func WithIMAPClock(now func() time.Time) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if now != nil {
			f.now = now
		}
	}
}

func withIMAPClientFactory(factory func(config.MailboxAccount) (imapClient, error)) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if factory != nil {
			f.newClient = factory
		}
	}
}

func (f *IMAPFetcher) Name() string { return "imap" }

// Fetch hands every unseen message received since `since` to handle, and
// flags it \Seen once handle returns nil. Bodies are fetched with PEEK so
// failed messages stay unseen.
func (f *IMAPFetcher) Fetch(ctx context.Context, account config.MailboxAccount, since time.Time, handle Handler) (FetchStats, error) {
	var stats FetchStats
	if handle == nil {
		return stats, errors.New("imap fetcher requires a handler")
	}
	if err := validateIMAPAccount(account); err != nil {
		return stats, err
	}

	client, err := f.newClient(account)
	if err != nil {
		return stats, fmt.Errorf("imap connect: %w", err)
	}
	defer f.safeClose(client)

	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		return stats, fmt.Errorf("imap auth: %w", err)
	}

	mailbox := account.Folder
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return stats, fmt.Errorf("imap select %s: %w", mailbox, err)
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	if !since.IsZero() {
		// SINCE has day granularity; InternalDate is checked below.
		criteria.Since = since
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return stats, fmt.Errorf("imap search: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return stats, f.logout(client)
	}

	fetchOpts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{{Peek: true}},
	}
	buffers, err := client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return stats, fmt.Errorf("imap fetch: %w", err)
	}

	var done []imap.UID
	for _, buf := range buffers {
		if err := ctx.Err(); err != nil {
			if storeErr := markSeen(client, done); storeErr != nil {
				return stats, errors.Join(err, storeErr)
			}
			return stats, err
		}
		if !since.IsZero() && !buf.InternalDate.IsZero() && buf.InternalDate.Before(since) {
			continue
		}
		raw := firstBodySection(buf)
		if raw == nil {
			continue
		}
		stats.Fetched++

		msg, err := ParseRaw(raw)
		if err != nil {
			f.logger.Warn("imap message unparseable",
				zap.String("mailbox", account.Name), zap.Uint32("uid", uint32(buf.UID)), zap.Error(err))
			stats.Failed++
			continue
		}
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = buf.InternalDate
		}
		ensureReceived(&msg, f.now())
		msg.To = withDeliveredTo(msg.To, account.Address)

		if err := handle(ctx, msg); err != nil {
			f.logger.Warn("imap message left unread",
				zap.String("mailbox", account.Name), zap.Uint32("uid", uint32(buf.UID)), zap.Error(err))
			stats.Failed++
			continue
		}
		stats.Handled++
		done = append(done, buf.UID)
	}

	if err := markSeen(client, done); err != nil {
		return stats, err
	}
	return stats, f.logout(client)
}

// markSeen flags handled UIDs \Seen, including on a mid-batch cancel.
func markSeen(client imapClient, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{imap.FlagSeen}}
	if err := client.Store(imap.UIDSetNum(uids...), store, nil).Close(); err != nil {
		return fmt.Errorf("imap store seen: %w", err)
	}
	return nil
}

func firstBodySection(buf *imapclient.FetchMessageBuffer) []byte {
	for _, section := range buf.BodySection {
		if len(section.Bytes) > 0 {
			return section.Bytes
		}
	}
	return nil
}

func (f *IMAPFetcher) logout(client imapClient) error {
	if err := client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

func (f *IMAPFetcher) safeClose(client imapClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		f.logger.Debug("imap close error", zap.Error(err))
	}
}

func (f *IMAPFetcher) defaultClientFactory(account config.MailboxAccount) (imapClient, error) {
	if account.Host == "" {
		return nil, errors.New("imap account missing host")
	}
	tls := useIMAPTLS(account.Type)
	port := account.Port
	if port == 0 {
		if tls {
			port = 993
		} else {
			port = 143
		}
	}
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: f.dialTimeout}}
	addr := net.JoinHostPort(account.Host, fmt.Sprintf("%d", port))
	var client *imapclient.Client
	var err error
	if tls {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialInsecure(addr, opts)
	}
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter {
	return w.Client.Store(numSet, store, options)
}

func validateIMAPAccount(account config.MailboxAccount) error {
	if account.Username == "" {
		return errors.New("imap account missing username")
	}
	if account.Password == "" {
		return errors.New("imap account missing password")
	}
	if !supportsIMAP(account.Type) {
		return fmt.Errorf("account type %s not supported by IMAP fetcher", account.Type)
	}
	return nil
}

func supportsIMAP(t string) bool {
	switch strings.ToLower(t) {
	case "imap", "imaps":
		return true
	}
	return false
}

func useIMAPTLS(t string) bool {
	return strings.EqualFold(t, "imaps")
}
