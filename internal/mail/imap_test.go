package mail

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/require"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

func rawEmail(from, subject, body string) []byte {
	return crlf(fmt.Sprintf("From: %s\nTo: maintenance@greatlakesg.com\nSubject: %s\nContent-Type: text/plain\n\n%s\n", from, subject, body))
}

func imapAccount() config.MailboxAccount {
	return config.MailboxAccount{
		Name:     "maintenance",
		Type:     "imaps",
		Host:     "mail.example",
		Username: "agent",
		Password: "secret",
		Address:  "desk@greatlakesg.com",
	}
}

func TestIMAPFetcherMarksHandledMessagesSeen(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeIMAPClient{
		uids: []imap.UID{11, 12, 13},
		bodies: map[imap.UID][]byte{
			11: rawEmail("jane@example.com", "Ticket #5", "first"),
			12: rawEmail("bob@example.com", "broken", "second"),
			13: rawEmail("old@example.com", "too old", "third"),
		},
		internalDate: map[imap.UID]time.Time{
			11: since.Add(time.Hour),
			12: since.Add(2 * time.Hour),
			13: since.Add(-time.Hour),
		},
	}
	f := NewIMAPFetcher(withIMAPClientFactory(func(config.MailboxAccount) (imapClient, error) { return client, nil }))

	var seen []domain.InboundMessage
	handler := func(_ context.Context, msg domain.InboundMessage) error {
		seen = append(seen, msg)
		if msg.From == "bob@example.com" {
			return errors.New("database down")
		}
		return nil
	}

	stats, err := f.Fetch(context.Background(), imapAccount(), since, handler)
	require.NoError(t, err)
	require.Equal(t, FetchStats{Fetched: 2, Handled: 1, Failed: 1}, stats)
	require.Len(t, seen, 2)
	require.Equal(t, "first", seen[0].Body)
	require.Equal(t, since.Add(time.Hour), seen[0].ReceivedAt)
	require.Contains(t, seen[0].To, "desk@greatlakesg.com")

	require.Equal(t, []imap.UID{11}, client.storedUIDs)
	require.True(t, client.criteria.Since.Equal(since))
	require.Equal(t, []imap.Flag{imap.FlagSeen}, client.criteria.NotFlag)
	require.True(t, client.fetchOpts.BodySection[0].Peek)
	require.Equal(t, 1, client.logoutCalls)
	require.True(t, client.closed)
}

func TestIMAPFetcherMarksSeenWhenCancelledMidBatch(t *testing.T) {
	client := &fakeIMAPClient{
		uids: []imap.UID{21, 22, 23},
		bodies: map[imap.UID][]byte{
			21: rawEmail("jane@example.com", "Ticket #5", "first"),
			22: rawEmail("bob@example.com", "Ticket #6", "second"),
			23: rawEmail("ann@example.com", "Ticket #7", "third"),
		},
	}
	f := NewIMAPFetcher(withIMAPClientFactory(func(config.MailboxAccount) (imapClient, error) { return client, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handled := 0
	handler := func(context.Context, domain.InboundMessage) error {
		handled++
		cancel()
		return nil
	}

	stats, err := f.Fetch(ctx, imapAccount(), time.Time{}, handler)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handled)
	require.Equal(t, FetchStats{Fetched: 1, Handled: 1}, stats)
	require.Equal(t, []imap.UID{21}, client.storedUIDs)
	require.True(t, client.closed)
}

func TestIMAPFetcherEmptyMailbox(t *testing.T) {
	client := &fakeIMAPClient{}
	f := NewIMAPFetcher(withIMAPClientFactory(func(config.MailboxAccount) (imapClient, error) { return client, nil }))

	stats, err := f.Fetch(context.Background(), imapAccount(), time.Time{}, func(context.Context, domain.InboundMessage) error { return nil })
	require.NoError(t, err)
	require.Zero(t, stats.Fetched)
	require.Zero(t, client.storeCalls)
}

func TestIMAPFetcherConnectionErrors(t *testing.T) {
	noop := func(context.Context, domain.InboundMessage) error { return nil }

	f := NewIMAPFetcher(withIMAPClientFactory(func(config.MailboxAccount) (imapClient, error) {
		return nil, errors.New("dial failed")
	}))
	_, err := f.Fetch(context.Background(), imapAccount(), time.Time{}, noop)
	require.ErrorContains(t, err, "imap connect")

	f = NewIMAPFetcher(withIMAPClientFactory(func(config.MailboxAccount) (imapClient, error) {
		return &fakeIMAPClient{loginErr: errors.New("bad creds")}, nil
	}))
	_, err = f.Fetch(context.Background(), imapAccount(), time.Time{}, noop)
	require.ErrorContains(t, err, "imap auth")

	f = NewIMAPFetcher(withIMAPClientFactory(func(config.MailboxAccount) (imapClient, error) {
		return &fakeIMAPClient{selectErr: errors.New("no inbox")}, nil
	}))
	_, err = f.Fetch(context.Background(), imapAccount(), time.Time{}, noop)
	require.ErrorContains(t, err, "imap select")
}

func TestIMAPFetcherValidation(t *testing.T) {
	f := NewIMAPFetcher()
	noop := func(context.Context, domain.InboundMessage) error { return nil }
	cases := []config.MailboxAccount{
		{Type: "imap", Password: "pw"},
		{Type: "imap", Username: "user"},
		{Type: "pop3", Username: "user", Password: "pw"},
	}
	for _, acc := range cases {
		_, err := f.Fetch(context.Background(), acc, time.Time{}, noop)
		require.Error(t, err, "account %+v", acc)
	}
	_, err := f.Fetch(context.Background(), imapAccount(), time.Time{}, nil)
	require.Error(t, err)
}

func TestIMAPTypePredicates(t *testing.T) {
	require.True(t, supportsIMAP("IMAPS"))
	require.False(t, supportsIMAP("graph"))
	require.True(t, useIMAPTLS("imaps"))
	require.False(t, useIMAPTLS("imap"))
}

type fakeIMAPClient struct {
	uids         []imap.UID
	bodies       map[imap.UID][]byte
	internalDate map[imap.UID]time.Time

	loginErr  error
	selectErr error
	searchErr error
	fetchErr  error
	storeErr  error

	criteria    *imap.SearchCriteria
	fetchOpts   *imap.FetchOptions
	storedUIDs  []imap.UID
	storeCalls  int
	logoutCalls int
	closed      bool
}

func (c *fakeIMAPClient) Login(_, _ string) commandWaiter { return &fakeCommand{err: c.loginErr} }
func (c *fakeIMAPClient) Logout() commandWaiter {
	c.logoutCalls++
	return &fakeCommand{}
}
func (c *fakeIMAPClient) Close() error { c.closed = true; return nil }
func (c *fakeIMAPClient) Select(_ string, _ *imap.SelectOptions) selectWaiter {
	return &fakeSelect{err: c.selectErr}
}
func (c *fakeIMAPClient) UIDSearch(criteria *imap.SearchCriteria, _ *imap.SearchOptions) searchWaiter {
	c.criteria = criteria
	return &fakeSearch{err: c.searchErr, data: &imap.SearchData{All: imap.UIDSetNum(c.uids...)}}
}
func (c *fakeIMAPClient) Fetch(_ imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	c.fetchOpts = options
	var bufs []*imapclient.FetchMessageBuffer
	for _, uid := range c.uids {
		bufs = append(bufs, &imapclient.FetchMessageBuffer{
			SeqNum:       uint32(uid),
			UID:          uid,
			InternalDate: c.internalDate[uid],
			BodySection: []imapclient.FetchBodySectionBuffer{{
				Section: &imap.FetchItemBodySection{Peek: true},
				Bytes:   append([]byte(nil), c.bodies[uid]...),
			}},
		})
	}
	return &fakeFetch{err: c.fetchErr, bufs: bufs}
}
func (c *fakeIMAPClient) Store(numSet imap.NumSet, _ *imap.StoreFlags, _ *imap.StoreOptions) fetchWaiter {
	c.storeCalls++
	if set, ok := numSet.(imap.UIDSet); ok {
		if uids, ok := set.Nums(); ok {
			c.storedUIDs = append(c.storedUIDs, uids...)
		}
	}
	return &fakeFetch{err: c.storeErr}
}

type fakeCommand struct{ err error }

func (c *fakeCommand) Wait() error { return c.err }

type fakeSelect struct{ err error }

func (s *fakeSelect) Wait() (*imap.SelectData, error) { return nil, s.err }

type fakeSearch struct {
	err  error
	data *imap.SearchData
}

func (s *fakeSearch) Wait() (*imap.SearchData, error) { return s.data, s.err }

type fakeFetch struct {
	err  error
	bufs []*imapclient.FetchMessageBuffer
}

func (f *fakeFetch) Collect() ([]*imapclient.FetchMessageBuffer, error) { return f.bufs, f.err }
func (f *fakeFetch) Close() error                                       { return f.err }
