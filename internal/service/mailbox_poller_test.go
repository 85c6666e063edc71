package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

type stubProcessor struct {
	results map[string]error
	seen    []string
}

func (s *stubProcessor) Process(_ context.Context, msg domain.InboundMessage) (*domain.InboundOutcome, error) {
	s.seen = append(s.seen, msg.Subject)
	if err := s.results[msg.Subject]; err != nil {
		return nil, err
	}
	return &domain.InboundOutcome{Action: domain.InboundReplied}, nil
}

func newPoller(settings *fakeSettings, fetchers map[string]mail.Fetcher, processor InboundProcessor) *MailboxPoller {
	var accounts []config.MailboxAccount
	for _, name := range []string{"maintenance", "electrical"} {
		if _, ok := fetchers[name]; ok {
			accounts = append(accounts, config.MailboxAccount{Name: name, Type: "imaps"})
		}
	}
	return NewMailboxPoller(MailboxPollerDependencies{
		SettingsRepo: settings,
		Fetchers:     fakeResolver{fetchers: fetchers},
		Correlator:   processor,
		Accounts:     accounts,
		Lookback:     24 * time.Hour,
		Logger:       zap.NewNop(),
		Clock:        fixedClock,
	})
}

func TestPollDefaultsWatermarkAndAdvancesIt(t *testing.T) {
	settings := &fakeSettings{}
	fetcher := &fakeFetcher{messages: []domain.InboundMessage{{Subject: "a"}, {Subject: "b"}}}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": fetcher}, &stubProcessor{})

	summary, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PollSummary{Mailboxes: 1, Fetched: 2, Processed: 2}, summary)

	require.Len(t, fetcher.since, 1)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), fetcher.since[0])

	stored, _ := settings.GetTime(context.Background(), repository.SettingLastEmailCheck)
	require.NotNil(t, stored)
	assert.Equal(t, fixedNow, *stored)
}

func TestPollUsesStoredWatermark(t *testing.T) {
	last := fixedNow.Add(-5 * time.Minute)
	settings := &fakeSettings{values: map[string]time.Time{repository.SettingLastEmailCheck: last}}
	fetcher := &fakeFetcher{}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": fetcher, "electrical": fetcher}, &stubProcessor{})

	_, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Time{last, last}, fetcher.since)
}

func TestPollRejectionsAreAcknowledged(t *testing.T) {
	settings := &fakeSettings{}
	fetcher := &fakeFetcher{messages: []domain.InboundMessage{{Subject: "spoofed"}, {Subject: "ok"}, {Subject: "nowhere"}}}
	processor := &stubProcessor{results: map[string]error{
		"spoofed": apperrors.NewCorrelationMismatch(),
		"nowhere": apperrors.NewUnresolvedInbound(nil),
	}}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": fetcher}, processor)

	summary, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.Rejected)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, []string{"spoofed", "ok", "nowhere"}, fetcher.marked)
	assert.Equal(t, 1, settings.puts)
}

func TestPollInfrastructureErrorKeepsWatermark(t *testing.T) {
	settings := &fakeSettings{}
	fetcher := &fakeFetcher{messages: []domain.InboundMessage{{Subject: "db down"}, {Subject: "ok"}}}
	processor := &stubProcessor{results: map[string]error{
		"db down": apperrors.NewUnavailable("upstream unavailable", context.DeadlineExceeded),
	}}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": fetcher}, processor)

	summary, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, []string{"ok"}, fetcher.marked, "failed message stays unread")
	assert.Equal(t, 0, settings.puts)
}

func TestPollOneMailboxDown(t *testing.T) {
	settings := &fakeSettings{}
	up := &fakeFetcher{messages: []domain.InboundMessage{{Subject: "ok"}}}
	down := &fakeFetcher{fetchErr: errors.New("dial tcp: connection refused")}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": up, "electrical": down}, &stubProcessor{})

	summary, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Mailboxes)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 0, settings.puts)
}

func TestPollAllMailboxesDownIsHardFailure(t *testing.T) {
	settings := &fakeSettings{}
	down := &fakeFetcher{fetchErr: errors.New("AUTHENTICATIONFAILED")}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": down}, &stubProcessor{})

	_, err := poller.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, settings.puts)
}

func TestPollEndToEndWithCorrelator(t *testing.T) {
	h := newHarness()
	ticket := h.seedTicket(domain.Ticket{Number: 204})
	settings := &fakeSettings{}
	fetcher := &fakeFetcher{messages: []domain.InboundMessage{
		{From: "grower@example.com", Subject: "Re: Leaky valve #204", Body: "still dripping"},
		{From: "grower@example.com", To: []string{"maintenance@greatlakesg.com"}, Subject: "Broken heater"},
	}}
	poller := newPoller(settings, map[string]mail.Fetcher{"maintenance": fetcher}, h.correlator)

	summary, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Len(t, h.comments.forTicket(ticket.ID), 1)
	assert.Equal(t, 2, h.tickets.count())
}
