package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/domain"
	"github.com/greatlakes/greenhouse-tickets/internal/mail"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
	"github.com/greatlakes/greenhouse-tickets/internal/repository"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// InboundProcessor correlates one normalized inbound message.
type InboundProcessor interface {
	Process(ctx context.Context, msg domain.InboundMessage) (*domain.InboundOutcome, error)
}

// FetcherResolver picks the fetcher for a mailbox account.
type FetcherResolver interface {
	FetcherFor(account config.MailboxAccount) (mail.Fetcher, error)
}

// PollSummary counts the outcome of one mailbox check.
type PollSummary struct {
	Mailboxes int `json:"mailboxes"`
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Rejected  int `json:"rejected"`
	Errors    int `json:"errors"`
}

// MailboxPoller scans the configured mailboxes for mail received since the
// stored watermark.
type MailboxPoller struct {
	settings   repository.SettingsRepository
	fetchers   FetcherResolver
	correlator InboundProcessor
	accounts   []config.MailboxAccount
	lookback   time.Duration
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock
}

// MailboxPollerDependencies bundles collaborators.
type MailboxPollerDependencies struct {
	SettingsRepo repository.SettingsRepository
	Fetchers     FetcherResolver
	Correlator   InboundProcessor
	Accounts     []config.MailboxAccount
	Lookback     time.Duration
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        Clock
}

// NewMailboxPoller constructs the poller.
func NewMailboxPoller(deps MailboxPollerDependencies) *MailboxPoller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lookback := deps.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &MailboxPoller{
		settings:   deps.SettingsRepo,
		fetchers:   deps.Fetchers,
		correlator: deps.Correlator,
		accounts:   deps.Accounts,
		lookback:   lookback,
		metrics:    deps.Metrics,
		logger:     logger,
		clock:      deps.Clock,
	}
}

// Poll runs one check over every mailbox. Processed and rejected messages
// are marked read by the fetcher; messages that hit an infrastructure error
// stay unread. The watermark moves to the run's start time only when the
// whole run was clean. An error is returned when no mailbox could be read.
func (p *MailboxPoller) Poll(ctx context.Context) (PollSummary, error) {
	summary := PollSummary{Mailboxes: len(p.accounts)}
	started := p.clock.now()

	since, err := p.watermark(ctx, started)
	if err != nil {
		return summary, err
	}

	failedMailboxes := 0
	for _, account := range p.accounts {
		if err := p.pollAccount(ctx, account, since, &summary); err != nil {
			failedMailboxes++
			summary.Errors++
			p.logger.Error("mailbox check failed", zap.String("mailbox", account.Name), zap.Error(err))
		}
	}

	if summary.Errors == 0 {
		if err := p.settings.PutTime(ctx, repository.SettingLastEmailCheck, started); err != nil {
			return summary, fmt.Errorf("advance watermark: %w", err)
		}
	} else {
		p.logger.Warn("watermark not advanced", zap.Time("since", since), zap.Int("errors", summary.Errors))
	}

	p.logger.Info("mailbox check finished",
		zap.Int("mailboxes", summary.Mailboxes),
		zap.Int("fetched", summary.Fetched),
		zap.Int("processed", summary.Processed),
		zap.Int("rejected", summary.Rejected),
		zap.Int("errors", summary.Errors))

	if len(p.accounts) > 0 && failedMailboxes == len(p.accounts) {
		return summary, fmt.Errorf("all %d mailboxes failed", failedMailboxes)
	}
	return summary, nil
}

func (p *MailboxPoller) watermark(ctx context.Context, now time.Time) (time.Time, error) {
	stored, err := p.settings.GetTime(ctx, repository.SettingLastEmailCheck)
	if err != nil {
		return time.Time{}, fmt.Errorf("load watermark: %w", err)
	}
	if stored == nil {
		return now.Add(-p.lookback), nil
	}
	return *stored, nil
}

func (p *MailboxPoller) pollAccount(ctx context.Context, account config.MailboxAccount, since time.Time, summary *PollSummary) error {
	fetcher, err := p.fetchers.FetcherFor(account)
	if err != nil {
		return err
	}
	channel := fetcher.Name()

	handle := func(ctx context.Context, msg domain.InboundMessage) error {
		_, err := p.correlator.Process(ctx, msg)
		switch {
		case err == nil:
			summary.Processed++
			p.metrics.RecordInbound(channel, "processed")
			return nil
		case apperrors.IsClientError(err):
			summary.Rejected++
			p.metrics.RecordInbound(channel, "rejected")
			p.logger.Warn("inbound email rejected",
				zap.String("mailbox", account.Name),
				zap.String("from", msg.From),
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return nil
		default:
			summary.Errors++
			p.metrics.RecordInbound(channel, "error")
			return err
		}
	}

	stats, err := fetcher.Fetch(ctx, account, since, handle)
	summary.Fetched += stats.Fetched
	return err
}
