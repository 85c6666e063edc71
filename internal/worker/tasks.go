package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/service"
)

// Deliverer drains the outbound email queue.
type Deliverer interface {
	DeliverPending(ctx context.Context, batchSize int) (service.DeliverySummary, error)
}

// Poller checks the inbound mailboxes.
type Poller interface {
	Poll(ctx context.Context) (service.PollSummary, error)
}

// DeliverEmailTask sends one batch of queued email per run.
type DeliverEmailTask struct {
	Deliverer Deliverer
	BatchSize int
	Spec      string
	Logger    *zap.Logger
}

func (t *DeliverEmailTask) Name() string     { return "deliver-email" }
func (t *DeliverEmailTask) Schedule() string { return t.Spec }

func (t *DeliverEmailTask) Run(ctx context.Context) error {
	summary, err := t.Deliverer.DeliverPending(ctx, t.BatchSize)
	if err != nil {
		return err
	}
	if t.Logger != nil && summary.Processed > 0 {
		t.Logger.Info("email batch delivered",
			zap.Int("processed", summary.Processed),
			zap.Int("sent", summary.Sent),
			zap.Int("retrying", summary.Retrying),
			zap.Int("failed", summary.Failed))
	}
	return nil
}

// CheckMailboxesTask polls the inbound mailboxes once per run.
type CheckMailboxesTask struct {
	Poller Poller
	Spec   string
}

func (t *CheckMailboxesTask) Name() string     { return "check-mailboxes" }
func (t *CheckMailboxesTask) Schedule() string { return t.Spec }

func (t *CheckMailboxesTask) Run(ctx context.Context) error {
	_, err := t.Poller.Poll(ctx)
	return err
}
