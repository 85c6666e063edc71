package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/observability"
)

// Task is one periodic job.
type Task interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// Locker provides a cross-process lock so only one jobs instance runs a
// task at a time. persistence.Redis satisfies it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, func(context.Context), error)
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Timeout time.Duration
	LockTTL time.Duration
	Locker  Locker
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Runner executes registered tasks on their cron schedules.
type Runner struct {
	cron    *cron.Cron
	tasks   []Task
	timeout time.Duration
	lockTTL time.Duration
	locker  Locker
	metrics *observability.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewRunner builds a runner using six-field cron specs (with seconds).
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	lockTTL := opts.LockTTL
	if lockTTL < timeout {
		lockTTL = timeout
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		timeout: timeout,
		lockTTL: lockTTL,
		locker:  opts.Locker,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// Register schedules task. It fails on an invalid cron spec.
func (r *Runner) Register(ctx context.Context, task Task) error {
	_, err := r.cron.AddFunc(task.Schedule(), func() {
		_ = r.Execute(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("schedule task %s: %w", task.Name(), err)
	}
	r.tasks = append(r.tasks, task)
	r.logger.Info("task registered", zap.String("task", task.Name()), zap.String("schedule", task.Schedule()))
	return nil
}

// Start begins firing scheduled tasks and blocks until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.cron.Start()
	r.logger.Info("task runner started", zap.Int("tasks", len(r.tasks)))
	<-ctx.Done()
	r.Stop()
}

// Stop stops scheduling and waits for running tasks to finish.
func (r *Runner) Stop() {
	stopped := r.cron.Stop()
	r.wg.Wait()
	<-stopped.Done()
	r.logger.Info("task runner stopped")
}

// Execute runs task once under the per-task timeout. When a Locker is
// configured, a run whose lock is held elsewhere is skipped.
func (r *Runner) Execute(ctx context.Context, task Task) error {
	r.wg.Add(1)
	defer r.wg.Done()

	logger := r.logger.With(zap.String("task", task.Name()))

	if r.locker != nil {
		ok, release, err := r.locker.TryLock(ctx, "job:"+task.Name(), r.lockTTL)
		if err != nil {
			logger.Error("task lock failed", zap.Error(err))
			r.metrics.RecordJob(task.Name(), err, 0)
			return err
		}
		if !ok {
			logger.Info("task skipped, lock held elsewhere")
			return nil
		}
		defer release(context.Background())
	}

	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)
	r.metrics.RecordJob(task.Name(), err, duration)

	if err != nil {
		logger.Error("task failed", zap.Duration("duration", duration), zap.Error(err))
		return err
	}
	logger.Info("task completed", zap.Duration("duration", duration))
	return nil
}
