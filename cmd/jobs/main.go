package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/app"
	"github.com/greatlakes/greenhouse-tickets/internal/auth"
	"github.com/greatlakes/greenhouse-tickets/internal/config"
	"github.com/greatlakes/greenhouse-tickets/internal/observability"
	"github.com/greatlakes/greenhouse-tickets/internal/worker"
)

var rootCmd = &cobra.Command{
	Use:           "greenhouse-jobs",
	Short:         "Background jobs for the greenhouse ticket service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var deliverEmailCmd = &cobra.Command{
	Use:   "deliver-email",
	Short: "Send one batch of queued outbound email",
	RunE:  runDeliverEmail,
}

var checkMailboxesCmd = &cobra.Command{
	Use:   "check-mailboxes",
	Short: "Poll the configured inbound mailboxes once",
	RunE:  runCheckMailboxes,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run delivery and mailbox polling on their cron schedules",
	RunE:  runSchedule,
}

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret [secret]",
	Short: "Print the bcrypt hash for INBOUND_WEBHOOK_SECRET_HASH",
	Args:  cobra.ExactArgs(1),
	RunE:  runHashSecret,
}

var batchSizeFlag int

func init() {
	deliverEmailCmd.Flags().IntVar(&batchSizeFlag, "batch-size", 0, "Entries per run (defaults to JOBS_DELIVERY_BATCH_SIZE)")

	rootCmd.AddCommand(deliverEmailCmd)
	rootCmd.AddCommand(checkMailboxesCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(hashSecretCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type jobEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	services *app.Services
	close    func()
}

func setup(ctx context.Context) (*jobEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	services, closeServices, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &jobEnv{cfg: cfg, logger: logger, services: services, close: func() {
		closeServices()
		_ = logger.Sync()
	}}, nil
}

func (e *jobEnv) runner() *worker.Runner {
	return worker.NewRunner(worker.RunnerOptions{
		Timeout: e.cfg.Jobs.TaskTimeout,
		LockTTL: e.cfg.Jobs.LockTTL,
		Locker:  e.services.Redis,
		Metrics: e.services.Metrics,
		Logger:  e.logger.Named("runner"),
	})
}

func (e *jobEnv) deliverTask(batchSize int) *worker.DeliverEmailTask {
	if batchSize <= 0 {
		batchSize = e.cfg.Jobs.DeliveryBatchSize
	}
	return &worker.DeliverEmailTask{
		Deliverer: e.services.EmailQueue,
		BatchSize: batchSize,
		Spec:      e.cfg.Jobs.DeliverySchedule,
		Logger:    e.logger.Named("deliver"),
	}
}

func (e *jobEnv) mailboxTask() *worker.CheckMailboxesTask {
	return &worker.CheckMailboxesTask{Poller: e.services.Poller, Spec: e.cfg.Jobs.MailboxSchedule}
}

func runDeliverEmail(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	summary, err := env.services.EmailQueue.DeliverPending(ctx, env.deliverTask(batchSizeFlag).BatchSize)
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}

func runCheckMailboxes(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	summary, err := env.services.Poller.Poll(ctx)
	if perr := printJSON(cmd, summary); perr != nil {
		return perr
	}
	return err
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	runner := env.runner()
	if err := runner.Register(ctx, env.deliverTask(0)); err != nil {
		return err
	}
	if len(env.cfg.Inbound.Mailboxes) > 0 {
		if err := runner.Register(ctx, env.mailboxTask()); err != nil {
			return err
		}
	} else {
		env.logger.Info("no inbound mailboxes configured, mailbox polling disabled")
	}

	metricsServer := &http.Server{
		Addr:              env.cfg.Jobs.MetricsAddr,
		Handler:           promhttp.HandlerFor(env.services.Metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.logger.Error("metrics listener stopped", zap.Error(err))
		}
	}()

	runner.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsServer.Shutdown(shutdownCtx)
}

func runHashSecret(cmd *cobra.Command, args []string) error {
	cost := 0
	if cfg, err := config.Load(); err == nil {
		cost = cfg.Auth.BcryptCost
	}
	hashed, err := auth.HashSecret(args[0], cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hashed)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
