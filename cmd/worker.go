package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	notificationPostgres "github.com/imec-int/monument-plwd-sub001/internal/notification/postgres"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background worker pools",
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Deliver pending notifications to the diary service",
	Long:  `Start the notification worker pool. Use it when the server runs with --with-dispatcher=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startNotificationWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	batchSize    int
	maxRetries   int
	pollInterval time.Duration
)

func startNotificationWorker() error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := openGorm(db)
	if err != nil {
		return err
	}
	client, err := newDiaryClient(cfg.Diary, lg)
	if err != nil {
		return err
	}

	// Use command line flags if provided, otherwise use config values
	nc := cfg.Notifications
	nc.MaxWorkers = getIntFlag(maxWorkers, nc.MaxWorkers)
	nc.JobQueueSize = getIntFlag(jobQueueSize, nc.JobQueueSize)
	nc.BatchSize = getIntFlag(batchSize, nc.BatchSize)
	nc.MaxRetries = getIntFlag(maxRetries, nc.MaxRetries)
	nc.PollInterval = getDurationFlag(pollInterval, nc.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("notification worker is running. Press Ctrl+C to stop.", "diary_url", cfg.Diary.BaseURL)
	dispatcher := newDispatcher(nc, notificationPostgres.NewNotificationRepository(gdb), client, lg)
	return dispatcher.Run(ctx)
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Pending rows fetched per poll (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Delivery attempts before a row is failed (overrides config)")
	notificationWorkerCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Time between polls (overrides config)")

	workerCmd.AddCommand(notificationWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
