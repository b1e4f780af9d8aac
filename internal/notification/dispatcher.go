package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sender delivers one notification. diary.Client satisfies it through
// DiarySender.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

type Job struct {
	Notification *Notification
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "notification_id", job.Notification.ID)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	MaxWorkers   int
	JobQueueSize int
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
}

// Dispatcher polls pending notifications and hands them to a pool of
// workers. A failed delivery stays pending until MaxRetries is reached.
type Dispatcher struct {
	repo   RepositoryAPI
	sender Sender
	logger *slog.Logger
	cfg    DispatcherConfig

	jobQueue   chan Job
	workerPool chan chan Job
	inflight   sync.Map
	wg         sync.WaitGroup
}

func NewDispatcher(repo RepositoryAPI, sender Sender, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.JobQueueSize <= 0 {
		cfg.JobQueueSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}

	return &Dispatcher{
		repo:       repo,
		sender:     sender,
		logger:     logger,
		cfg:        cfg,
		jobQueue:   make(chan Job, cfg.JobQueueSize),
		workerPool: make(chan chan Job, cfg.MaxWorkers),
	}
}

// Run blocks until ctx is cancelled and every worker has stopped.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.cfg.MaxWorkers; i++ {
		NewWorker(i, d.workerPool, d.logger).Start(ctx, &d.wg, d.process)
	}

	d.wg.Add(1)
	go d.dispatch(ctx)

	d.logger.Info("notification dispatcher started",
		"max_workers", d.cfg.MaxWorkers,
		"queue_size", d.cfg.JobQueueSize,
		"poll_interval", d.cfg.PollInterval.String())

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := d.Poll(ctx); err != nil {
			d.logger.Error("failed to poll pending notifications", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			d.wg.Wait()
			d.logger.Info("notification dispatcher stopped")
			return nil
		}
	}
}

// Poll enqueues one batch of pending notifications. Rows already queued or
// being delivered are skipped.
func (d *Dispatcher) Poll(ctx context.Context) error {
	rows, err := d.repo.ListPending(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	for _, row := range rows {
		if _, busy := d.inflight.LoadOrStore(row.ID, struct{}{}); busy {
			continue
		}
		select {
		case d.jobQueue <- Job{Notification: FromDataModel(row)}:
		case <-ctx.Done():
			d.inflight.Delete(row.ID)
			return nil
		default:
			d.inflight.Delete(row.ID)
			d.logger.Warn("notification queue full, deferring", "queue_capacity", cap(d.jobQueue))
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	n := job.Notification
	defer d.inflight.Delete(n.ID)

	d.Deliver(ctx, n)
}

// Deliver sends a single notification and records the outcome.
func (d *Dispatcher) Deliver(ctx context.Context, n *Notification) {
	if err := d.sender.Send(ctx, n); err != nil {
		final := n.RetryCount+1 >= d.cfg.MaxRetries
		d.logger.Warn("notification delivery failed",
			"notification_id", n.ID,
			"retry_count", n.RetryCount+1,
			"final", final,
			"error", err)
		if markErr := d.repo.MarkFailed(ctx, n.ID, err.Error(), final); markErr != nil {
			d.logger.Error("failed to record delivery failure", "notification_id", n.ID, "error", markErr)
		}
		return
	}

	if err := d.repo.MarkSent(ctx, n.ID, time.Now().UTC()); err != nil {
		d.logger.Error("failed to mark notification sent", "notification_id", n.ID, "error", err)
		return
	}
	d.logger.Info("notification delivered", "notification_id", n.ID, "user_id", n.UserID)
}
