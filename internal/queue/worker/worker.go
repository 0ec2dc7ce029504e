// Package worker drains the notification outbox.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geocoder89/libraryhub/internal/domain/job"
	"github.com/geocoder89/libraryhub/internal/notifications"
	"github.com/geocoder89/libraryhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	WorkerID     string
	PollInterval time.Duration
	Concurrency  int
	// LockTTL is how long a job may stay processing before another worker
	// takes it back.
	LockTTL time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
	metrics  *observability.JobMetrics

	now     func() time.Time
	backoff func(attempt int) time.Duration

	ready atomic.Bool
}

type Option func(*Worker)

func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.log = l }
}

func WithMetrics(p *observability.Prom, m *observability.JobMetrics) Option {
	return func(w *Worker) {
		w.prom = p
		w.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(w *Worker) { w.backoff = fn }
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, opts ...Option) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker"
	}

	w := &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      slog.Default(),
		metrics:  observability.NewJobMetrics(),
		now:      time.Now,
		backoff:  ExponentialBackoff,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ready reports whether the worker loops are running and not draining.
func (w *Worker) Ready() bool { return w.ready.Load() }

func (w *Worker) Metrics() *observability.JobMetrics { return w.metrics }

// Run blocks until ctx is cancelled and every in-flight job has settled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker starting",
		"worker_id", w.cfg.WorkerID,
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
	)

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reaper(ctx)
	}()

	w.ready.Store(true)
	<-ctx.Done()
	w.ready.Store(false)

	w.log.Info("worker draining")
	wg.Wait()
	w.log.Info("worker stopped")

	return nil
}

func (w *Worker) loop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// drain back to back while there is work
		for ctx.Err() == nil {
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				w.log.ErrorContext(ctx, "process job failed", "slot", slot, "err", err)
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) reaper(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.ErrorContext(ctx, "requeue stale jobs failed", "err", err)
				continue
			}
			if n > 0 {
				w.log.WarnContext(ctx, "requeued stale jobs", "count", n)
			}
		}
	}
}
