package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/libraryhub/internal/domain/job"
	"github.com/geocoder89/libraryhub/internal/jobs"
	"github.com/geocoder89/libraryhub/internal/notifications"
)

// errPermanent marks failures a retry cannot fix.
var errPermanent = errors.New("permanent job failure")

// ProcessOne claims and runs at most one job. processed is false when the
// queue had nothing due.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("claim: %w", err)
	}

	w.metrics.IncClaimed()
	start := w.now()

	// settle with a context that survives shutdown so the row is not left
	// processing
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelSettle()

	if err := w.execute(ctx, j); err != nil {
		return true, w.handleFailure(settleCtx, j, err, start)
	}

	if err := w.repo.MarkDone(settleCtx, j.ID); err != nil {
		return true, fmt.Errorf("mark done %s: %w", j.ID, err)
	}

	d := w.now().Sub(start)
	w.metrics.IncSent()
	w.metrics.ObserveDuration(d)
	w.prom.ObserveJob(j.Type, "done", d)

	w.log.InfoContext(ctx, "job done",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", j.Attempts+1,
		"duration_ms", d.Milliseconds(),
	)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	t, payload, err := jobs.DecodePayload(j)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	p, ok := payload.(jobs.BorrowingNoticePayload)
	if !ok {
		return fmt.Errorf("%w: unexpected payload %T", errPermanent, payload)
	}

	notice := notifications.BorrowingNotice{
		BorrowingID:  p.BorrowingID,
		Email:        p.Email,
		Name:         p.Name,
		BookTitle:    p.BookTitle,
		DueDate:      p.DueDate,
		ReturnedDate: p.ReturnedDate,
	}

	switch t {
	case jobs.JobBorrowingReceipt:
		return w.notifier.SendBorrowingReceipt(ctx, notice)
	case jobs.JobBorrowingReturned:
		return w.notifier.SendBorrowingReturned(ctx, notice)
	default:
		return fmt.Errorf("%w: no handler for %s", errPermanent, t)
	}
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error, start time.Time) error {
	attempt := j.Attempts + 1
	d := w.now().Sub(start)
	w.metrics.ObserveDuration(d)

	if errors.Is(cause, errPermanent) || attempt >= j.MaxAttempts {
		w.metrics.IncFailed()
		w.prom.ObserveJob(j.Type, "failed", d)
		w.log.ErrorContext(ctx, "job failed",
			"job_id", j.ID,
			"type", j.Type,
			"attempt", attempt,
			"err", cause,
		)

		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			return fmt.Errorf("mark failed %s: %w", j.ID, err)
		}
		return nil
	}

	runAt := w.now().Add(w.backoff(j.Attempts))

	w.metrics.IncRetried()
	w.prom.ObserveJob(j.Type, "retry", d)
	w.log.WarnContext(ctx, "job rescheduled",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", attempt,
		"run_at", runAt,
		"err", cause,
	)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error()); err != nil {
		return fmt.Errorf("reschedule %s: %w", j.ID, err)
	}
	return nil
}
