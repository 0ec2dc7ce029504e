package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrProviderDown is returned by a LogNotifier configured to fail.
var ErrProviderDown = errors.New("notification provider down (simulated)")

// LogNotifier writes notices to the structured log. Delay and Fail let a
// local run exercise the retry path.
type LogNotifier struct {
	log   *slog.Logger
	Delay time.Duration
	Fail  bool
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendBorrowingReceipt(ctx context.Context, in BorrowingNotice) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.borrowing_receipt",
		"email", in.Email,
		"name", in.Name,
		"book_title", in.BookTitle,
		"borrowing_id", in.BorrowingID,
		"due_date", in.DueDate.Format(time.DateOnly),
	)
	return nil
}

func (n *LogNotifier) SendBorrowingReturned(ctx context.Context, in BorrowingNotice) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	attrs := []any{
		"email", in.Email,
		"name", in.Name,
		"book_title", in.BookTitle,
		"borrowing_id", in.BorrowingID,
	}
	if in.ReturnedDate != nil {
		attrs = append(attrs, "returned_date", in.ReturnedDate.Format(time.RFC3339))
	}

	n.log.InfoContext(ctx, "notification.borrowing_returned", attrs...)
	return nil
}

func (n *LogNotifier) simulate(ctx context.Context) error {
	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n.Fail {
		return ErrProviderDown
	}
	return nil
}
