// Package circulation runs the borrowing workflow: borrow, return and the
// overdue sweep, keeping each book's availableCopies equal to its total minus
// the borrowings still out.
//
// Borrow and return run in one transaction that locks the book row, so
// concurrent requests for the same book are serialized by the store.
package circulation

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/libraryhub/internal/actorctx"
	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/domain/job"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/jobs"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/geocoder89/libraryhub/internal/store"
)

type Service struct {
	store          store.Store
	now            func() time.Time
	log            *slog.Logger
	prom           *observability.Prom
	jobMaxAttempts int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(p *observability.Prom) Option {
	return func(s *Service) { s.prom = p }
}

// WithJobMaxAttempts bounds delivery retries of the notices enqueued by
// borrow and return.
func WithJobMaxAttempts(n int) Option {
	return func(s *Service) { s.jobMaxAttempts = n }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Borrow lends one copy of bookID to userID.
func (s *Service) Borrow(ctx context.Context, bookID, userID string) (borrowing.Borrowing, error) {
	var created borrowing.Borrowing

	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		b, err := r.Books.GetForUpdate(ctx, bookID)
		if err != nil {
			return err
		}

		outstanding, err := r.Borrowings.HasOutstanding(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if outstanding {
			return borrowing.ErrAlreadyBorrowed
		}

		if !b.HasAvailableCopy() {
			return borrowing.ErrNoCopiesAvailable
		}

		br := borrowing.New(userID, bookID, s.now())
		if err := r.Borrowings.Create(ctx, br); err != nil {
			return err
		}

		b.TakeCopy()
		if err := r.Books.Update(ctx, b); err != nil {
			return err
		}

		if err := s.enqueueNotice(ctx, r, jobs.JobBorrowingReceipt, br, b); err != nil {
			return err
		}

		br.Book = &b
		created = br
		return nil
	})

	s.prom.ObserveBorrowing("borrow", err)
	if err != nil {
		return borrowing.Borrowing{}, err
	}

	s.log.InfoContext(ctx, "book borrowed",
		"borrowing_id", created.ID, "book_id", bookID, "user_id", userID,
		"available_copies", created.Book.AvailableCopies, "due_date", created.DueDate)

	return created, nil
}

// ReturnBook closes a borrowing owned by userID. A borrowing that belongs to
// someone else is reported as not found.
func (s *Service) ReturnBook(ctx context.Context, borrowingID, userID string) (borrowing.Borrowing, error) {
	var returned borrowing.Borrowing

	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		br, err := r.Borrowings.GetForUpdate(ctx, borrowingID, userID)
		if err != nil {
			return err
		}

		if err := br.MarkReturned(s.now()); err != nil {
			return err
		}
		if err := r.Borrowings.Update(ctx, br); err != nil {
			return err
		}

		b, err := r.Books.GetForUpdate(ctx, br.BookID)
		if err != nil {
			return err
		}

		// capped at totalCopies in case an edit clamped the count earlier
		b.ReturnCopy()
		if err := r.Books.Update(ctx, b); err != nil {
			return err
		}

		if err := s.enqueueNotice(ctx, r, jobs.JobBorrowingReturned, br, b); err != nil {
			return err
		}

		br.Book = &b
		returned = br
		return nil
	})

	s.prom.ObserveBorrowing("return", err)
	if err != nil {
		return borrowing.Borrowing{}, err
	}

	s.log.InfoContext(ctx, "book returned",
		"borrowing_id", returned.ID, "book_id", returned.BookID, "user_id", userID,
		"available_copies", returned.Book.AvailableCopies)

	return returned, nil
}

func (s *Service) enqueueNotice(ctx context.Context, r store.Repos, t jobs.JobType, br borrowing.Borrowing, b book.Book) error {
	u, err := r.Users.GetByID(ctx, br.UserID)
	if err != nil {
		return err
	}

	req, err := jobs.NewJob(t, noticePayload(ctx, br, b, u), s.jobMaxAttempts)
	if err != nil {
		return err
	}

	return r.Jobs.Enqueue(ctx, job.New(req, s.now()))
}

func noticePayload(ctx context.Context, br borrowing.Borrowing, b book.Book, u user.User) jobs.BorrowingNoticePayload {
	return jobs.BorrowingNoticePayload{
		BorrowingID:  br.ID,
		UserID:       u.ID,
		BookID:       b.ID,
		Email:        u.Email,
		Name:         u.Name,
		BookTitle:    b.Title,
		DueDate:      br.DueDate,
		ReturnedDate: br.ReturnedDate,
		RequestID:    actorctx.RequestIDFrom(ctx),
	}
}

// SweepOverdue relabels active borrowings past their due date. It never
// touches availableCopies. Failures are logged and reported as zero so the
// read that triggered the sweep still succeeds.
func (s *Service) SweepOverdue(ctx context.Context) int64 {
	n, err := s.store.Repos().Borrowings.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		s.log.WarnContext(ctx, "overdue sweep failed", "err", err)
		return 0
	}

	if n > 0 {
		s.prom.ObserveOverdue(n)
		s.log.InfoContext(ctx, "borrowings marked overdue", "count", n)
	}
	return n
}

// ListUserBorrowings sweeps first so the caller sees current status labels.
func (s *Service) ListUserBorrowings(ctx context.Context, userID string) ([]borrowing.Borrowing, error) {
	s.SweepOverdue(ctx)
	return s.store.Repos().Borrowings.ListByUser(ctx, userID)
}

// ListAllBorrowings is the admin view. It does not sweep, so labels can lag.
func (s *Service) ListAllBorrowings(ctx context.Context) ([]borrowing.Borrowing, error) {
	return s.store.Repos().Borrowings.ListAll(ctx)
}

func (s *Service) GetBorrowing(ctx context.Context, borrowingID, userID string) (borrowing.Borrowing, error) {
	return s.store.Repos().Borrowings.GetByID(ctx, borrowingID, userID)
}
