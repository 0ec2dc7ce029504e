// Package catalog owns the book inventory: lookups, search and the admin
// edits that keep availableCopies consistent with totalCopies.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/security"
	"github.com/geocoder89/libraryhub/internal/store"
	"github.com/geocoder89/libraryhub/internal/validation"
)

type Sanitizer interface {
	Sanitize(raw string) string
}

type Service struct {
	store     store.Store
	sanitizer Sanitizer
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithSanitizer(san Sanitizer) Option {
	return func(s *Service) { s.sanitizer = san }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		sanitizer: security.NewTextSanitizer(),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetBook(ctx context.Context, id string) (book.Book, error) {
	return s.store.Repos().Books.GetByID(ctx, id)
}

// ListBooks returns every book ordered by title, or only those whose title,
// author or isbn contain search (case-insensitive).
func (s *Service) ListBooks(ctx context.Context, search *string) ([]book.Book, error) {
	return s.store.Repos().Books.List(ctx, search)
}

func (s *Service) prepare(in book.Input) (book.Input, error) {
	in.Normalize()
	in.Description = s.sanitizer.Sanitize(in.Description)

	if err := validation.Book(in); err != nil {
		return in, apperr.Invalid(err)
	}
	return in, nil
}

func (s *Service) CreateBook(ctx context.Context, in book.Input) (book.Book, error) {
	in, err := s.prepare(in)
	if err != nil {
		return book.Book{}, err
	}

	b := book.New(in, s.now().UTC())

	if err := s.store.Repos().Books.Create(ctx, b); err != nil {
		return book.Book{}, err
	}

	s.log.InfoContext(ctx, "book created", "book_id", b.ID, "total_copies", b.TotalCopies)
	return b, nil
}

// UpdateBook replaces the editable fields. Shrinking totalCopies below the
// number on loan clamps availableCopies at zero rather than failing.
func (s *Service) UpdateBook(ctx context.Context, id string, in book.Input) (book.Book, error) {
	if _, err := s.store.Repos().Books.GetByID(ctx, id); err != nil {
		return book.Book{}, err
	}

	in, err := s.prepare(in)
	if err != nil {
		return book.Book{}, err
	}

	var updated book.Book

	err = s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		b, err := r.Books.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		oldTotal, oldAvailable := b.TotalCopies, b.AvailableCopies
		b.Apply(in, s.now().UTC())

		if oldAvailable+(b.TotalCopies-oldTotal) < 0 {
			s.log.WarnContext(ctx, "total copies reduced below copies on loan",
				"book_id", id, "old_total", oldTotal, "new_total", b.TotalCopies, "available_before", oldAvailable)
		}

		if err := r.Books.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return book.Book{}, err
	}

	return updated, nil
}

// DeleteBook refuses books with any borrowing history, outstanding or not.
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	if _, err := s.store.Repos().Books.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		if _, err := r.Books.GetForUpdate(ctx, id); err != nil {
			return err
		}

		n, err := r.Borrowings.CountForBook(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return book.ErrHasBorrowings
		}

		return r.Books.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "book deleted", "book_id", id)
	return nil
}
