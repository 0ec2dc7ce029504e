package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/repo/memory"
)

var fixedNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	svc := NewService(st,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	return svc, st
}

func TestCreateBook(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	b, err := svc.CreateBook(ctx, book.Input{
		Title:       "  Dune ",
		Author:      "Frank Herbert",
		Description: "<p>Spice</p> must flow",
		TotalCopies: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if b.ID == "" || b.Title != "Dune" {
		t.Fatalf("unexpected book: %+v", b)
	}
	if b.AvailableCopies != 3 {
		t.Fatalf("availableCopies = %d, want 3", b.AvailableCopies)
	}
	if b.Description != "Spice must flow" {
		t.Fatalf("description not sanitized: %q", b.Description)
	}
	if !b.CreatedAt.Equal(fixedNow) || !b.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("timestamps not set from clock: %+v", b)
	}

	got, err := svc.GetBook(ctx, b.ID)
	if err != nil || got.ID != b.ID {
		t.Fatalf("get after create: %v %+v", err, got)
	}
}

func TestCreateBook_Validation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateBook(context.Background(), book.Input{Title: " ", Author: "x", TotalCopies: 0})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.GetBook(context.Background(), "missing"); !errors.Is(err, book.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateBook_ReconcilesCopies(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		borrowed      int
		newTotal      int
		wantAvailable int
	}{
		{"grow", 2, 1, 4, 3},
		{"shrink within free copies", 5, 1, 3, 2},
		{"shrink below borrowed clamps at zero", 5, 3, 1, 0},
		{"unchanged", 2, 2, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newService(t)
			ctx := context.Background()

			b, err := svc.CreateBook(ctx, book.Input{Title: "T", Author: "A", TotalCopies: tt.total})
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			// simulate loans directly through the store
			b.AvailableCopies -= tt.borrowed
			if err := st.Repos().Books.Update(ctx, b); err != nil {
				t.Fatalf("seed loans: %v", err)
			}

			later := fixedNow.Add(time.Hour)
			svc.now = func() time.Time { return later }

			updated, err := svc.UpdateBook(ctx, b.ID, book.Input{Title: "T2", Author: "A", TotalCopies: tt.newTotal})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.AvailableCopies != tt.wantAvailable {
				t.Fatalf("availableCopies = %d, want %d", updated.AvailableCopies, tt.wantAvailable)
			}
			if updated.Title != "T2" || !updated.UpdatedAt.Equal(later) {
				t.Fatalf("fields not applied: %+v", updated)
			}
		})
	}
}

func TestUpdateBook_NotFoundBeforeValidation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.UpdateBook(context.Background(), "missing", book.Input{})
	if !errors.Is(err, book.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBook(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	free, _ := svc.CreateBook(ctx, book.Input{Title: "Free", Author: "A", TotalCopies: 1})
	lent, _ := svc.CreateBook(ctx, book.Input{Title: "Lent", Author: "A", TotalCopies: 1})

	u := user.New("Ada", "ada@example.com", "h", user.RoleMember, fixedNow)
	_ = st.Repos().Users.Create(ctx, u)

	br := borrowing.New(u.ID, lent.ID, fixedNow)
	_ = br.MarkReturned(fixedNow.Add(time.Hour))
	if err := st.Repos().Borrowings.Create(ctx, br); err != nil {
		t.Fatalf("seed borrowing: %v", err)
	}

	if err := svc.DeleteBook(ctx, free.ID); err != nil {
		t.Fatalf("delete free book: %v", err)
	}
	if _, err := svc.GetBook(ctx, free.ID); !errors.Is(err, book.ErrNotFound) {
		t.Fatalf("book still present after delete: %v", err)
	}

	err := svc.DeleteBook(ctx, lent.ID)
	if !errors.Is(err, book.ErrHasBorrowings) {
		t.Fatalf("expected ErrHasBorrowings even for returned history, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict kind, got %v", apperr.KindOf(err))
	}

	if err := svc.DeleteBook(ctx, "missing"); !errors.Is(err, book.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListBooks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, in := range []book.Input{
		{Title: "Snow Crash", Author: "Neal Stephenson", TotalCopies: 1},
		{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", TotalCopies: 1},
		{Title: "Cryptonomicon", Author: "Neal Stephenson", TotalCopies: 1},
	} {
		if _, err := svc.CreateBook(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		name   string
		search *string
		want   []string
	}{
		{"no filter", nil, []string{"Cryptonomicon", "Dune", "Snow Crash"}},
		{"blank filter", strPtr("  "), []string{"Cryptonomicon", "Dune", "Snow Crash"}},
		{"author case-insensitive", strPtr("STEPHENSON"), []string{"Cryptonomicon", "Snow Crash"}},
		{"isbn substring", strPtr("0441"), []string{"Dune"}},
		{"no match", strPtr("tolkien"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListBooks(ctx, tt.search)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d books, want %d", len(got), len(tt.want))
			}
			for i, title := range tt.want {
				if got[i].Title != title {
					t.Fatalf("position %d: got %q, want %q", i, got[i].Title, title)
				}
			}
		})
	}
}

func strPtr(s string) *string { return &s }
