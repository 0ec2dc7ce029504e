package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/geocoder89/libraryhub/internal/domain/book"
)

type BooksRepo struct {
	s    *Store
	inTx bool
}

func (r *BooksRepo) GetByID(ctx context.Context, id string) (book.Book, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	b, ok := r.s.books[id]
	if !ok {
		return book.Book{}, book.ErrNotFound
	}
	return b, nil
}

// GetForUpdate needs no extra locking: transactions already hold txMu.
func (r *BooksRepo) GetForUpdate(ctx context.Context, id string) (book.Book, error) {
	return r.GetByID(ctx, id)
}

func (r *BooksRepo) List(ctx context.Context, search *string) ([]book.Book, error) {
	term := ""
	if search != nil {
		term = strings.ToLower(strings.TrimSpace(*search))
	}

	r.s.rlock(r.inTx)
	out := make([]book.Book, 0, len(r.s.books))
	for _, b := range r.s.books {
		if term == "" || matches(b, term) {
			out = append(out, b)
		}
	}
	r.s.runlock(r.inTx)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func matches(b book.Book, term string) bool {
	return strings.Contains(strings.ToLower(b.Title), term) ||
		strings.Contains(strings.ToLower(b.Author), term) ||
		strings.Contains(strings.ToLower(b.ISBN), term)
}

func (r *BooksRepo) Create(ctx context.Context, b book.Book) error {
	return r.s.write(r.inTx, func() error {
		r.s.books[b.ID] = b
		return nil
	})
}

func (r *BooksRepo) Update(ctx context.Context, b book.Book) error {
	return r.s.write(r.inTx, func() error {
		if _, ok := r.s.books[b.ID]; !ok {
			return book.ErrNotFound
		}
		r.s.books[b.ID] = b
		return nil
	})
}

// Delete behaves like the ON DELETE RESTRICT foreign key.
func (r *BooksRepo) Delete(ctx context.Context, id string) error {
	return r.s.write(r.inTx, func() error {
		if _, ok := r.s.books[id]; !ok {
			return book.ErrNotFound
		}
		for _, br := range r.s.borrowings {
			if br.BookID == id {
				return book.ErrHasBorrowings
			}
		}
		delete(r.s.books, id)
		return nil
	})
}
