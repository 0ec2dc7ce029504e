package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/domain/user"
)

type BorrowingsRepo struct {
	s    *Store
	inTx bool
}

func (r *BorrowingsRepo) Create(ctx context.Context, b borrowing.Borrowing) error {
	return r.s.write(r.inTx, func() error {
		if _, ok := r.s.books[b.BookID]; !ok {
			return book.ErrNotFound
		}
		if _, ok := r.s.users[b.UserID]; !ok {
			return user.ErrNotFound
		}
		// partial unique index on outstanding (user_id, book_id)
		for _, existing := range r.s.borrowings {
			if existing.UserID == b.UserID && existing.BookID == b.BookID && existing.Status.Outstanding() {
				return borrowing.ErrAlreadyBorrowed
			}
		}
		r.s.borrowings[b.ID] = strip(b)
		return nil
	})
}

func (r *BorrowingsRepo) HasOutstanding(ctx context.Context, userID, bookID string) (bool, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	for _, b := range r.s.borrowings {
		if b.UserID == userID && b.BookID == bookID && b.Status.Outstanding() {
			return true, nil
		}
	}
	return false, nil
}

func (r *BorrowingsRepo) CountForBook(ctx context.Context, bookID string) (int, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	n := 0
	for _, b := range r.s.borrowings {
		if b.BookID == bookID {
			n++
		}
	}
	return n, nil
}

func (r *BorrowingsRepo) GetForUpdate(ctx context.Context, id, userID string) (borrowing.Borrowing, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	b, ok := r.s.borrowings[id]
	if !ok || b.UserID != userID {
		return borrowing.Borrowing{}, borrowing.ErrNotFound
	}
	return b, nil
}

func (r *BorrowingsRepo) GetByID(ctx context.Context, id, userID string) (borrowing.Borrowing, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	b, ok := r.s.borrowings[id]
	if !ok || b.UserID != userID {
		return borrowing.Borrowing{}, borrowing.ErrNotFound
	}
	return r.withBook(b), nil
}

func (r *BorrowingsRepo) Update(ctx context.Context, b borrowing.Borrowing) error {
	return r.s.write(r.inTx, func() error {
		if _, ok := r.s.borrowings[b.ID]; !ok {
			return borrowing.ErrNotFound
		}
		r.s.borrowings[b.ID] = strip(b)
		return nil
	})
}

func (r *BorrowingsRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64

	err := r.s.write(r.inTx, func() error {
		for id, b := range r.s.borrowings {
			if b.IsPastDue(now) {
				b.Status = borrowing.StatusOverdue
				r.s.borrowings[id] = b
				n++
			}
		}
		return nil
	})

	return n, err
}

func (r *BorrowingsRepo) ListByUser(ctx context.Context, userID string) ([]borrowing.Borrowing, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	out := make([]borrowing.Borrowing, 0)
	for _, b := range r.s.borrowings {
		if b.UserID == userID {
			out = append(out, r.withBook(b))
		}
	}
	newestFirst(out)

	return out, nil
}

func (r *BorrowingsRepo) ListAll(ctx context.Context) ([]borrowing.Borrowing, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	out := make([]borrowing.Borrowing, 0, len(r.s.borrowings))
	for _, b := range r.s.borrowings {
		b = r.withBook(b)
		if u, ok := r.s.users[b.UserID]; ok {
			pub := u.Public()
			b.User = &pub
		}
		out = append(out, b)
	}
	newestFirst(out)

	return out, nil
}

// withBook must be called with mu held.
func (r *BorrowingsRepo) withBook(b borrowing.Borrowing) borrowing.Borrowing {
	if bk, ok := r.s.books[b.BookID]; ok {
		b.Book = &bk
	}
	return b
}

func strip(b borrowing.Borrowing) borrowing.Borrowing {
	b.Book = nil
	b.User = nil
	return b
}

func newestFirst(list []borrowing.Borrowing) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].BorrowedDate.Equal(list[j].BorrowedDate) {
			return list[i].BorrowedDate.After(list[j].BorrowedDate)
		}
		return list[i].ID > list[j].ID
	})
}
