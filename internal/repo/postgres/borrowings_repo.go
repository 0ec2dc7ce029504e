package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type BorrowingsRepo struct {
	db   DBTX
	prom *observability.Prom
}

const borrowingColumns = `br.id, br.user_id, br.book_id, br.borrowed_date, br.due_date, br.returned_date, br.status`

const joinedBookColumns = `b.id, b.title, b.author, b.isbn, b.description, b.total_copies, b.available_copies, b.created_at, b.updated_at`

func borrowingDest(br *borrowing.Borrowing, status *string) []any {
	return []any{&br.ID, &br.UserID, &br.BookID, &br.BorrowedDate, &br.DueDate, &br.ReturnedDate, status}
}

func bookDest(b *book.Book) []any {
	return []any{&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Description, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt}
}

func (r *BorrowingsRepo) Create(ctx context.Context, br borrowing.Borrowing) error {
	op := "borrowings.create"

	err := observe(r.prom, op, func() error {
		_, err := r.db.Exec(ctx, `
		INSERT INTO borrowings (id, user_id, book_id, borrowed_date, due_date, returned_date, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, br.ID, br.UserID, br.BookID, br.BorrowedDate, br.DueDate, br.ReturnedDate, string(br.Status))
		return err
	})
	if err == nil {
		return nil
	}

	if name, ok := constraintViolation(err, "23505"); ok && name == "borrowings_outstanding_uniq" {
		return borrowing.ErrAlreadyBorrowed
	}
	if name, ok := constraintViolation(err, "23503"); ok {
		switch name {
		case "borrowings_book_id_fkey":
			return book.ErrNotFound
		case "borrowings_user_id_fkey":
			return user.ErrNotFound
		}
	}

	return apperr.Storage(op, err)
}

func (r *BorrowingsRepo) HasOutstanding(ctx context.Context, userID, bookID string) (bool, error) {
	op := "borrowings.has_outstanding"
	var exists bool

	err := observe(r.prom, op, func() error {
		return r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM borrowings
			WHERE user_id = $1 AND book_id = $2 AND status IN ('active', 'overdue')
		)`, userID, bookID).Scan(&exists)
	})
	if err != nil {
		return false, apperr.Storage(op, err)
	}

	return exists, nil
}

func (r *BorrowingsRepo) CountForBook(ctx context.Context, bookID string) (int, error) {
	op := "borrowings.count_for_book"
	var n int

	err := observe(r.prom, op, func() error {
		return r.db.QueryRow(ctx, `SELECT COUNT(*) FROM borrowings WHERE book_id = $1`, bookID).Scan(&n)
	})
	if err != nil {
		return 0, apperr.Storage(op, err)
	}

	return n, nil
}

// GetForUpdate filters by owner so another user's borrowing is not found.
func (r *BorrowingsRepo) GetForUpdate(ctx context.Context, id, userID string) (borrowing.Borrowing, error) {
	op := "borrowings.get_for_update"
	var br borrowing.Borrowing
	var status string

	err := observe(r.prom, op, func() error {
		return r.db.QueryRow(ctx, `
		SELECT `+borrowingColumns+`
		FROM borrowings br
		WHERE br.id = $1 AND br.user_id = $2
		FOR UPDATE
		`, id, userID).Scan(borrowingDest(&br, &status)...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return borrowing.Borrowing{}, borrowing.ErrNotFound
		}
		return borrowing.Borrowing{}, apperr.Storage(op, err)
	}

	br.Status = borrowing.Status(status)
	return br, nil
}

func (r *BorrowingsRepo) GetByID(ctx context.Context, id, userID string) (borrowing.Borrowing, error) {
	op := "borrowings.get_by_id"
	var br borrowing.Borrowing
	var bk book.Book
	var status string

	err := observe(r.prom, op, func() error {
		dest := append(borrowingDest(&br, &status), bookDest(&bk)...)
		return r.db.QueryRow(ctx, `
		SELECT `+borrowingColumns+`, `+joinedBookColumns+`
		FROM borrowings br
		JOIN books b ON b.id = br.book_id
		WHERE br.id = $1 AND br.user_id = $2
		`, id, userID).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return borrowing.Borrowing{}, borrowing.ErrNotFound
		}
		return borrowing.Borrowing{}, apperr.Storage(op, err)
	}

	br.Status = borrowing.Status(status)
	br.Book = &bk
	return br, nil
}

func (r *BorrowingsRepo) Update(ctx context.Context, br borrowing.Borrowing) error {
	op := "borrowings.update"
	var tag pgconn.CommandTag

	err := observe(r.prom, op, func() error {
		var err error
		tag, err = r.db.Exec(ctx, `
		UPDATE borrowings
		SET status = $2,
		    returned_date = $3
		WHERE id = $1
		`, br.ID, string(br.Status), br.ReturnedDate)
		return err
	})
	if err != nil {
		return apperr.Storage(op, err)
	}
	if tag.RowsAffected() == 0 {
		return borrowing.ErrNotFound
	}

	return nil
}

func (r *BorrowingsRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	op := "borrowings.mark_overdue"
	var n int64

	err := observe(r.prom, op, func() error {
		tag, err := r.db.Exec(ctx, `
		UPDATE borrowings
		SET status = 'overdue'
		WHERE status = 'active' AND due_date < $1
		`, now.UTC())
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, apperr.Storage(op, err)
	}

	return n, nil
}

func (r *BorrowingsRepo) ListByUser(ctx context.Context, userID string) ([]borrowing.Borrowing, error) {
	op := "borrowings.list_by_user"
	var rows pgx.Rows

	err := observe(r.prom, op, func() error {
		var err error
		rows, err = r.db.Query(ctx, `
		SELECT `+borrowingColumns+`, `+joinedBookColumns+`
		FROM borrowings br
		JOIN books b ON b.id = br.book_id
		WHERE br.user_id = $1
		ORDER BY br.borrowed_date DESC, br.id DESC
		`, userID)
		return err
	})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	out := make([]borrowing.Borrowing, 0)
	for rows.Next() {
		var br borrowing.Borrowing
		var bk book.Book
		var status string

		if err := rows.Scan(append(borrowingDest(&br, &status), bookDest(&bk)...)...); err != nil {
			return nil, apperr.Storage(op, err)
		}
		br.Status = borrowing.Status(status)
		br.Book = &bk
		out = append(out, br)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}

	return out, nil
}

func (r *BorrowingsRepo) ListAll(ctx context.Context) ([]borrowing.Borrowing, error) {
	op := "borrowings.list_all"
	var rows pgx.Rows

	err := observe(r.prom, op, func() error {
		var err error
		rows, err = r.db.Query(ctx, `
		SELECT `+borrowingColumns+`, `+joinedBookColumns+`,
		       u.id, u.name, u.email, u.role, u.created_at
		FROM borrowings br
		JOIN books b ON b.id = br.book_id
		JOIN users u ON u.id = br.user_id
		ORDER BY br.borrowed_date DESC, br.id DESC
		`)
		return err
	})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	out := make([]borrowing.Borrowing, 0)
	for rows.Next() {
		var br borrowing.Borrowing
		var bk book.Book
		var u user.Public
		var status string

		dest := append(borrowingDest(&br, &status), bookDest(&bk)...)
		dest = append(dest, &u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, apperr.Storage(op, err)
		}
		br.Status = borrowing.Status(status)
		br.Book = &bk
		br.User = &u
		out = append(out, br)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}

	return out, nil
}
