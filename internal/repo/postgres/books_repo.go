package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type BooksRepo struct {
	db   DBTX
	prom *observability.Prom
}

const bookColumns = `id, title, author, isbn, description, total_copies, available_copies, created_at, updated_at`

func scanBook(row pgx.Row, b *book.Book) error {
	return row.Scan(
		&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Description,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt,
	)
}

func (r *BooksRepo) get(ctx context.Context, op, query, id string) (book.Book, error) {
	var b book.Book

	err := observe(r.prom, op, func() error {
		return scanBook(r.db.QueryRow(ctx, query, id), &b)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return book.Book{}, book.ErrNotFound
		}
		return book.Book{}, apperr.Storage(op, err)
	}

	return b, nil
}

func (r *BooksRepo) GetByID(ctx context.Context, id string) (book.Book, error) {
	return r.get(ctx, "books.get_by_id", `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
}

// GetForUpdate holds the row lock until the surrounding transaction ends.
func (r *BooksRepo) GetForUpdate(ctx context.Context, id string) (book.Book, error) {
	return r.get(ctx, "books.get_for_update", `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id)
}

func (r *BooksRepo) List(ctx context.Context, search *string) (books []book.Book, err error) {
	term := ""
	if search != nil {
		term = strings.TrimSpace(*search)
	}

	op := "books.list"
	var rows pgx.Rows

	err = observe(r.prom, op, func() error {
		var qerr error
		rows, qerr = r.db.Query(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE $1 = ''
		   OR title  ILIKE '%' || $2 || '%'
		   OR author ILIKE '%' || $2 || '%'
		   OR isbn   ILIKE '%' || $2 || '%'
		ORDER BY title ASC, id ASC
		`, term, escapeLike(term))
		return qerr
	})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	books = make([]book.Book, 0)
	for rows.Next() {
		var b book.Book
		if err := scanBook(rows, &b); err != nil {
			return nil, apperr.Storage(op, err)
		}
		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}

	return books, nil
}

func (r *BooksRepo) Create(ctx context.Context, b book.Book) error {
	op := "books.create"

	err := observe(r.prom, op, func() error {
		_, err := r.db.Exec(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, b.ID, b.Title, b.Author, b.ISBN, b.Description, b.TotalCopies, b.AvailableCopies, b.CreatedAt, b.UpdatedAt)
		return err
	})

	return apperr.Storage(op, err)
}

func (r *BooksRepo) Update(ctx context.Context, b book.Book) error {
	op := "books.update"
	var tag pgconn.CommandTag

	err := observe(r.prom, op, func() error {
		var err error
		tag, err = r.db.Exec(ctx, `
		UPDATE books
		SET title = $2,
		    author = $3,
		    isbn = $4,
		    description = $5,
		    total_copies = $6,
		    available_copies = $7,
		    updated_at = $8
		WHERE id = $1
		`, b.ID, b.Title, b.Author, b.ISBN, b.Description, b.TotalCopies, b.AvailableCopies, b.UpdatedAt)
		return err
	})
	if err != nil {
		return apperr.Storage(op, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}

	return nil
}

func (r *BooksRepo) Delete(ctx context.Context, id string) error {
	op := "books.delete"
	var tag pgconn.CommandTag

	err := observe(r.prom, op, func() error {
		var err error
		tag, err = r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
		return err
	})
	if err != nil {
		// ON DELETE RESTRICT from borrowings
		if _, ok := constraintViolation(err, "23503"); ok {
			return book.ErrHasBorrowings
		}
		return apperr.Storage(op, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}

	return nil
}
