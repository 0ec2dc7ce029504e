// Package store declares the persistence contracts the services consume.
// internal/repo/postgres and internal/repo/memory implement them.
package store

import (
	"context"
	"time"

	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/domain/job"
	"github.com/geocoder89/libraryhub/internal/domain/user"
)

type BookRepo interface {
	GetByID(ctx context.Context, id string) (book.Book, error)
	// GetForUpdate reads the book and, inside a transaction, holds its row
	// lock until commit.
	GetForUpdate(ctx context.Context, id string) (book.Book, error)
	// List returns books ordered by title; a nil or blank search matches all.
	List(ctx context.Context, search *string) ([]book.Book, error)
	Create(ctx context.Context, b book.Book) error
	Update(ctx context.Context, b book.Book) error
	Delete(ctx context.Context, id string) error
}

type BorrowingRepo interface {
	Create(ctx context.Context, b borrowing.Borrowing) error
	HasOutstanding(ctx context.Context, userID, bookID string) (bool, error)
	// CountForBook counts every borrowing of the book, returned ones included.
	CountForBook(ctx context.Context, bookID string) (int, error)
	// GetForUpdate locks the borrowing row when it belongs to userID.
	GetForUpdate(ctx context.Context, id, userID string) (borrowing.Borrowing, error)
	// GetByID is the owner view; it joins the book.
	GetByID(ctx context.Context, id, userID string) (borrowing.Borrowing, error)
	Update(ctx context.Context, b borrowing.Borrowing) error
	// MarkOverdue flips every active borrowing due before now and returns
	// how many rows changed.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]borrowing.Borrowing, error)
	ListAll(ctx context.Context) ([]borrowing.Borrowing, error)
}

type UserRepo interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
}

type JobRepo interface {
	Enqueue(ctx context.Context, j job.Job) error
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos struct {
	Books      BookRepo
	Borrowings BorrowingRepo
	Users      UserRepo
	Jobs       JobRepo
}

type Store interface {
	Repos() Repos
	// InTx runs fn with repositories bound to a single transaction. The
	// writes made through them commit together when fn returns nil and are
	// discarded otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Ping(ctx context.Context) error
}
