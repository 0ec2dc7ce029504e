package borrowing

import (
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
	StatusOverdue  Status = "overdue"
)

// LoanPeriod is fixed; there is no renewal.
const LoanPeriod = 14 * 24 * time.Hour

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusReturned, StatusOverdue:
		return true
	default:
		return false
	}
}

// Outstanding reports whether a borrowing in this status still holds a copy.
func (s Status) Outstanding() bool {
	return s == StatusActive || s == StatusOverdue
}

type Borrowing struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	BookID       string       `json:"bookId"`
	BorrowedDate time.Time    `json:"borrowedDate"`
	DueDate      time.Time    `json:"dueDate"`
	ReturnedDate *time.Time   `json:"returnedDate,omitempty"`
	Status       Status       `json:"status"`
	Book         *book.Book   `json:"book,omitempty"`
	User         *user.Public `json:"user,omitempty"`
}

var (
	ErrNotFound          = apperr.New(apperr.KindNotFound, "borrowing_not_found", "Borrowing not found")
	ErrAlreadyBorrowed   = apperr.New(apperr.KindConflict, "already_borrowed", "You have already borrowed this book.")
	ErrAlreadyReturned   = apperr.New(apperr.KindConflict, "already_returned", "This book has already been returned.")
	ErrNoCopiesAvailable = apperr.New(apperr.KindUnavailable, "no_copies_available", "No copies of this book are available.")
)

func New(userID, bookID string, now time.Time) Borrowing {
	now = now.UTC()

	return Borrowing{
		ID:           uuid.NewString(),
		UserID:       userID,
		BookID:       bookID,
		BorrowedDate: now,
		DueDate:      now.Add(LoanPeriod),
		Status:       StatusActive,
	}
}

// IsPastDue reports whether an active borrowing should be relabelled overdue.
func (b Borrowing) IsPastDue(now time.Time) bool {
	return b.Status == StatusActive && b.DueDate.Before(now)
}

// MarkReturned moves the borrowing to its terminal state.
func (b *Borrowing) MarkReturned(now time.Time) error {
	if b.Status == StatusReturned {
		return ErrAlreadyReturned
	}

	at := now.UTC()
	b.Status = StatusReturned
	b.ReturnedDate = &at
	return nil
}
