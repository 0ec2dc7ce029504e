package book

import (
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/google/uuid"
)

type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn,omitempty"`
	Description     string    `json:"description,omitempty"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

var (
	ErrNotFound      = apperr.New(apperr.KindNotFound, "book_not_found", "Book not found")
	ErrHasBorrowings = apperr.New(apperr.KindConflict, "book_has_borrowings", "Book has borrowing history and cannot be deleted")
)

// Input is the payload for both create and update (full replacement).
type Input struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Author      string `json:"author" validate:"notblank,max=100"`
	ISBN        string `json:"isbn" validate:"max=50"`
	Description string `json:"description" validate:"max=1000"`
	TotalCopies int    `json:"totalCopies" validate:"min=1"`
}

// Normalize trims the free-text fields in place.
func (in *Input) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Description = strings.TrimSpace(in.Description)
}

func New(in Input, now time.Time) Book {
	now = now.Truncate(time.Microsecond)
	return Book{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Description:     in.Description,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Apply replaces the editable fields and reconciles the available count
// against the new total.
func (b *Book) Apply(in Input, now time.Time) {
	b.AvailableCopies = ReconcileAvailable(b.AvailableCopies, b.TotalCopies, in.TotalCopies)
	b.Title = in.Title
	b.Author = in.Author
	b.ISBN = in.ISBN
	b.Description = in.Description
	b.TotalCopies = in.TotalCopies
	b.UpdatedAt = now.Truncate(time.Microsecond)
}

// Version identifies one representation of the book. Borrow and return
// change it through AvailableCopies without touching UpdatedAt. Timestamps
// count at microsecond precision, which is what TIMESTAMPTZ keeps.
func (b Book) Version() string {
	return b.ID + "-" + strconv.FormatInt(b.UpdatedAt.UnixMicro(), 36) + "-" + strconv.Itoa(b.AvailableCopies)
}

// ReconcileAvailable shifts available by the change in total copies.
// Shrinking below the borrowed count clamps at zero instead of failing,
// and the result never exceeds the new total.
func ReconcileAvailable(available, oldTotal, newTotal int) int {
	next := available + (newTotal - oldTotal)
	if next < 0 {
		next = 0
	}
	if next > newTotal {
		next = newTotal
	}
	return next
}

func (b Book) HasAvailableCopy() bool {
	return b.AvailableCopies >= 1
}

// TakeCopy reserves one copy for a new borrowing.
func (b *Book) TakeCopy() {
	if b.AvailableCopies > 0 {
		b.AvailableCopies--
	}
}

// ReturnCopy puts one copy back on the shelf, capped at TotalCopies.
func (b *Book) ReturnCopy() {
	if b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
}
