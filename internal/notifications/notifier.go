// Package notifications delivers borrowing notices to members.
package notifications

import (
	"context"
	"time"
)

// BorrowingNotice is what a member is told about one borrowing.
type BorrowingNotice struct {
	BorrowingID  string
	Email        string
	Name         string
	BookTitle    string
	DueDate      time.Time
	ReturnedDate *time.Time
}

type Notifier interface {
	SendBorrowingReceipt(ctx context.Context, n BorrowingNotice) error
	SendBorrowingReturned(ctx context.Context, n BorrowingNotice) error
}
