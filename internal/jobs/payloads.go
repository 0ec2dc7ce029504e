package jobs

import "time"

// BorrowingNoticePayload carries everything a notifier needs so the worker
// does not read the catalog again.
type BorrowingNoticePayload struct {
	BorrowingID  string     `json:"borrowingId"`
	UserID       string     `json:"userId"`
	BookID       string     `json:"bookId"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	BookTitle    string     `json:"bookTitle"`
	DueDate      time.Time  `json:"dueDate"`
	ReturnedDate *time.Time `json:"returnedDate,omitempty"`
	RequestID    string     `json:"requestId,omitempty"`
}
