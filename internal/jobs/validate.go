package jobs

import "strings"

// ValidatePayload performs minimal validation on payloads before they are
// written or after they are decoded.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	var p BorrowingNoticePayload
	switch v := payload.(type) {
	case BorrowingNoticePayload:
		p = v
	case *BorrowingNoticePayload:
		if v == nil {
			return ErrInvalidJobPayload
		}
		p = *v
	default:
		return ErrPayloadTypeMismatch
	}

	if trim(p.BorrowingID) == "" || trim(p.UserID) == "" || trim(p.BookID) == "" {
		return ErrInvalidJobPayload
	}
	if t == JobBorrowingReturned && p.ReturnedDate == nil {
		return ErrInvalidJobPayload
	}

	return nil
}
