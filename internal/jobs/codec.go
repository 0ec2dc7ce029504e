package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/geocoder89/libraryhub/internal/domain/job"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch payload.(type) {
	case BorrowingNoticePayload, *BorrowingNoticePayload:
	default:
		return nil, ErrPayloadTypeMismatch
	}

	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the typed payload for j.Type.
func DecodePayload(j job.Job) (JobType, any, error) {
	t := JobType(j.Type)
	if !t.IsValid() {
		return t, nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return t, nil, ErrInvalidJobPayload
	}

	switch t {
	case JobBorrowingReceipt, JobBorrowingReturned:
		var p BorrowingNoticePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return t, nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if err := ValidatePayload(t, p); err != nil {
			return t, nil, err
		}
		return t, p, nil

	default:
		return t, nil, ErrInvalidJobType
	}
}

// NewJob encodes payload and builds a pending outbox row for it.
func NewJob(t JobType, payload any, maxAttempts int) (job.CreateRequest, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return job.CreateRequest{}, err
	}

	return job.CreateRequest{
		Type:        string(t),
		Payload:     b,
		MaxAttempts: maxAttempts,
	}, nil
}
