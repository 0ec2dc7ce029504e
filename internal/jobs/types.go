package jobs

type JobType string

const (
	JobBorrowingReceipt  JobType = "borrowing.receipt"
	JobBorrowingReturned JobType = "borrowing.returned"
)

// IsValid reports whether the job type is a known constant.
func (t JobType) IsValid() bool {
	switch t {
	case JobBorrowingReceipt, JobBorrowingReturned:
		return true
	default:
		return false
	}
}
