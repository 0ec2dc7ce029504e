package memory

import (
	"context"

	"github.com/geocoder89/libraryhub/internal/domain/job"
)

type JobsRepo struct {
	s    *Store
	inTx bool
}

func (r *JobsRepo) Enqueue(ctx context.Context, j job.Job) error {
	return r.s.write(r.inTx, func() error {
		r.s.jobs = append(r.s.jobs, j)
		return nil
	})
}
