// Package memory is a map-backed implementation of store.Store. It backs the
// service tests and APP_STORE=memory local runs.
package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/domain/job"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/store"
)

// Store serializes every write and every repository read outside a
// transaction through txMu, so a transaction sees no interleaved writers, the
// book "row lock" is implicit and nobody reads a write that may still roll
// back. mu guards the maps themselves.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	books      map[string]book.Book
	borrowings map[string]borrowing.Borrowing
	users      map[string]user.User
	jobs       []job.Job
}

func NewStore() *Store {
	return &Store{
		books:      make(map[string]book.Book),
		borrowings: make(map[string]borrowing.Borrowing),
		users:      make(map[string]user.User),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Repos() store.Repos {
	return s.repos(false)
}

func (s *Store) repos(inTx bool) store.Repos {
	return store.Repos{
		Books:      &BooksRepo{s: s, inTx: inTx},
		Borrowings: &BorrowingsRepo{s: s, inTx: inTx},
		Users:      &UsersRepo{s: s, inTx: inTx},
		Jobs:       &JobsRepo{s: s, inTx: inTx},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.snapshot()

	if err := fn(ctx, s.repos(true)); err != nil {
		s.restore(snap)
		return err
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Jobs returns a copy of the outbox in enqueue order.
func (s *Store) Jobs() []job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

type snapshot struct {
	books      map[string]book.Book
	borrowings map[string]borrowing.Borrowing
	users      map[string]user.User
	jobs       []job.Job
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		books:      make(map[string]book.Book, len(s.books)),
		borrowings: make(map[string]borrowing.Borrowing, len(s.borrowings)),
		users:      make(map[string]user.User, len(s.users)),
		jobs:       make([]job.Job, len(s.jobs)),
	}
	for k, v := range s.books {
		snap.books[k] = v
	}
	for k, v := range s.borrowings {
		snap.borrowings[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	copy(snap.jobs, s.jobs)

	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books = snap.books
	s.borrowings = snap.borrowings
	s.users = snap.users
	s.jobs = snap.jobs
}

// rlock and runlock bracket a repository read. Outside a transaction the
// reader waits for txMu, so it only sees committed state.
func (s *Store) rlock(inTx bool) {
	if !inTx {
		s.txMu.Lock()
	}
	s.mu.RLock()
}

func (s *Store) runlock(inTx bool) {
	s.mu.RUnlock()
	if !inTx {
		s.txMu.Unlock()
	}
}

// write runs fn under the data lock. Outside a transaction it also takes
// txMu so a concurrent rollback cannot discard it.
func (s *Store) write(inTx bool, fn func() error) error {
	if !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn()
}
