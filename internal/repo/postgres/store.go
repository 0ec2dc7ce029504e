package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/geocoder89/libraryhub/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, prom *observability.Prom) *Store {
	return &Store{pool: pool, prom: prom}
}

func (s *Store) Repos() store.Repos {
	return reposFor(s.pool, s.prom)
}

func reposFor(db DBTX, prom *observability.Prom) store.Repos {
	return store.Repos{
		Books:      &BooksRepo{db: db, prom: prom},
		Borrowings: &BorrowingsRepo{db: db, prom: prom},
		Users:      &UsersRepo{db: db, prom: prom},
		Jobs:       &JobsRepo{db: db, prom: prom},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Storage("tx.begin", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = fn(ctx, reposFor(tx, s.prom))
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return apperr.Storage("tx.commit", err)
	}

	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observe(prom *observability.Prom, op string, fn func() error) error {
	return prom.ObserveDB(op, fn)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// constraintViolation reports the constraint name for a given SQLSTATE.
func constraintViolation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// escapeLike makes term a literal for ILIKE with the default escape char.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
