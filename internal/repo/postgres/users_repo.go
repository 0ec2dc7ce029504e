package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/jackc/pgx/v5"
)

type UsersRepo struct {
	db   DBTX
	prom *observability.Prom
}

const userColumns = `id, name, email, password_hash, role, created_at`

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	op := "users.create"

	err := observe(r.prom, op, func() error {
		_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
		`, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return apperr.Storage(op, err)
	}

	return nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, where, arg string) (user.User, error) {
	var u user.User

	err := observe(r.prom, op, func() error {
		return r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, apperr.Storage(op, err)
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", "id = $1", id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", "email = $1", user.NormalizeEmail(email))
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	op := "users.list"
	var rows pgx.Rows

	err := observe(r.prom, op, func() error {
		var err error
		rows, err = r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
		return err
	})
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}

	return out, nil
}
