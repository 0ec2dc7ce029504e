package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/libraryhub/internal/domain/user"
)

type UsersRepo struct {
	s    *Store
	inTx bool
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	return r.s.write(r.inTx, func() error {
		for _, existing := range r.s.users {
			if existing.Email == u.Email {
				return user.ErrEmailTaken
			}
		}
		r.s.users[u.ID] = u
		return nil
	})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	email = user.NormalizeEmail(email)

	r.s.rlock(r.inTx)
	defer r.s.runlock(r.inTx)

	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	r.s.rlock(r.inTx)
	out := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	r.s.runlock(r.inTx)

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
