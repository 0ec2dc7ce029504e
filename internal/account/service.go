// Package account handles registration, credential checks and the admin
// user endpoints.
package account

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/store"
	"github.com/geocoder89/libraryhub/internal/validation"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

type Service struct {
	users  store.UserRepo
	hasher PasswordHasher
	now    func() time.Time
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(users store.UserRepo, hasher PasswordHasher, opts ...Option) *Service {
	s := &Service{
		users:  users,
		hasher: hasher,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashPassword and CheckPassword expose the hasher to callers outside the
// registration flow.
func (s *Service) HashPassword(plain string) (string, error) {
	return s.hasher.Hash(plain)
}

func (s *Service) CheckPassword(plain, hash string) bool {
	return s.hasher.Verify(hash, plain)
}

// Register creates a member account.
func (s *Service) Register(ctx context.Context, email, username, password string) (user.Public, error) {
	if err := validation.Registration(email, username, password); err != nil {
		return user.Public{}, apperr.Invalid(err)
	}

	u, err := s.create(ctx, username, email, password, user.RoleMember)
	if err != nil {
		return user.Public{}, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u.Public(), nil
}

// Login answers the same InvalidCredentials for an unknown email and for a
// wrong password, and spends a bcrypt compare in both cases.
func (s *Service) Login(ctx context.Context, email, password string) (user.Public, error) {
	if err := validation.Login(email, password); err != nil {
		return user.Public{}, apperr.Invalid(err)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.Verify(s.dummy(), password)
			return user.Public{}, user.ErrInvalidCredentials
		}
		return user.Public{}, err
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		return user.Public{}, user.ErrInvalidCredentials
	}

	return u.Public(), nil
}

func (s *Service) GetUser(ctx context.Context, id string) (user.Public, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.Public{}, err
	}
	return u.Public(), nil
}

func (s *Service) ListUsers(ctx context.Context) ([]user.Public, error) {
	list, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]user.Public, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out, nil
}

// CreateUser is the admin path; it may assign the admin role.
func (s *Service) CreateUser(ctx context.Context, req user.CreateRequest) (user.Public, error) {
	role := req.Role
	if role == "" {
		role = user.RoleMember
	}

	var roleErr error
	if role != user.RoleMember && role != user.RoleAdmin {
		roleErr = validation.Errors{{
			Field:   "role",
			Rule:    "oneof",
			Param:   user.RoleMember + " " + user.RoleAdmin,
			Message: "must be one of " + user.RoleMember + ", " + user.RoleAdmin,
		}}
	}

	if err := validation.Merge(validation.User(req.Name, req.Email), validation.Password(req.Password), roleErr); err != nil {
		return user.Public{}, apperr.Invalid(err)
	}

	u, err := s.create(ctx, req.Name, req.Email, req.Password, role)
	if err != nil {
		return user.Public{}, err
	}

	s.log.InfoContext(ctx, "user created by admin", "user_id", u.ID, "role", u.Role)
	return u.Public(), nil
}

// EnsureAdmin creates the configured admin when no account uses the email.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	if name == "" {
		name = "Administrator"
	}

	if _, err := s.CreateUser(ctx, user.CreateRequest{Name: name, Email: email, Password: password, Role: user.RoleAdmin}); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) create(ctx context.Context, name, email, password, role string) (user.User, error) {
	email = user.NormalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return user.User{}, user.ErrEmailTaken
	} else if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user.User{}, apperr.Internal("hash password", err)
	}

	u := user.New(name, email, hash, role, s.now().UTC())

	// a concurrent registration can still win; the unique index reports it
	if err := s.users.Create(ctx, u); err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-password-for-timing")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
