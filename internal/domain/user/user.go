package user

import (
	"strings"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/google/uuid"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public is what leaves the service boundary.
type Public struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

var (
	ErrNotFound           = apperr.New(apperr.KindNotFound, "user_not_found", "User not found")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "email_taken", "Email is already in use.")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid_credentials", "Email or password is incorrect.")
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"notblank,contains=@,max=255"`
	Username string `json:"username" validate:"notblank,min=3,max=100"`
	Password string `json:"password" validate:"notblank,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"notblank"`
	Password string `json:"password" validate:"notblank"`
}

// CreateRequest is the admin path for provisioning accounts.
type CreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func New(name, email, passwordHash, role string, now time.Time) User {
	if role == "" {
		role = RoleMember
	}

	return User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
	}
}
