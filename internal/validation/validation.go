// Package validation holds the pure input-shape checks. Nothing in here does
// I/O; failures come back as an Errors value.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// Errors is a list of field failures that also satisfies error.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range e {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return sf.Name
			}
			return name
		})

		// notblank rejects empty and whitespace-only strings.
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			f := fl.Field()
			if f.Kind() != reflect.String {
				return true
			}
			return strings.TrimSpace(f.String()) != ""
		})

		validate = v
	})

	return validate
}

func check(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	out := make(Errors, 0, len(ve))
	seen := make(map[string]bool, len(ve))

	for _, fe := range ve {
		field := fe.Field()
		// one failure per field is enough for a human
		if seen[field] {
			continue
		}
		seen[field] = true

		out = append(out, FieldError{
			Field:   field,
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe.Tag(), fe.Param(), fe.Kind()),
		})
	}

	return out
}

// Book checks a create or update payload.
func Book(in book.Input) error {
	return check(in)
}

// Registration checks the self-service sign-up fields.
func Registration(email, username, password string) error {
	return check(user.RegisterRequest{Email: email, Username: username, Password: password})
}

// Login only requires both fields. Wrong combinations are rejected by the
// authenticator, not here.
func Login(email, password string) error {
	return check(user.LoginRequest{Email: email, Password: password})
}

type userFields struct {
	Name  string `json:"name" validate:"notblank,max=100"`
	Email string `json:"email" validate:"notblank,contains=@,max=255"`
}

func User(name, email string) error {
	return check(userFields{Name: name, Email: email})
}

type passwordField struct {
	Password string `json:"password" validate:"notblank,min=6"`
}

func Password(password string) error {
	return check(passwordField{Password: password})
}

// Merge flattens several results into one, nil when all passed.
func Merge(errs ...error) error {
	var out Errors
	for _, err := range errs {
		if err == nil {
			continue
		}
		var fe Errors
		if errors.As(err, &fe) {
			out = append(out, fe...)
			continue
		}
		return err
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func message(rule, param string, kind reflect.Kind) string {
	switch rule {
	case "required", "notblank":
		return "is required"
	case "contains":
		return fmt.Sprintf("must contain %q", param)
	case "min":
		if kind == reflect.String {
			return "must be at least " + param + " characters"
		}
		return "must be at least " + param
	case "max":
		if kind == reflect.String {
			return "must be at most " + param + " characters"
		}
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
