package users

import (
	"context"
	"errors"
)

var (
	// ErrEmailTaken: signup with an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrNotFound: no account for the given email or id.
	ErrNotFound = errors.New("user not found")
)

// Repository port (interface untuk account persistence)
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
}
