package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/qchemaxis/internal/models"
)

// ErrInvalidCredentials is the single answer for an unknown email, a wrong
// password, or an unusable stored hash.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator verifies a login credential and returns the matching user.
type Authenticator interface {
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)
}

// UserLookup is the slice of the credential store the authenticator needs.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	users  UserLookup
	hasher *PasswordHasher
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(users UserLookup, hasher *PasswordHasher) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, hasher: hasher}
}

// Authenticate verifies the email and password, returning the user if valid.
// Every credential failure wraps ErrInvalidCredentials; a corrupted stored
// hash additionally wraps ErrMalformedHash so callers can log it.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := a.hasher.Verify(credential, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
