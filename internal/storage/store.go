// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/qchemaxis/internal/models"
)

// ErrDuplicate is returned when a write would violate username or email uniqueness.
var ErrDuplicate = errors.New("duplicate value violates unique constraint")

// ErrUserNotFound is returned by writes that require an existing user.
var ErrUserNotFound = errors.New("user not found")

// UserStore is the credential store used by the account and admin services.
// Lookups return (nil, nil) when nothing matches. Updates report whether a
// row was changed; a false result with a nil error means the user is absent.
type UserStore interface {
	// CreateUser persists a new user and populates user.ID.
	// Returns ErrDuplicate if the username or email is taken.
	CreateUser(ctx context.Context, user *models.User) error

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// ListUsers returns all users, newest first.
	ListUsers(ctx context.Context) ([]*models.User, error)
	CountUsers(ctx context.Context) (int, error)

	UpdateEmail(ctx context.Context, id int64, email string) (bool, error)
	UpdateUsername(ctx context.Context, id int64, username string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) (bool, error)
	UpdateLevel(ctx context.Context, id int64, level models.Level) (bool, error)

	// UpdatePreferences stores the onboarding answers and marks onboarding complete.
	UpdatePreferences(ctx context.Context, id int64, learningStyle string, interests []string, preferredMethod string) (bool, error)

	// DeleteUser removes the user's quiz results and then the user, atomically.
	// Returns false if no such user existed.
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

// QuizStore persists placement quiz results.
type QuizStore interface {
	// CreateQuizResult stores the result and sets the user's level to
	// result.Level in the same transaction. Returns ErrUserNotFound if the
	// user does not exist.
	CreateQuizResult(ctx context.Context, result *models.QuizResult) error

	// ListQuizResults returns the user's results, newest first. limit <= 0 means all.
	ListQuizResults(ctx context.Context, userID int64, limit int) ([]*models.QuizResult, error)

	UserQuizStats(ctx context.Context, userID int64) (*models.QuizStats, error)
}

// MaintenanceStore exposes the raw views the audit and cleanup tools need.
type MaintenanceStore interface {
	TableExists(ctx context.Context, name string) (bool, error)
	ListUserRecords(ctx context.Context) ([]models.UserRecord, error)
	FindDuplicateEmails(ctx context.Context) ([]models.DuplicateGroup, error)
	FindDuplicateUsernames(ctx context.Context) ([]models.DuplicateGroup, error)
	ListOrphanedQuizResults(ctx context.Context) ([]*models.QuizResult, error)
	QuizSummary(ctx context.Context) (*models.QuizSummary, error)
	Health(ctx context.Context) (*models.Health, error)

	// NormalizeUser sets a null or invalid level to Beginner and a null
	// onboarding flag to false, as requested.
	NormalizeUser(ctx context.Context, id int64, fixLevel, fixOnboarding bool) (bool, error)
	DeleteQuizResult(ctx context.Context, id int64) (bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) (bool, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

// Store combines every storage capability.
// This abstraction allows swapping storage backends without changing services.
type Store interface {
	UserStore
	QuizStore
	MaintenanceStore

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
