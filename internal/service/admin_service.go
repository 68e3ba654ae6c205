package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmynk/qchemaxis/internal/apperr"
	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/storage"
	"github.com/mmynk/qchemaxis/pkg/logging"
)

// UserDetail is a user together with their quiz statistics.
type UserDetail struct {
	User  models.PublicUser `json:"user"`
	Stats models.QuizStats  `json:"stats"`
}

// SystemStats is the admin dashboard summary.
type SystemStats struct {
	TotalUsers     int            `json:"totalUsers"`
	DatabaseHealth *models.Health `json:"databaseHealth"`
}

// AdminStore is the storage the admin service needs.
type AdminStore interface {
	storage.UserStore
	UserQuizStats(ctx context.Context, userID int64) (*models.QuizStats, error)
	Health(ctx context.Context) (*models.Health, error)
}

// AdminService implements user management for administrators.
type AdminService struct {
	store  AdminStore
	hasher *auth.PasswordHasher
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(store AdminStore, hasher *auth.PasswordHasher, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  store,
		hasher: hasher,
		logger: logger.With("service", "admin"),
	}
}

// ListUsers returns every user, newest first, without password hashes.
func (s *AdminService) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// GetUser returns a user with their quiz statistics.
func (s *AdminService) GetUser(ctx context.Context, id int64) (*UserDetail, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}

	stats, err := s.UserStats(ctx, id)
	if err != nil {
		return nil, err
	}

	return &UserDetail{User: user.Public(), Stats: *stats}, nil
}

// UserStats returns quiz statistics for a user id. Unknown ids get zeros.
func (s *AdminService) UserStats(ctx context.Context, id int64) (*models.QuizStats, error) {
	stats, err := s.store.UserQuizStats(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return stats, nil
}

// SystemStats returns the user count and the store health report.
func (s *AdminService) SystemStats(ctx context.Context) (*SystemStats, error) {
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	health, err := s.Health(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemStats{TotalUsers: total, DatabaseHealth: health}, nil
}

// Health reports store consistency.
func (s *AdminService) Health(ctx context.Context) (*models.Health, error) {
	h, err := s.store.Health(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return h, nil
}

// UpdateEmail changes a user's email after validating its format.
func (s *AdminService) UpdateEmail(ctx context.Context, id int64, email string) error {
	if email == "" {
		return apperr.Validation("Email is required")
	}
	if err := validateEmail(email); err != nil {
		return err
	}

	updated, err := s.store.UpdateEmail(ctx, id, email)
	if err := s.updateResult(updated, err, "Email already exists"); err != nil {
		return err
	}

	s.logger.Info("Admin updated email", "user_id", id, "email", logging.MaskEmail(email))
	return nil
}

// UpdateUsername changes a user's username after validating its length.
func (s *AdminService) UpdateUsername(ctx context.Context, id int64, username string) error {
	if username == "" {
		return apperr.Validation("Username is required")
	}
	if err := validateUsername(username); err != nil {
		return err
	}

	updated, err := s.store.UpdateUsername(ctx, id, username)
	if err := s.updateResult(updated, err, "Username already exists"); err != nil {
		return err
	}

	s.logger.Info("Admin updated username", "user_id", id)
	return nil
}

// UpdatePassword re-hashes and stores a new password.
func (s *AdminService) UpdatePassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		return apperr.Validation("Password is required")
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Internal(err)
	}

	updated, err := s.store.UpdatePasswordHash(ctx, id, hash)
	if err := s.updateResult(updated, err, ""); err != nil {
		return err
	}

	s.logger.Info("Admin updated password", "user_id", id)
	return nil
}

// UpdateLevel sets a user's level.
func (s *AdminService) UpdateLevel(ctx context.Context, id int64, level models.Level) error {
	if level == "" {
		return apperr.Validation("Level is required")
	}
	if err := validateLevel(level); err != nil {
		return err
	}

	updated, err := s.store.UpdateLevel(ctx, id, level)
	if err := s.updateResult(updated, err, ""); err != nil {
		return err
	}

	s.logger.Info("Admin updated level", "user_id", id, "level", level)
	return nil
}

// DeleteUser removes a user and their quiz results. Admins cannot delete
// their own account; that check happens before the store is touched.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, targetID int64) error {
	if actorID == targetID {
		return apperr.Forbidden("Cannot delete your own account through admin panel")
	}

	deleted, err := s.store.DeleteUser(ctx, targetID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !deleted {
		return apperr.NotFound("User not found")
	}

	s.logger.Info("Admin deleted user", "actor_id", actorID, "user_id", targetID)
	return nil
}

func (s *AdminService) updateResult(updated bool, err error, duplicateMessage string) error {
	if err != nil {
		if duplicateMessage != "" && errors.Is(err, storage.ErrDuplicate) {
			return apperr.Wrap(apperr.KindConflict, duplicateMessage, err)
		}
		return apperr.Internal(err)
	}
	if !updated {
		return apperr.NotFound("User not found")
	}
	return nil
}
