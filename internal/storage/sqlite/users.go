package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/storage"
)

// Databases created by earlier versions of the server declare created_at and
// timestamp as DATETIME, which the driver would hand back as time.Time or
// text. The select lists normalize them to unix seconds, and reduce an
// onboarding flag that is not 0 or 1 to NULL.
var userColumns = `id, username, email, password_hash, level, learning_style,
	interests, preferred_method, ` + flagColumn("onboarding_completed") + `,
	` + epochColumn("created_at")

// epochColumn selects column as integer unix seconds, whatever it is stored as.
// A qualified column ("qr.timestamp") is aliased to its bare name.
func epochColumn(column string) string {
	alias := column[strings.LastIndex(column, ".")+1:]
	return `CASE typeof(` + column + `)
		WHEN 'integer' THEN ` + column + `
		WHEN 'real' THEN CAST(` + column + ` AS INTEGER)
		WHEN 'text' THEN CAST(strftime('%s', ` + column + `) AS INTEGER)
	END AS ` + alias
}

// flagColumn selects a 0/1 column, or NULL when it holds anything else.
func flagColumn(column string) string {
	return `CASE WHEN typeof(` + column + `) = 'integer' AND ` + column + ` IN (0, 1)
		THEN ` + column + ` END AS ` + column
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser reads one users row. Nullable columns fall back to zero values
// and an unreadable interests value is treated as empty.
func scanUser(row rowScanner) (*models.User, error) {
	var (
		rec  models.UserRecord
		user models.User
	)
	err := row.Scan(
		&rec.ID,
		&rec.Username,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Level,
		&rec.LearningStyle,
		&rec.Interests,
		&rec.PreferredMethod,
		&rec.OnboardingCompleted,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.ID = rec.ID
	user.Username = rec.Username.String
	user.Email = rec.Email.String
	user.PasswordHash = rec.PasswordHash.String
	user.Level = models.Level(rec.Level.String)
	if !user.Level.Valid() {
		user.Level = models.LevelBeginner
	}
	user.LearningStyle = rec.LearningStyle.String
	user.PreferredMethod = rec.PreferredMethod.String
	user.Interests, _ = models.DecodeInterests(rec.Interests.String)
	user.OnboardingCompleted = rec.OnboardingCompleted.Int64 != 0
	user.CreatedAt = rec.CreatedAt.Int64

	return &user, nil
}

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}
	if user.Level == "" {
		user.Level = models.LevelBeginner
	}

	var interests sql.NullString
	if user.Interests != nil {
		encoded, err := models.EncodeInterests(user.Interests)
		if err != nil {
			return fmt.Errorf("failed to encode interests: %w", err)
		}
		interests = sql.NullString{String: encoded, Valid: true}
	}

	query := `
		INSERT INTO users (username, email, password_hash, level, learning_style,
			interests, preferred_method, onboarding_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Level),
		nullString(user.LearningStyle),
		interests,
		nullString(user.PreferredMethod),
		boolToInt(user.OnboardingCompleted),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user: %w", storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByUsername retrieves a user by their username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

// getUser looks up the lowest-id user whose column equals value.
// column is always a constant supplied by this package.
func (s *SQLiteStore) getUser(ctx context.Context, column string, value any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ? ORDER BY id LIMIT 1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil // User not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}

// UsernameExists reports whether any user has the given username.
func (s *SQLiteStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// ListUsers returns all users ordered newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY 10 DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// CountUsers returns the number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM users")
}

// UpdateEmail changes a user's email.
func (s *SQLiteStore) UpdateEmail(ctx context.Context, id int64, email string) (bool, error) {
	return s.updateUser(ctx, "UPDATE users SET email = ? WHERE id = ?", email, id)
}

// UpdateUsername changes a user's username.
func (s *SQLiteStore) UpdateUsername(ctx context.Context, id int64, username string) (bool, error) {
	return s.updateUser(ctx, "UPDATE users SET username = ? WHERE id = ?", username, id)
}

// UpdatePasswordHash replaces a user's password hash.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) (bool, error) {
	return s.updateUser(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
}

// UpdateLevel sets a user's level.
func (s *SQLiteStore) UpdateLevel(ctx context.Context, id int64, level models.Level) (bool, error) {
	return s.updateUser(ctx, "UPDATE users SET level = ? WHERE id = ?", string(level), id)
}

// UpdatePreferences stores onboarding answers and marks onboarding complete.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, id int64, learningStyle string, interests []string, preferredMethod string) (bool, error) {
	encoded, err := models.EncodeInterests(interests)
	if err != nil {
		return false, fmt.Errorf("failed to encode interests: %w", err)
	}

	return s.updateUser(ctx, `
		UPDATE users
		SET learning_style = ?, interests = ?, preferred_method = ?, onboarding_completed = 1
		WHERE id = ?`,
		learningStyle, encoded, preferredMethod, id,
	)
}

func (s *SQLiteStore) updateUser(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("failed to update user: %w", storage.ErrDuplicate)
		}
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	return rowsChanged(res)
}

// DeleteUser removes a user and their quiz results in one transaction.
// Quiz results go first so a failure never leaves orphans behind.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM quiz_results WHERE user_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete quiz results: %w", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		deleted, err = rowsChanged(res)
		if err == nil && !deleted {
			return errNoSuchUser
		}
		return err
	})
	if errors.Is(err, errNoSuchUser) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// errNoSuchUser rolls back a cascade delete whose user row is absent.
var errNoSuchUser = errors.New("no such user")

func (s *SQLiteStore) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
