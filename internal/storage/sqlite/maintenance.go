package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/qchemaxis/internal/models"
)

// TableExists reports whether a table with the given name exists.
func (s *SQLiteStore) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)", name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return exists, nil
}

// ListUserRecords returns every users row with nulls preserved, ordered by id.
func (s *SQLiteStore) ListUserRecords(ctx context.Context) ([]models.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user records: %w", err)
	}
	defer rows.Close()

	var records []models.UserRecord
	for rows.Next() {
		var rec models.UserRecord
		if err := rows.Scan(
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
		); err != nil {
			return nil, fmt.Errorf("failed to scan user record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user records: %w", err)
	}

	return records, nil
}

// FindDuplicateEmails groups users that share an email address.
func (s *SQLiteStore) FindDuplicateEmails(ctx context.Context) ([]models.DuplicateGroup, error) {
	return s.findDuplicates(ctx, "email")
}

// FindDuplicateUsernames groups users that share a username.
func (s *SQLiteStore) FindDuplicateUsernames(ctx context.Context) ([]models.DuplicateGroup, error) {
	return s.findDuplicates(ctx, "username")
}

// findDuplicates returns groups of ids sharing the same non-null column
// value, ids ascending within each group. column is a package constant.
func (s *SQLiteStore) findDuplicates(ctx context.Context, column string) ([]models.DuplicateGroup, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s, id FROM users
		WHERE %[1]s IN (
			SELECT %[1]s FROM users
			WHERE %[1]s IS NOT NULL
			GROUP BY %[1]s
			HAVING COUNT(*) > 1
		)
		ORDER BY %[1]s, id`, column)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate %s: %w", column, err)
	}
	defer rows.Close()

	var groups []models.DuplicateGroup
	for rows.Next() {
		var (
			value string
			id    int64
		)
		if err := rows.Scan(&value, &id); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate %s: %w", column, err)
		}
		if n := len(groups); n > 0 && groups[n-1].Value == value {
			groups[n-1].IDs = append(groups[n-1].IDs, id)
			continue
		}
		groups = append(groups, models.DuplicateGroup{Value: value, IDs: []int64{id}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate %s: %w", column, err)
	}

	return groups, nil
}

// ListOrphanedQuizResults returns quiz results whose user no longer exists.
func (s *SQLiteStore) ListOrphanedQuizResults(ctx context.Context) ([]*models.QuizResult, error) {
	return s.queryQuizResults(ctx, `
		SELECT qr.id, qr.user_id, qr.score, qr.level, `+epochColumn("qr.timestamp")+`
		FROM quiz_results qr
		LEFT JOIN users u ON qr.user_id = u.id
		WHERE u.id IS NULL
		ORDER BY qr.id`)
}

// QuizSummary aggregates all quiz results.
func (s *SQLiteStore) QuizSummary(ctx context.Context) (*models.QuizSummary, error) {
	summary := &models.QuizSummary{ByLevel: map[string]int{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(ROUND(AVG(score), 2), 0),
			COALESCE(MIN(score), 0), COALESCE(MAX(score), 0)
		FROM quiz_results`,
	).Scan(&summary.TotalResults, &summary.UniqueUsers, &summary.AverageScore, &summary.MinScore, &summary.MaxScore)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize quiz results: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT level, COUNT(*) FROM quiz_results GROUP BY level")
	if err != nil {
		return nil, fmt.Errorf("failed to count quiz levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			level sql.NullString
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan quiz level: %w", err)
		}
		summary.ByLevel[level.String] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quiz levels: %w", err)
	}

	return summary, nil
}

// Health counts users, quiz results and orphaned results. A failing
// sub-check is reported with status ERROR instead of failing the call.
func (s *SQLiteStore) Health(ctx context.Context) (*models.Health, error) {
	check := func(query string, warnIfPositive bool) models.HealthCheck {
		n, err := s.count(ctx, query)
		if err != nil {
			return models.HealthCheck{Status: models.StatusError, Error: err.Error()}
		}
		if warnIfPositive && n > 0 {
			return models.HealthCheck{Count: n, Status: models.StatusWarning}
		}
		return models.HealthCheck{Count: n, Status: models.StatusOK}
	}

	h := &models.Health{
		Users:       check("SELECT COUNT(*) FROM users", false),
		QuizResults: check("SELECT COUNT(*) FROM quiz_results", false),
		OrphanedData: check(`
			SELECT COUNT(*) FROM quiz_results qr
			LEFT JOIN users u ON qr.user_id = u.id
			WHERE u.id IS NULL`, true),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	h.Finalize()

	return h, nil
}

// NormalizeUser resets a missing or invalid level to Beginner and a missing
// onboarding flag to 0.
func (s *SQLiteStore) NormalizeUser(ctx context.Context, id int64, fixLevel, fixOnboarding bool) (bool, error) {
	var sets []string
	if fixLevel {
		sets = append(sets, "level = '"+string(models.LevelBeginner)+"'")
	}
	if fixOnboarding {
		sets = append(sets, "onboarding_completed = 0")
	}
	if len(sets) == 0 {
		return false, nil
	}

	return s.updateUser(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", id)
}
