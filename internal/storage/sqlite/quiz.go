package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/storage"
)

// CreateQuizResult stores a quiz result and sets the user's level to the
// result's level. The level is overwritten even when it goes down.
// Returns storage.ErrUserNotFound, storing nothing, if the user is gone.
func (s *SQLiteStore) CreateQuizResult(ctx context.Context, result *models.QuizResult) error {
	if result.Timestamp == 0 {
		result.Timestamp = time.Now().Unix()
	}

	return s.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO quiz_results (user_id, score, level, timestamp) VALUES (?, ?, ?, ?)",
			result.UserID, result.Score, string(result.Level), result.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert quiz result: %w", err)
		}
		if result.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read quiz result id: %w", err)
		}

		res, err = tx.ExecContext(ctx,
			"UPDATE users SET level = ? WHERE id = ?",
			string(result.Level), result.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to update user level: %w", err)
		}
		updated, err := rowsChanged(res)
		if err != nil {
			return err
		}
		if !updated {
			return storage.ErrUserNotFound
		}
		return nil
	})
}

// ListQuizResults returns a user's quiz results, newest first.
// A non-positive limit returns all of them.
func (s *SQLiteStore) ListQuizResults(ctx context.Context, userID int64, limit int) ([]*models.QuizResult, error) {
	query := `
		SELECT id, user_id, score, level, ` + epochColumn("timestamp") + `
		FROM quiz_results
		WHERE user_id = ?
		ORDER BY 5 DESC, id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryQuizResults(ctx, query, args...)
}

// UserQuizStats summarizes a user's submissions. A user with no results
// gets zero values.
func (s *SQLiteStore) UserQuizStats(ctx context.Context, userID int64) (*models.QuizStats, error) {
	stats := &models.QuizStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(ROUND(AVG(score), 2), 0), COALESCE(MAX(score), 0)
		FROM quiz_results
		WHERE user_id = ?`,
		userID,
	).Scan(&stats.QuizzesTaken, &stats.AverageScore, &stats.BestScore)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz stats: %w", err)
	}
	return stats, nil
}

// DeleteQuizResult removes a single quiz result.
func (s *SQLiteStore) DeleteQuizResult(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM quiz_results WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete quiz result: %w", err)
	}
	return rowsChanged(res)
}

func (s *SQLiteStore) queryQuizResults(ctx context.Context, query string, args ...any) ([]*models.QuizResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz results: %w", err)
	}
	defer rows.Close()

	var results []*models.QuizResult
	for rows.Next() {
		r := &models.QuizResult{}
		var (
			level     sql.NullString
			timestamp sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Score, &level, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan quiz result: %w", err)
		}
		r.Level = models.Level(level.String)
		r.Timestamp = timestamp.Int64
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quiz results: %w", err)
	}

	return results, nil
}
