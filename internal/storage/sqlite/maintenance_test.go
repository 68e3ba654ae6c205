package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/qchemaxis/internal/models"
)

// legacySchema is the schema older servers created, minus the unique
// constraints so duplicates and nulls can be seeded. Dates are DATETIME
// text, as SQLite's CURRENT_TIMESTAMP writes them.
const legacySchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT,
	email TEXT,
	password_hash TEXT,
	level TEXT DEFAULT 'Beginner',
	learning_style TEXT,
	interests TEXT,
	preferred_method TEXT,
	onboarding_completed INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE quiz_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	score INTEGER NOT NULL,
	level TEXT NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id)
);`

func newLegacyStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(legacySchema)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	store, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store *SQLiteStore, query string, args ...any) {
	t.Helper()
	_, err := store.db.Exec(query, args...)
	require.NoError(t, err)
}

func TestMigrationsKeepLegacyUsersTable(t *testing.T) {
	store := newLegacyStore(t)
	ctx := context.Background()

	for _, table := range []string{"users", "quiz_results"} {
		ok, err := store.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}

	ok, err := store.TableExists(ctx, "bills")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLegacyDatetimeColumns(t *testing.T) {
	store := newLegacyStore(t)
	ctx := context.Background()

	seed(t, store, `INSERT INTO users (username, email, password_hash, created_at) VALUES
		('ann', 'a@x.io', '$2a$10$h', '2024-01-01 00:00:00')`)
	seed(t, store, `INSERT INTO users (username, email, password_hash, onboarding_completed) VALUES
		('bob', 'b@x.io', '$2a$10$h', 'yes')`)
	seed(t, store, `INSERT INTO quiz_results (user_id, score, level, timestamp) VALUES
		(1, 10, 'Intermediate', '2024-01-02 10:00:00'),
		(1, 12, 'Advanced', 1704200000),
		(42, 3, 'Beginner', '2024-01-03 10:00:00')`)

	ann, err := store.GetUserByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	require.NotNil(t, ann)
	assert.Equal(t, int64(1704067200), ann.CreatedAt)

	bob, err := store.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob)
	assert.Positive(t, bob.CreatedAt, "CURRENT_TIMESTAMP default is readable")
	assert.False(t, bob.OnboardingCompleted)

	records, err := store.ListUserRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, sql.NullInt64{Int64: 1704067200, Valid: true}, records[0].CreatedAt)
	assert.False(t, records[1].OnboardingCompleted.Valid, "a non 0/1 flag reads as NULL")

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username, "newest first")

	results, err := store.ListQuizResults(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1704200000), results[0].Timestamp)
	assert.Equal(t, int64(1704189600), results[1].Timestamp)

	orphans, err := store.ListOrphanedQuizResults(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, int64(1704276000), orphans[0].Timestamp)
}

func TestFindDuplicates(t *testing.T) {
	store := newLegacyStore(t)
	ctx := context.Background()

	seed(t, store, `INSERT INTO users (username, email, password_hash) VALUES
		('ann', 'a@x.io', '$2a$10$h'),
		('ann', 'b@x.io', '$2a$10$h'),
		('cid', 'a@x.io', '$2a$10$h'),
		('dee', 'd@x.io', '$2a$10$h'),
		('ann', 'e@x.io', '$2a$10$h'),
		(NULL, NULL, '$2a$10$h'),
		(NULL, NULL, '$2a$10$h')`)

	emails, err := store.FindDuplicateEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DuplicateGroup{{Value: "a@x.io", IDs: []int64{1, 3}}}, emails)

	usernames, err := store.FindDuplicateUsernames(ctx)
	require.NoError(t, err)
	require.Len(t, usernames, 1)
	assert.Equal(t, int64(1), usernames[0].Keep())
	assert.Equal(t, []int64{2, 5}, usernames[0].Extra())
}

func TestOrphansAndHealth(t *testing.T) {
	store := newLegacyStore(t)
	ctx := context.Background()

	h, err := store.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.HealthHealthy, h.Overall)

	seed(t, store, `INSERT INTO users (username, email, password_hash) VALUES ('ann', 'a@x.io', '$2a$10$h')`)
	seed(t, store, `INSERT INTO quiz_results (user_id, score, level, timestamp) VALUES
		(1, 10, 'Intermediate', 1), (42, 3, 'Beginner', 2), (43, 20, 'Advanced', 3)`)

	orphans, err := store.ListOrphanedQuizResults(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, int64(42), orphans[0].UserID)

	h, err = store.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Users.Count)
	assert.Equal(t, 3, h.QuizResults.Count)
	assert.Equal(t, models.HealthCheck{Count: 2, Status: models.StatusWarning}, h.OrphanedData)
	assert.Equal(t, models.HealthNeedsAttention, h.Overall)

	summary, err := store.QuizSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalResults)
	assert.Equal(t, 3, summary.UniqueUsers)
	assert.Equal(t, 11.0, summary.AverageScore)
	assert.Equal(t, 3, summary.MinScore)
	assert.Equal(t, 20, summary.MaxScore)
	assert.Equal(t, map[string]int{"Beginner": 1, "Intermediate": 1, "Advanced": 1}, summary.ByLevel)

	deleted, err := store.DeleteQuizResult(ctx, orphans[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestNormalizeUser(t *testing.T) {
	store := newLegacyStore(t)
	ctx := context.Background()

	seed(t, store, `INSERT INTO users (username, email, password_hash, level, onboarding_completed)
		VALUES ('ann', 'a@x.io', '$2a$10$h', 'Expert', NULL)`)

	records, err := store.ListUserRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].OnboardingCompleted.Valid)

	changed, err := store.NormalizeUser(ctx, 1, true, true)
	require.NoError(t, err)
	assert.True(t, changed)

	records, err = store.ListUserRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Beginner", records[0].Level.String)
	assert.Equal(t, sql.NullInt64{Int64: 0, Valid: true}, records[0].OnboardingCompleted)

	changed, err = store.NormalizeUser(ctx, 1, false, false)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHealthReportsQueryFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(4))
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table: quiz_results"))
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("no such table: quiz_results"))

	h, err := NewWithDB(db).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, h.Users.Status)
	assert.Equal(t, models.StatusError, h.QuizResults.Status)
	assert.Contains(t, h.QuizResults.Error, "no such table")
	assert.Equal(t, models.HealthNeedsAttention, h.Overall)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM quiz_results").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM users").WithArgs(int64(7)).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	deleted, err := NewWithDB(db).DeleteUser(context.Background(), 7)
	assert.Error(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
