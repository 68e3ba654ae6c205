package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "qchemaxis-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func mustCreateUser(t *testing.T, store *SQLiteStore, username, email string) *models.User {
	t.Helper()
	user := models.NewUser(username, email, "$2a$10$abcdefghijklmnopqrstuv")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return user
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateUser assigns ID and defaults", func(t *testing.T) {
		user := mustCreateUser(t, store, "alice", "alice@example.com")

		if user.ID == 0 {
			t.Error("Expected user ID to be assigned")
		}
		if user.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		got, err := store.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if got == nil {
			t.Fatal("Expected user, got nil")
		}
		if got.Level != models.LevelBeginner {
			t.Errorf("Level = %q, want Beginner", got.Level)
		}
		if got.OnboardingCompleted {
			t.Error("Expected onboarding to be pending")
		}
	})

	t.Run("CreateUser rejects duplicate email", func(t *testing.T) {
		mustCreateUser(t, store, "bob", "bob@example.com")

		dup := models.NewUser("bobby", "bob@example.com", "$2a$10$x")
		err := store.CreateUser(ctx, dup)
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Fatalf("CreateUser error = %v, want ErrDuplicate", err)
		}
	})

	t.Run("CreateUser rejects duplicate username", func(t *testing.T) {
		mustCreateUser(t, store, "carol", "carol@example.com")

		dup := models.NewUser("carol", "carol2@example.com", "$2a$10$x")
		if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
			t.Fatalf("CreateUser error = %v, want ErrDuplicate", err)
		}
	})

	t.Run("lookups return nil for absent users", func(t *testing.T) {
		byEmail, err := store.GetUserByEmail(ctx, "nobody@example.com")
		if err != nil || byEmail != nil {
			t.Errorf("GetUserByEmail = %v, %v; want nil, nil", byEmail, err)
		}
		byID, err := store.GetUserByID(ctx, 99999)
		if err != nil || byID != nil {
			t.Errorf("GetUserByID = %v, %v; want nil, nil", byID, err)
		}
		exists, err := store.UsernameExists(ctx, "nobody")
		if err != nil || exists {
			t.Errorf("UsernameExists = %v, %v; want false, nil", exists, err)
		}
	})

	t.Run("UpdateEmail reports duplicates and missing users", func(t *testing.T) {
		dave := mustCreateUser(t, store, "dave", "dave@example.com")

		if _, err := store.UpdateEmail(ctx, dave.ID, "alice@example.com"); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("UpdateEmail error = %v, want ErrDuplicate", err)
		}

		updated, err := store.UpdateEmail(ctx, 99999, "ghost@example.com")
		if err != nil || updated {
			t.Errorf("UpdateEmail on missing user = %v, %v; want false, nil", updated, err)
		}

		updated, err = store.UpdateEmail(ctx, dave.ID, "david@example.com")
		if err != nil || !updated {
			t.Fatalf("UpdateEmail = %v, %v; want true, nil", updated, err)
		}
		got, _ := store.GetUserByEmail(ctx, "david@example.com")
		if got == nil || got.ID != dave.ID {
			t.Errorf("Expected dave under new email, got %+v", got)
		}
	})

	t.Run("UpdatePreferences completes onboarding", func(t *testing.T) {
		erin := mustCreateUser(t, store, "erin", "erin@example.com")

		updated, err := store.UpdatePreferences(ctx, erin.ID, "visual", []string{"organic", "acids"}, "videos")
		if err != nil || !updated {
			t.Fatalf("UpdatePreferences = %v, %v", updated, err)
		}

		got, _ := store.GetUserByID(ctx, erin.ID)
		if !got.OnboardingCompleted {
			t.Error("Expected onboarding to be completed")
		}
		if len(got.Interests) != 2 || got.Interests[0] != "organic" {
			t.Errorf("Interests = %v, want [organic acids]", got.Interests)
		}
		if got.LearningStyle != "visual" || got.PreferredMethod != "videos" {
			t.Errorf("Preferences = %q/%q", got.LearningStyle, got.PreferredMethod)
		}
	})
}

func TestQuizResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, store, "frank", "frank@example.com")

	results := []*models.QuizResult{
		{UserID: user.ID, Score: 16, Level: models.LevelAdvanced, Timestamp: 100},
		{UserID: user.ID, Score: 4, Level: models.LevelBeginner, Timestamp: 200},
	}
	for _, r := range results {
		if err := store.CreateQuizResult(ctx, r); err != nil {
			t.Fatalf("CreateQuizResult failed: %v", err)
		}
	}

	t.Run("latest submission sets level even when lower", func(t *testing.T) {
		got, _ := store.GetUserByID(ctx, user.ID)
		if got.Level != models.LevelBeginner {
			t.Errorf("Level = %q, want Beginner", got.Level)
		}
	})

	t.Run("history is newest first", func(t *testing.T) {
		history, err := store.ListQuizResults(ctx, user.ID, 0)
		if err != nil {
			t.Fatalf("ListQuizResults failed: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("len(history) = %d, want 2", len(history))
		}
		if history[0].Score != 4 || history[1].Score != 16 {
			t.Errorf("history order = [%d %d], want [4 16]", history[0].Score, history[1].Score)
		}

		limited, _ := store.ListQuizResults(ctx, user.ID, 1)
		if len(limited) != 1 {
			t.Errorf("len(limited) = %d, want 1", len(limited))
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.UserQuizStats(ctx, user.ID)
		if err != nil {
			t.Fatalf("UserQuizStats failed: %v", err)
		}
		if stats.QuizzesTaken != 2 || stats.BestScore != 16 || stats.AverageScore != 10 {
			t.Errorf("stats = %+v", stats)
		}

		empty, err := store.UserQuizStats(ctx, 99999)
		if err != nil {
			t.Fatalf("UserQuizStats failed: %v", err)
		}
		if *empty != (models.QuizStats{}) {
			t.Errorf("stats for unknown user = %+v, want zero", empty)
		}
	})
}

func TestDeleteUserCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	keep := mustCreateUser(t, store, "grace", "grace@example.com")
	gone := mustCreateUser(t, store, "heidi", "heidi@example.com")

	for _, id := range []int64{keep.ID, gone.ID, gone.ID} {
		if err := store.CreateQuizResult(ctx, &models.QuizResult{UserID: id, Score: 5, Level: models.LevelBeginner}); err != nil {
			t.Fatalf("CreateQuizResult failed: %v", err)
		}
	}

	deleted, err := store.DeleteUser(ctx, gone.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteUser = %v, %v; want true, nil", deleted, err)
	}

	if u, _ := store.GetUserByID(ctx, gone.ID); u != nil {
		t.Error("Expected user to be deleted")
	}
	if rs, _ := store.ListQuizResults(ctx, gone.ID, 0); len(rs) != 0 {
		t.Errorf("Expected quiz results to be deleted, found %d", len(rs))
	}
	if rs, _ := store.ListQuizResults(ctx, keep.ID, 0); len(rs) != 1 {
		t.Errorf("Expected other user's results to remain, found %d", len(rs))
	}

	deleted, err = store.DeleteUser(ctx, gone.ID)
	if err != nil || deleted {
		t.Errorf("second DeleteUser = %v, %v; want false, nil", deleted, err)
	}
}
