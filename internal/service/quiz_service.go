package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmynk/qchemaxis/internal/apperr"
	"github.com/mmynk/qchemaxis/internal/calculator"
	"github.com/mmynk/qchemaxis/internal/metrics"
	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/storage"
)

// QuestionView is a quiz question as shown to learners, without its answer.
type QuestionView struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// SubmitResult is the outcome of a quiz submission.
type SubmitResult struct {
	Score          int          `json:"score"`
	Level          models.Level `json:"level"`
	TotalQuestions int          `json:"totalQuestions"`
	MaxScore       int          `json:"maxScore"`
}

// QuizService serves the placement quiz.
type QuizService struct {
	store     storage.QuizStore
	questions []calculator.Question
	metrics   *metrics.Domain
	logger    *slog.Logger
}

// NewQuizService creates a quiz service over the standard question bank.
func NewQuizService(store storage.QuizStore, m *metrics.Domain, logger *slog.Logger) *QuizService {
	return &QuizService{
		store:     store,
		questions: calculator.Questions,
		metrics:   m,
		logger:    logger.With("service", "quiz"),
	}
}

// Questions returns the question bank with answers and weights removed.
func (s *QuizService) Questions() []QuestionView {
	views := make([]QuestionView, len(s.questions))
	for i, q := range s.questions {
		views[i] = QuestionView{ID: q.ID, Question: q.Prompt, Options: q.Options}
	}
	return views
}

// Submit scores the answers, records the result and moves the user to the
// resulting level, up or down.
func (s *QuizService) Submit(ctx context.Context, userID int64, answers map[int]string) (*SubmitResult, error) {
	if answers == nil {
		return nil, apperr.Validation("Invalid answers format")
	}

	score := calculator.Score(s.questions, answers)
	level := calculator.Classify(score)

	result := &models.QuizResult{UserID: userID, Score: score, Level: level}
	if err := s.store.CreateQuizResult(ctx, result); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		s.logger.Error("Failed to save quiz result", "user_id", userID, "error", err)
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to save quiz result", err)
	}

	s.metrics.QuizSubmitted(string(level))
	s.logger.Info("Quiz submitted", "user_id", userID, "score", score, "level", level)

	return &SubmitResult{
		Score:          score,
		Level:          level,
		TotalQuestions: len(s.questions),
		MaxScore:       calculator.MaxScore(s.questions),
	}, nil
}

// History returns all of the user's results, newest first.
func (s *QuizService) History(ctx context.Context, userID int64) ([]*models.QuizResult, error) {
	results, err := s.store.ListQuizResults(ctx, userID, 0)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if results == nil {
		results = []*models.QuizResult{}
	}
	return results, nil
}
