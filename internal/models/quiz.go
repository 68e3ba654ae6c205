package models

import (
	"encoding/json"
	"time"
)

// QuizResult is one placement quiz submission. Results are never mutated.
// UserID references a User by application convention only; the store has no
// foreign key, so a result can outlive its user (an orphan).
type QuizResult struct {
	ID        int64
	UserID    int64
	Score     int
	Level     Level
	Timestamp int64
}

// MarshalJSON renders the timestamp as RFC 3339.
func (r QuizResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user_id"`
		Score     int       `json:"score"`
		Level     Level     `json:"level"`
		Timestamp time.Time `json:"timestamp"`
	}{r.ID, r.UserID, r.Score, r.Level, time.Unix(r.Timestamp, 0).UTC()})
}

// QuizStats summarizes one user's submissions.
type QuizStats struct {
	QuizzesTaken int     `json:"quizzesTaken"`
	AverageScore float64 `json:"avgScore"`
	BestScore    int     `json:"bestScore"`
}
