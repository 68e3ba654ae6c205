package models

import "database/sql"

// UserRecord is a users row as stored, with every column nullable.
// Maintenance tools read these instead of User so that legacy rows
// missing required values can still be inspected and repaired.
type UserRecord struct {
	ID                  int64
	Username            sql.NullString
	Email               sql.NullString
	PasswordHash        sql.NullString
	Level               sql.NullString
	Interests           sql.NullString
	LearningStyle       sql.NullString
	PreferredMethod     sql.NullString
	OnboardingCompleted sql.NullInt64
	CreatedAt           sql.NullInt64
}

// DuplicateGroup is a set of users sharing one email or username,
// ordered by ascending ID.
type DuplicateGroup struct {
	Value string  `json:"value"`
	IDs   []int64 `json:"ids"`
}

// Keep returns the ID that survives deduplication (the lowest).
func (g DuplicateGroup) Keep() int64 {
	return g.IDs[0]
}

// Extra returns the IDs that deduplication removes.
func (g DuplicateGroup) Extra() []int64 {
	return g.IDs[1:]
}

// QuizSummary aggregates the quiz_results table.
type QuizSummary struct {
	TotalResults int            `json:"totalResults"`
	UniqueUsers  int            `json:"uniqueUsers"`
	AverageScore float64        `json:"avgScore"`
	MinScore     int            `json:"minScore"`
	MaxScore     int            `json:"maxScore"`
	ByLevel      map[string]int `json:"byLevel"`
}

// Health status values.
const (
	StatusOK      = "OK"
	StatusWarning = "WARNING"
	StatusError   = "ERROR"

	HealthHealthy        = "HEALTHY"
	HealthNeedsAttention = "NEEDS_ATTENTION"
)

// HealthCheck is one named sub-check of a health report.
type HealthCheck struct {
	Count  int    `json:"count"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health is a point-in-time consistency report for the store.
type Health struct {
	Users        HealthCheck `json:"users"`
	QuizResults  HealthCheck `json:"quiz_results"`
	OrphanedData HealthCheck `json:"orphaned_data"`
	Overall      string      `json:"overall"`
	Timestamp    string      `json:"timestamp"`
}

// Finalize computes Overall: HEALTHY only when every sub-check is OK.
func (h *Health) Finalize() {
	h.Overall = HealthHealthy
	for _, c := range []HealthCheck{h.Users, h.QuizResults, h.OrphanedData} {
		if c.Status != StatusOK {
			h.Overall = HealthNeedsAttention
			return
		}
	}
}
