// Package models defines the core domain models for QChemAxis.
//
// # Accounts
//
//   - User: a learner account with credentials, level and onboarding preferences
//   - PublicUser: the projection of a User sent to clients (no password hash)
//   - Level: Beginner, Intermediate or Advanced
//
// # Quiz
//
//   - QuizResult: one placement quiz submission
//   - QuizStats: per-user aggregate over submissions
//
// # Maintenance
//
// UserRecord, DuplicateGroup, QuizSummary and Health describe the store as
// the audit and cleanup tools see it, including rows that violate the
// invariants the account service maintains.
//
// Relationships use int64 IDs rather than pointers. Quiz results reference
// users by ID only; nothing in the schema enforces the reference.
package models
