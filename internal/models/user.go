package models

import (
	"encoding/json"
	"time"
)

// Level is the learner's proficiency, assigned by the placement quiz.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Valid reports whether l is one of the three known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// User represents a registered learner account.
type User struct {
	// ID is the surrogate key assigned by the store. Immutable.
	ID int64

	// Username is unique across all users, at least 3 characters.
	Username string

	// Email is unique across all users and used for login.
	Email string

	// PasswordHash is a bcrypt hash. Never exposed outside the service layer.
	PasswordHash string

	// Level defaults to Beginner and is overwritten on every quiz submission.
	Level Level

	// Learning preferences collected during onboarding. Empty until saved.
	LearningStyle   string
	Interests       []string
	PreferredMethod string

	OnboardingCompleted bool

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64
}

// NewUser creates a Beginner user with onboarding pending.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Level:        LevelBeginner,
		CreatedAt:    time.Now().Unix(),
	}
}

// PublicUser is the projection of a User returned to clients.
// It never carries the password hash.
type PublicUser struct {
	ID                  int64     `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	Level               Level     `json:"level"`
	LearningStyle       *string   `json:"learning_style"`
	Interests           []string  `json:"interests"`
	PreferredMethod     *string   `json:"preferred_method"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

// Public returns the client-facing projection of u.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		Level:               u.Level,
		Interests:           u.Interests,
		OnboardingCompleted: u.OnboardingCompleted,
		CreatedAt:           time.Unix(u.CreatedAt, 0).UTC(),
	}
	if u.LearningStyle != "" {
		p.LearningStyle = &u.LearningStyle
	}
	if u.PreferredMethod != "" {
		p.PreferredMethod = &u.PreferredMethod
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	return p
}

// EncodeInterests serializes interests the way they are stored: a JSON array string.
func EncodeInterests(interests []string) (string, error) {
	if interests == nil {
		interests = []string{}
	}
	b, err := json.Marshal(interests)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeInterests parses a stored interests value. An empty value yields nil.
func DecodeInterests(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var interests []string
	if err := json.Unmarshal([]byte(raw), &interests); err != nil {
		return nil, err
	}
	return interests, nil
}
