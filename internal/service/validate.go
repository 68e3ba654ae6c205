package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mmynk/qchemaxis/internal/apperr"
	"github.com/mmynk/qchemaxis/internal/models"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3

	// MaxPasswordBytes is the longest password bcrypt will hash.
	MaxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the shape local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func validateEmail(email string) error {
	if !ValidEmail(email) {
		return apperr.Validation("Invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return apperr.Validation(fmt.Sprintf("Password must be at most %d bytes long", MaxPasswordBytes))
	}
	return nil
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return apperr.Validation(fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength))
	}
	return nil
}

func validateLevel(level models.Level) error {
	if !level.Valid() {
		return apperr.Validation("Invalid level. Must be one of: " + strings.Join([]string{
			string(models.LevelBeginner),
			string(models.LevelIntermediate),
			string(models.LevelAdvanced),
		}, ", "))
	}
	return nil
}
