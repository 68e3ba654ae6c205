package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest work factor accepted for stored hashes.
const MinBcryptCost = 10

var (
	// ErrMalformedHash means the stored value is not a bcrypt hash at all,
	// as opposed to a hash that does not match the password.
	ErrMalformedHash = errors.New("stored password hash is malformed")
)

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
func NewPasswordHasher(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. The comparison runs in
// constant time. A hash that is not bcrypt-formatted returns ErrMalformedHash.
func (h *PasswordHasher) Verify(plaintext, hash string) (bool, error) {
	if !IsWellFormedHash(hash) {
		return false, ErrMalformedHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// bcryptHashLen is the length of every encoded bcrypt hash.
const bcryptHashLen = 60

// IsWellFormedHash reports whether hash is a complete bcrypt hash: a $2
// version prefix, a valid cost and the full hash length. Verify treats
// anything else as ErrMalformedHash, so audit and login agree.
func IsWellFormedHash(hash string) bool {
	if len(hash) != bcryptHashLen || !strings.HasPrefix(hash, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}

const secretAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// RandomSecret returns n characters drawn from a crypto-random source.
// Used for temporary passwords and for federated accounts that never log
// in with a password.
func RandomSecret(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate secret: %w", err)
		}
		b.WriteByte(secretAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
