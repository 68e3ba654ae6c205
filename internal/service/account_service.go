package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/qchemaxis/internal/apperr"
	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/metrics"
	"github.com/mmynk/qchemaxis/internal/models"
	"github.com/mmynk/qchemaxis/internal/storage"
	"github.com/mmynk/qchemaxis/pkg/logging"
)

// ProfileHistoryLimit is how many recent quiz results a profile includes.
const ProfileHistoryLimit = 5

// maxUsernameSuffix bounds the search for a free federated username.
const maxUsernameSuffix = 1000

// AuthResult is returned by every operation that issues a token.
type AuthResult struct {
	User    models.PublicUser `json:"user"`
	Token   string            `json:"token"`
	Created bool              `json:"-"`
}

// StatusResult reports whether a token identifies a live account.
type StatusResult struct {
	Authenticated bool               `json:"authenticated"`
	User          *models.PublicUser `json:"user,omitempty"`
}

// Profile is a user with their most recent quiz results.
type Profile struct {
	User        models.PublicUser    `json:"user"`
	QuizHistory []*models.QuizResult `json:"quizHistory"`
}

// SignupInput carries the signup form.
type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FederatedInput is an identity asserted by an external provider.
type FederatedInput struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	ExternalID string `json:"googleId"`
}

// PreferencesInput carries the onboarding answers.
type PreferencesInput struct {
	LearningStyle   string   `json:"learning_style"`
	Interests       []string `json:"interests"`
	PreferredMethod string   `json:"preferred_method"`
}

// AccountService implements signup, login and the other self-service
// account operations.
type AccountService struct {
	users         storage.UserStore
	quizzes       storage.QuizStore
	authenticator auth.Authenticator
	hasher        *auth.PasswordHasher
	jwtManager    *auth.JWTManager
	metrics       *metrics.Domain
	logger        *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	users storage.UserStore,
	quizzes storage.QuizStore,
	hasher *auth.PasswordHasher,
	jwtManager *auth.JWTManager,
	m *metrics.Domain,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:         users,
		quizzes:       quizzes,
		authenticator: auth.NewPasswordAuthenticator(users, hasher),
		hasher:        hasher,
		jwtManager:    jwtManager,
		metrics:       m,
		logger:        logger.With("service", "account"),
	}
}

// Signup validates the form, creates a Beginner account and issues a token.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Validation("Missing required fields: username, email, password")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		s.metrics.AuthEvent("signup", "conflict")
		return nil, apperr.Conflict("User with this email already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := models.NewUser(in.Username, in.Email, hash)
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			s.metrics.AuthEvent("signup", "conflict")
			return nil, apperr.Wrap(apperr.KindConflict, "User with this email or username already exists", err)
		}
		s.logger.Error("Signup failed", "email", logging.MaskEmail(in.Email), "error", err)
		return nil, apperr.Internal(err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.Created = true

	s.metrics.AuthEvent("signup", "success")
	s.logger.Info("User registered successfully", "user_id", user.ID, "email", logging.MaskEmail(user.Email))
	return result, nil
}

// Login verifies credentials. Unknown email, wrong password and a corrupted
// stored hash all produce the same error.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("Missing required fields: email, password")
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if errors.Is(err, auth.ErrMalformedHash) {
				s.logger.Warn("Stored password hash is malformed", "email", logging.MaskEmail(email))
			}
			s.metrics.AuthEvent("login", "failure")
			return nil, apperr.Wrap(apperr.KindAuth, "Invalid email or password", err)
		}
		return nil, apperr.Internal(err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.AuthEvent("login", "success")
	s.logger.Info("User logged in successfully", "user_id", user.ID)
	return result, nil
}

// Logout acknowledges a logout. Tokens are stateless; the client discards its token.
func (s *AccountService) Logout(ctx context.Context, userID int64) {
	s.metrics.AuthEvent("logout", "success")
	s.logger.Info("Logout request", "user_id", userID)
}

// Status resolves a bearer token to its account. A missing or invalid token,
// or one whose user has been deleted, is simply unauthenticated.
func (s *AccountService) Status(ctx context.Context, token string) (*StatusResult, error) {
	claims, err := s.jwtManager.Validate(token)
	if err != nil {
		return &StatusResult{Authenticated: false}, nil
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return &StatusResult{Authenticated: false}, nil
	}

	pub := user.Public()
	return &StatusResult{Authenticated: true, User: &pub}, nil
}

// Refresh issues a fresh token for a still-existing account.
func (s *AccountService) Refresh(ctx context.Context, userID int64) (*AuthResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.Auth("User not found")
	}

	s.metrics.AuthEvent("refresh", "success")
	return s.issue(user)
}

// FederatedLogin logs in the account with the asserted email, creating it
// on first sight. New accounts get a username derived from the display name
// and a password hash nobody knows the secret for.
func (s *AccountService) FederatedLogin(ctx context.Context, in FederatedInput) (*AuthResult, error) {
	if in.Email == "" || in.Name == "" || in.ExternalID == "" {
		return nil, apperr.Validation("Missing required fields: email, name, googleId")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		s.metrics.AuthEvent("federated_login", "success")
		return s.issue(existing)
	}

	secret, err := auth.RandomSecret(32)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user, err := s.createWithFreeUsername(ctx, in.Name, in.Email, hash)
	if err != nil {
		return nil, err
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.Created = true

	s.metrics.AuthEvent("federated_signup", "success")
	s.logger.Info("Federated account created", "user_id", user.ID, "username", user.Username)
	return result, nil
}

// createWithFreeUsername tries base, base1, base2, ... until one is unused
// and long enough to pass signup validation. A concurrent signup taking the
// same name moves on to the next suffix.
func (s *AccountService) createWithFreeUsername(ctx context.Context, base, email, hash string) (*models.User, error) {
	for i := 0; i <= maxUsernameSuffix; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}
		if validateUsername(candidate) != nil {
			continue
		}

		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if taken {
			continue
		}

		user := models.NewUser(candidate, email, hash)
		err = s.users.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Internal(err)
		}

		// The email may have been registered concurrently.
		if other, lookupErr := s.users.GetUserByEmail(ctx, email); lookupErr == nil && other != nil {
			return other, nil
		}
	}
	return nil, apperr.Conflict("Could not find an available username")
}

// UpdatePreferences stores the onboarding answers and completes onboarding.
func (s *AccountService) UpdatePreferences(ctx context.Context, userID int64, in PreferencesInput) error {
	if in.LearningStyle == "" || in.Interests == nil || in.PreferredMethod == "" {
		return apperr.Validation("Missing required preferences")
	}

	updated, err := s.users.UpdatePreferences(ctx, userID, in.LearningStyle, in.Interests, in.PreferredMethod)
	if err != nil {
		return apperr.Internal(err)
	}
	if !updated {
		return apperr.NotFound("User not found")
	}

	s.logger.Info("Preferences saved", "user_id", userID)
	return nil
}

// CurrentUser returns the public projection of the user.
func (s *AccountService) CurrentUser(ctx context.Context, userID int64) (*models.PublicUser, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}

	pub := user.Public()
	return &pub, nil
}

// Profile returns the user together with their latest quiz results.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	pub, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.quizzes.ListQuizResults(ctx, userID, ProfileHistoryLimit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if history == nil {
		history = []*models.QuizResult{}
	}

	return &Profile{User: *pub, QuizHistory: history}, nil
}

func (s *AccountService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, apperr.Internal(err)
	}
	return &AuthResult{User: user.Public(), Token: token}, nil
}
