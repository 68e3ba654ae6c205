package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/qchemaxis/internal/apperr"
	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/calculator"
	"github.com/mmynk/qchemaxis/internal/metrics"
	"github.com/mmynk/qchemaxis/internal/middleware"
	"github.com/mmynk/qchemaxis/internal/service"
	"github.com/mmynk/qchemaxis/internal/storage/sqlite"
	"github.com/mmynk/qchemaxis/pkg/logging"
)

const adminEmail = "admin@example.com"

type testServer struct {
	router *gin.Engine
	store  *sqlite.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logging.Discard()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	httpMetrics, err := metrics.NewHTTPMetrics(metrics.HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Account:     service.NewAccountService(store, store, hasher, jwtManager, nil, logger),
		Admin:       service.NewAdminService(store, hasher, logger),
		Quiz:        service.NewQuizService(store, nil, logger),
		JWT:         jwtManager,
		AdminPolicy: middleware.NewAdminPolicy([]string{adminEmail}),
		Store:       store,
		Metrics:     httpMetrics,
		Logger:      logger,
	})
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

// signup registers an account and returns its token and id.
func (s *testServer) signup(t *testing.T, username, email string) (string, int64) {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username, "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := body["user"].(map[string]any)
	return body["token"].(string), int64(user["id"].(float64))
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		error  string
	}{
		{
			name:   "short username",
			body:   map[string]string{"username": "ab", "email": "ab@example.com", "password": "secret1"},
			status: http.StatusBadRequest,
			error:  "Username must be at least 3 characters long",
		},
		{
			name:   "bad email",
			body:   map[string]string{"username": "alice", "email": "bad-email", "password": "secret1"},
			status: http.StatusBadRequest,
			error:  "Invalid email format",
		},
		{
			name:   "short password",
			body:   map[string]string{"username": "alice", "email": "alice@example.com", "password": "12345"},
			status: http.StatusBadRequest,
			error:  "Password must be at least 6 characters long",
		},
		{
			name:   "missing fields",
			body:   map[string]string{"email": "alice@example.com"},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, body["error"])
			if tt.error != "" {
				assert.Equal(t, tt.error, body["error"])
			}
			assert.NotContains(t, body, "details")
		})
	}
}

func TestSignupLoginFlow(t *testing.T) {
	s := newTestServer(t)

	token, id := s.signup(t, "alice", "alice@example.com")
	assert.NotZero(t, id)

	w, body := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User with this email already exists", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Login successful", body["message"])
	user := body["user"].(map[string]any)
	assert.NotContains(t, user, "password_hash")
	assert.Equal(t, "Beginner", user["level"])

	w, body = s.do(t, http.MethodGet, "/api/auth/status", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["authenticated"])

	w, body = s.do(t, http.MethodGet, "/api/auth/status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["authenticated"])

	w, body = s.do(t, http.MethodPost, "/api/auth/refresh", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["token"])

	w, _ = s.do(t, http.MethodPost, "/api/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logout successful", body["message"])
}

func TestFederatedLogin(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "grace", "other@example.com")

	in := map[string]string{"email": "grace@example.com", "name": "grace", "googleId": "g-1"}
	w, body := s.do(t, http.MethodPost, "/api/auth/google", "", in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "grace1", body["user"].(map[string]any)["username"])

	w, body = s.do(t, http.MethodPost, "/api/auth/google", "", in)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Login successful", body["message"])

	w, _ = s.do(t, http.MethodPost, "/api/auth/google", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuizAndPreferences(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "alice", "alice@example.com")

	w, _ := s.do(t, http.MethodGet, "/api/quiz/questions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/quiz/questions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var questions []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &questions))
	assert.Len(t, questions, len(calculator.Questions))
	assert.NotContains(t, questions[0], "answer")

	answers := map[string]string{}
	for _, q := range calculator.Questions {
		answers[fmt.Sprint(q.ID)] = q.Answer
	}
	w, body := s.do(t, http.MethodPost, "/api/quiz/submit", token, map[string]any{"answers": answers})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(calculator.MaxScore(calculator.Questions)), body["score"])
	assert.Equal(t, "Advanced", body["level"])

	w, body = s.do(t, http.MethodPost, "/api/quiz/submit", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid answers format", body["error"])

	w, _ = s.do(t, http.MethodGet, "/api/quiz/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	w, _ = s.do(t, http.MethodPost, "/api/preferences/save", token, map[string]any{"learning_style": "visual"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/preferences/save", token, map[string]any{
		"learning_style":   "visual",
		"interests":        []string{"organic"},
		"preferred_method": "examples",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/preferences/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["onboarding_completed"])
	assert.Equal(t, "Advanced", body["level"])

	w, body = s.do(t, http.MethodGet, "/api/preferences/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["quizHistory"], 1)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	adminToken, adminID := s.signup(t, "admin", adminEmail)
	userToken, userID := s.signup(t, "alice", "alice@example.com")
	s.signup(t, "bob", "bob@example.com")

	w, body := s.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", body["error"])

	w, _ = s.do(t, http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["count"])

	userPath := fmt.Sprintf("/api/admin/users/%d", userID)

	w, body = s.do(t, http.MethodGet, userPath, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["stats"].(map[string]any)["quizzesTaken"])

	w, _ = s.do(t, http.MethodGet, "/api/admin/users/abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/admin/users/999", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(t, http.MethodGet, userPath+"/stats", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(userID), body["userId"])

	w, body = s.do(t, http.MethodPut, userPath+"/email", adminToken, map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already exists", body["error"])

	w, _ = s.do(t, http.MethodPut, userPath+"/email", adminToken, map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, http.MethodPut, userPath+"/username", adminToken, map[string]string{"username": "alicia"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Username updated successfully", body["message"])

	w, _ = s.do(t, http.MethodPut, userPath+"/level", adminToken, map[string]string{"level": "Expert"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPut, userPath+"/level", adminToken, map[string]string{"level": "Advanced"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPut, userPath+"/password", adminToken, map[string]string{"password": "newpass1"})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = s.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", adminID), adminToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Cannot delete your own account through admin panel", body["error"])

	w, _ = s.do(t, http.MethodDelete, userPath, adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodDelete, userPath, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["stats"].(map[string]any)["totalUsers"])

	w, body = s.do(t, http.MethodGet, "/api/admin/health", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HEALTHY", body["health"].(map[string]any)["overall"])
}

func TestUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Not found", body["error"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body = s.do(t, http.MethodDelete, "/api/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", body["error"])
	assert.Contains(t, w.Header().Get("Allow"), http.MethodPost)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	require.NoError(t, s.store.Close())
	w, _ = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.Conflict("dup"), http.StatusConflict},
		{apperr.Auth("no"), http.StatusUnauthorized},
		{apperr.Forbidden("no"), http.StatusForbidden},
		{apperr.NotFound("gone"), http.StatusNotFound},
		{apperr.Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("gone")), http.StatusNotFound},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}

func TestDevModeDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, devMode := range []bool{false, true} {
		h := &Handler{logger: logging.Discard(), devMode: devMode}
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			h.respondError(c, apperr.Internal(errors.New("disk full")))
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", body.Error)
		if devMode {
			assert.Contains(t, body.Details, "disk full")
		} else {
			assert.Empty(t, body.Details)
		}
	}
}
