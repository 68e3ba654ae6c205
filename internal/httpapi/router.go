// Package httpapi exposes the account, quiz, preferences and admin
// operations as a JSON API over gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/metrics"
	"github.com/mmynk/qchemaxis/internal/middleware"
	"github.com/mmynk/qchemaxis/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig wires the router's dependencies.
type RouterConfig struct {
	Account     *service.AccountService
	Admin       *service.AdminService
	Quiz        *service.QuizService
	JWT         *auth.JWTManager
	AdminPolicy *middleware.AdminPolicy
	Store       Pinger
	Metrics     *metrics.HTTPMetrics
	Logger      *slog.Logger

	// CORSOrigins lists allowed origins; empty or "*" allows any origin.
	CORSOrigins []string
	DevMode     bool
}

// Handler holds the gin handlers.
type Handler struct {
	account *service.AccountService
	admin   *service.AdminService
	quiz    *service.QuizService
	jwt     *auth.JWTManager
	store   Pinger
	logger  *slog.Logger
	devMode bool
}

// NewRouter builds the gin engine serving /api and /health.
func NewRouter(cfg RouterConfig) *gin.Engine {
	h := &Handler{
		account: cfg.Account,
		admin:   cfg.Admin,
		quiz:    cfg.Quiz,
		jwt:     cfg.JWT,
		store:   cfg.Store,
		logger:  cfg.Logger,
		devMode: cfg.DevMode,
	}
	policy := cfg.AdminPolicy
	if policy == nil {
		policy = middleware.NewAdminPolicy(nil)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Logger),
		cfg.Metrics.Handler(),
		corsHandler(cfg.CORSOrigins),
	)

	router.GET("/health", h.health)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", middleware.Identify(cfg.JWT), h.logout)
		authGroup.GET("/status", middleware.Identify(cfg.JWT), h.status)
		authGroup.POST("/refresh", middleware.Authenticate(cfg.JWT), h.refresh)
		authGroup.POST("/google", h.federatedLogin)
	}

	protected := api.Group("")
	protected.Use(middleware.Authenticate(cfg.JWT))
	{
		protected.GET("/quiz/questions", h.quizQuestions)
		protected.POST("/quiz/submit", h.quizSubmit)
		protected.GET("/quiz/history", h.quizHistory)

		protected.POST("/preferences/save", h.savePreferences)
		protected.GET("/preferences/user", h.currentUser)
		protected.GET("/preferences/profile", h.profile)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.Authenticate(cfg.JWT), middleware.AdminOnly(policy))
	{
		admin.GET("/users", h.adminListUsers)
		admin.GET("/users/:id", h.adminGetUser)
		admin.GET("/users/:id/stats", h.adminUserStats)
		admin.PUT("/users/:id/email", h.adminUpdateEmail)
		admin.PUT("/users/:id/username", h.adminUpdateUsername)
		admin.PUT("/users/:id/password", h.adminUpdatePassword)
		admin.PUT("/users/:id/level", h.adminUpdateLevel)
		admin.DELETE("/users/:id", h.adminDeleteUser)
		admin.GET("/stats", h.adminSystemStats)
		admin.GET("/health", h.adminHealth)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	})

	return router
}

func corsHandler(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposeHeaders: []string{"X-Request-ID", "Connect-Protocol-Version"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
