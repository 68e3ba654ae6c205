package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmynk/qchemaxis/internal/auth"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// GetRequestID returns the correlation id set by RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID injects a correlation identifier into the context and headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func Authenticate(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := authenticate(c.Request.Context(), jwtManager, c.GetHeader("Authorization"))
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "Access token required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Identify is Authenticate without the rejection: an invalid or missing
// token leaves the request anonymous.
func Identify(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ctx, err := authenticate(c.Request.Context(), jwtManager, c.GetHeader("Authorization")); err == nil {
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// AdminOnly must follow Authenticate.
func AdminOnly(policy *AdminPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if GetUserID(ctx) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !policy.Allows(GetEmail(ctx)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request at a level chosen by status class.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ctx := c.Request.Context()
		fields := []any{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := GetRequestID(ctx); id != "" {
			fields = append(fields, "request_id", id)
		}
		if userID := GetUserID(ctx); userID != 0 {
			fields = append(fields, "user_id", userID)
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", fields...)
		case status >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}
