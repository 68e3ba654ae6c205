package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, peer, protocol, correlation id and duration. Failures
// add the Connect code; errors without one are logged at error level.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"protocol", req.Peer().Protocol,
				"request_id", rpcRequestID(ctx, req),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err == nil {
				logger.InfoContext(ctx, "RPC ok", attrs...)
				return resp, nil
			}

			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				attrs = append(attrs, "code", connectErr.Code().String(), "error", connectErr.Message())
				logger.WarnContext(ctx, "RPC error", attrs...)
			} else {
				attrs = append(attrs, "error", err)
				logger.ErrorContext(ctx, "RPC error", attrs...)
			}
			return resp, err
		}
	}
}

// rpcRequestID prefers the id RequestID put in the context, for handlers
// mounted behind gin, and falls back to the caller's header.
func rpcRequestID(ctx context.Context, req connect.AnyRequest) string {
	if id := GetRequestID(ctx); id != "" {
		return id
	}
	return req.Header().Get(requestIDHeader)
}
