// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/http/realip"
)

// requestLogger derives the per-request logger. The query string is left out
// because listing searches carry email fragments.
func requestLogger(base *slog.Logger, tp *realip.TrustedProxies, r *http.Request) (*slog.Logger, string) {
	clientIP := "unknown"
	if tp != nil {
		clientIP = tp.GetClientIPString(r)
	}
	return base.With(
		"request_id", chimw.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"client_ip", clientIP,
	), clientIP
}

// RequestLoggerMiddleware attaches a request-scoped logger and the resolved
// client IP to the request context.
//
// Must run after chimw.RequestID so the request id is available.
func RequestLoggerMiddleware(base *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger, clientIP := requestLogger(base, trustedProxies, r)
			ctx := appctx.WithLogger(r.Context(), logger)
			ctx = appctx.WithClientIP(ctx, clientIP)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLogMiddleware emits one "request" record per request with status,
// bytes and duration. Server errors are logged at warn.
//
// Base fields come from the context logger installed by RequestLoggerMiddleware
// and are recomputed only when that logger is missing.
func AccessLogMiddleware(log *slog.Logger, trustedProxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger, ok := appctx.LoggerFromContext(r.Context())
				if !ok {
					logger, _ = requestLogger(log, trustedProxies, r)
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelWarn
				}
				logger.Log(r.Context(), level, "request",
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
