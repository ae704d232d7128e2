package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/hackgods/clinic-booking-gateway/internal/session"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const accessTokenCookie = "access_token"

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and request ID
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", GetRequestID(r.Context()),
			)
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// AuthMiddleware resolves the caller's profile from the access token. With
// required unset, a missing or bad token lets the request through anonymously.
func AuthMiddleware(verifier *session.Verifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if required {
					writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			p, err := verifier.Verify(raw)
			if err != nil {
				if required {
					writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithProfile(r.Context(), p)))
		})
	}
}

// RequireStaff rejects callers without a staff role. It runs after AuthMiddleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := session.FromContext(r.Context())
		if !ok || !p.IsStaff() {
			writeError(w, http.StatusForbidden, "forbidden", "staff role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRateLimiter limits submissions per caller using a Redis-backed store,
// so the limit holds across api-server replicas.
func NewRateLimiter(client *redis.Client, rateStr, routeID string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, err
	}

	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "rate_limiter:" + routeID,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, err
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithKeyGetter(func(r *http.Request) string {
			if p, ok := session.FromContext(r.Context()); ok && p.ID != "" {
				return "user:" + p.ID
			}
			return "ip:" + r.RemoteAddr
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many booking submissions, slow down")
		}),
	)
	return mw.Handler, nil
}
