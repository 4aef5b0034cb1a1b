package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/A7-pro/mikerobot/internal/auth"
	"github.com/A7-pro/mikerobot/internal/core"
	"github.com/A7-pro/mikerobot/internal/store"
)

type ctxKey int

const (
	userCtxKey ctxKey = iota
	clientCtxKey
)

// clientIDHeader names the browser or device a request comes from. Sign-in state is kept per client.
const clientIDHeader = "X-Client-ID"

func userFromContext(ctx context.Context) store.User {
	u, _ := ctx.Value(userCtxKey).(store.User)
	return u
}

// clientID is the token's client on authenticated routes, otherwise the header or fallback.
func clientID(r *http.Request, fallback string) string {
	if id, _ := r.Context().Value(clientCtxKey).(string); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	return fallback
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// Browsers cannot set headers on a WebSocket handshake.
	return r.URL.Query().Get("token")
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" && id != claims.ClientID {
			http.Error(w, "Token was issued to another client", http.StatusUnauthorized)
			return
		}
		userID := claims.UserID()

		user, err := h.auth.UserByID(r.Context(), userID)
		if errors.Is(err, core.ErrUnknownIdentity) {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("failed to resolve token subject")
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, *user)
		ctx = context.WithValue(ctx, clientCtxKey, claims.ClientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFromContext(r.Context()).IsAdmin {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userLimiter keeps one token bucket per user for requests that reach the assistant.
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newUserLimiter returns nil when perMinute is not positive, which disables limiting.
func newUserLimiter(perMinute int) *userLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &userLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *userLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (h *APIHandler) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if !h.limiter.Allow(user.ID) {
			log.Warn().Str("user_id", user.ID).Msg("rate limit exceeded")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
