package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/alacambra/presidio-anonymization/internal/requestctx"
)

// AuthMiddleware returns a middleware that validates X-API-Key or
// Authorization: Bearer <key> against apiKeys. With no keys configured every
// request passes. Authenticated requests carry ClientIDFor(key) in their
// context.
func AuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	if len(apiKeys) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" || !validKey(apiKeys, key) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.SetClientID(r.Context(), ClientIDFor(key))))
		})
	}
}

// ClientIDFor derives a loggable identifier from an API key.
func ClientIDFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:4])
}

func validKey(keys []string, key string) bool {
	ok := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

// RateLimiter enforces a global request rate with a token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
	rpm     int
}

// NewRateLimiter allows rpm requests per minute with a burst of rpm. A
// non-positive rpm returns nil, which never limits.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		return nil
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		rpm:     rpm,
	}
}

// Allow reports whether one more request may proceed now.
func (rl *RateLimiter) Allow() bool {
	if rl == nil {
		return true
	}
	return rl.limiter.Allow()
}

// RateLimitMiddleware returns 429 with Retry-After and X-RateLimit-* headers
// when rl is exhausted. A nil limiter passes every request.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.rpm))
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
		})
	}
}

// writeError writes the JSON error envelope {"error": code, "message": msg}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
