package shared

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

// ActorLimiter throttles requests per signed-in actor, falling back to the client IP.
func ActorLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(RateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
}

// RateLimitKey identifies the caller for rate limiting.
func RateLimitKey(r *http.Request) (string, error) {
	if actor, ok := ActorFromContext(r.Context()); ok && strings.TrimSpace(actor.Username) != "" {
		return "user:" + strings.ToLower(actor.Username), nil
	}
	if sess := SessionFromContext(r.Context()); sess != nil {
		if user := strings.TrimSpace(sess.Username()); user != "" {
			return "user:" + strings.ToLower(user), nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
