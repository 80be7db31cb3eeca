package httpx

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewLimiter builds an in-memory limiter from a rate such as "120-M".
func NewLimiter(rate string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parsing rate limit %q: %w", rate, err)
	}

	return limiter.New(memory.NewStore(), r), nil
}

// RateLimit limits requests per client address.
func RateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			lctx, err := l.Get(r.Context(), ip)
			if err != nil {
				Logger(r.Context()).Error("failed to get rate limit context", "ip", ip, "error", err)
				Error(w, r, http.StatusInternalServerError, "internal", "rate limit check failed", nil)

				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))

			if lctx.Reached {
				Logger(r.Context()).Warn("rate limit exceeded", "ip", ip, "limit", lctx.Limit)
				Error(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests, try again later", nil)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
