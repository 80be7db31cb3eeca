package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const operatorKey = contextKey("operator")

// Auth requires an HS256 bearer token whose subject names the counter
// operator. An empty secret disables the check.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := Logger(r.Context())

			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				Error(w, r, http.StatusUnauthorized, "unauthorized", "authorization header must be Bearer {token}", nil)
				return
			}

			claims := &jwt.RegisteredClaims{}

			_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				logger.Warn("invalid token", "error", err)

				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token has expired"
				}

				Error(w, r, http.StatusUnauthorized, "unauthorized", msg, nil)

				return
			}

			if claims.Subject == "" {
				Error(w, r, http.StatusUnauthorized, "unauthorized", "token has no subject", nil)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, claims.Subject)
			ctx = WithLogger(ctx, logger.With(slog.String("operator", claims.Subject)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Operator returns the authenticated operator, if any.
func Operator(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok
}
