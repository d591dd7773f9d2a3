package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mindlink-backend/pkg/auth"
	"mindlink-backend/pkg/common"
)

// Authenticate validates the bearer token on every request and attaches the
// authenticated user to the request context. Requests are rate limited per
// client IP before validation and per user after, so a burst of garbage
// tokens cannot exhaust a victim's budget.
func Authenticate(tokens *auth.JWTService, limiter *auth.TokenBucketLimiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow("ip:" + clientIP(r)) {
				common.RespondError(w, http.StatusTooManyRequests, "RATE_LIMIT", "Too many requests.")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed authorization header.")
				return
			}

			claims, err := tokens.ValidateToken(header)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token.")
				return
			}

			if !limiter.Allow("user:" + claims.UserID) {
				common.RespondError(w, http.StatusTooManyRequests, "RATE_LIMIT", "Too many requests.")
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID:   claims.UserID,
				Email:    claims.Email,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
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
