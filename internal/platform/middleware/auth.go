package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "screening/pkg/domain-errors"
	"screening/pkg/platform/httputil"
	"screening/pkg/requestcontext"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims the middleware needs from a validated token.
type JWTClaims struct {
	Subject string
	Scope   string
	JTI     string
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject as the request operator.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithOperator(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
