package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject  string
	TenantID string
}

type contextKeySubject struct{}
type contextKeyTenantID struct{}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	subject, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok {
		return ""
	}
	return subject
}

// GetTenantID retrieves the token's tenant claim from the context.
func GetTenantID(ctx context.Context) string {
	tenantID, ok := ctx.Value(contextKeyTenantID{}).(string)
	if !ok {
		return ""
	}
	return tenantID
}

// WithSubject injects an authenticated subject into a context. Useful for
// handler tests that skip the middleware chain.
func WithSubject(ctx context.Context, subject, tenantID string) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject{}, subject)
	return context.WithValue(ctx, contextKeyTenantID{}, tenantID)
}

// RequireAuth rejects requests without a valid bearer token and places the
// token's claims in context for handlers.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err.Error(),
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithSubject(r.Context(), claims.Subject, claims.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
