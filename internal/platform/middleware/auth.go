package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	id "bloodlink/pkg/domain"
	"bloodlink/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	ActorID string
	Role    string
}

// GetActor retrieves the authenticated actor from the context. Returns the
// zero actor when unauthenticated.
func GetActor(ctx context.Context) id.Actor {
	return requestcontext.Actor(ctx)
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}

				actorID, err := uuid.Parse(claims.ActorID)
				if err != nil {
					writeUnauthorized(w, "Invalid or expired token")
					return
				}
				role, err := id.ParseRole(claims.Role)
				if err != nil {
					writeUnauthorized(w, "Invalid or expired token")
					return
				}

				ctx := requestcontext.WithActor(r.Context(), id.Actor{ID: actorID, Role: role})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			logger.WarnContext(r.Context(), "unauthorized access - missing token",
				"request_id", GetRequestID(r.Context()),
			)
			writeUnauthorized(w, "Missing or invalid Authorization header")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
