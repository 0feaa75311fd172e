package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/medsecure/telehealth/internal/auth"
	"github.com/medsecure/telehealth/internal/core"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireRole admits requests bearing a valid token of the given role.
func (h *APIHandler) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header is required", "")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := h.tokens.Validate(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", "")
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, "Forbidden", "")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// participant returns the authenticated caller. Only valid behind RequireRole.
func participant(r *http.Request) core.Participant {
	claims := r.Context().Value(claimsKey).(*auth.Claims)
	return core.Participant{ID: claims.Subject, Staff: claims.Role == auth.RoleStaff}
}
