package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	"github.com/zatekoja/teleconsult/pkg/auth"
	apperrors "github.com/zatekoja/teleconsult/pkg/errors"
)

type identityKey struct{}

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity entities.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the authenticated caller, or the zero Identity
func IdentityFromContext(ctx context.Context) entities.Identity {
	identity, _ := ctx.Value(identityKey{}).(entities.Identity)
	return identity
}

// AuthMiddleware resolves the caller from an Authorization: Bearer token.
// Tokens carrying a role outside the known set are rejected.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, apperrors.ErrorTypeUnauthenticated, "missing bearer token")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				writeError(w, http.StatusUnauthorized, apperrors.ErrorTypeUnauthenticated, "invalid or expired token")
				return
			}

			roles := make([]entities.Role, 0, len(claims.Roles))
			for _, claim := range claims.Roles {
				role, err := entities.ParseRole(claim)
				if err != nil {
					writeError(w, http.StatusUnauthorized, apperrors.ErrorTypeUnauthenticated, "invalid or expired token")
					return
				}
				roles = append(roles, role)
			}

			identity := entities.Identity{UserID: claims.UserID, Email: claims.Email, Roles: roles}
			ctx := WithIdentity(r.Context(), identity)
			ctx = observability.WithUserID(ctx, identity.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers that lack role with 403
func RequireRole(role entities.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).HasRole(role) {
			writeError(w, http.StatusForbidden, apperrors.ErrorTypeForbidden, "access denied")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, code apperrors.ErrorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  string(code),
	})
}
