package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/teleconsult/internal/domain/entities"
	"github.com/zatekoja/teleconsult/pkg/auth"
)

func newTokens() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", "dat-health", time.Hour)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := newTokens()

	var seen entities.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthMiddleware(tokens)(next)

	sign := func(claims auth.Claims) string {
		token, _, err := tokens.Generate(claims)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "unknown role", header: "Bearer " + sign(auth.Claims{UserID: 3, Roles: []string{"NURSE"}}), wantStatus: http.StatusUnauthorized},
		{name: "valid patient", header: "Bearer " + sign(auth.Claims{UserID: 3, Email: "chioma@mail.test", Roles: []string{"patient"}}), wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = entities.Identity{}
			req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHENTICATED"`)
				assert.False(t, seen.IsAuthenticated())
			}
		})
	}

	assert.Equal(t, int64(3), seen.UserID)
	assert.Equal(t, "chioma@mail.test", seen.Email)
	assert.Equal(t, []entities.Role{entities.RolePatient}, seen.Roles)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(entities.RoleDoctor, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("doctor passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/appointments/complete/1", nil)
		req = req.WithContext(WithIdentity(req.Context(), entities.Identity{UserID: 1, Roles: []entities.Role{entities.RoleDoctor}}))
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("patient is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/appointments/complete/1", nil)
		req = req.WithContext(WithIdentity(req.Context(), entities.Identity{UserID: 3, Roles: []entities.Role{entities.RolePatient}}))
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)
	})
}
