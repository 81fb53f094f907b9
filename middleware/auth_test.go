package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func identityHandler(t *testing.T, got *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetIdentityFromContext(r.Context())
		require.NoError(t, err)
		*got = id
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	valid := signToken(t, jwt.MapClaims{
		"user_id": 42,
		"name":    "neo",
		"avatar":  "https://cdn.example.com/neo.png",
		"skill":   1500.5,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusNoContent},
		{"query token", func(r *http.Request) { r.URL.RawQuery = "token=" + valid }, http.StatusNoContent},
		{"missing token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"user_id": 1}, "other"))
		}, http.StatusUnauthorized},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{
				"user_id": 1,
				"exp":     time.Now().Add(-time.Minute).Unix(),
			}, testSecret))
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			Authenticate(testSecret)(identityHandler(t, &got)).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "42", got.ID)
				assert.Equal(t, "neo", got.DisplayName)
				require.NotNil(t, got.Avatar)
				assert.Equal(t, 1500.5, got.Skill)
			}
		})
	}
}

func TestGetIdentityFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetIdentityFromContext(req.Context())
	assert.Error(t, err)

	ctx := ContextWithClaims(req.Context(), jwt.MapClaims{"user_id": "u-7"})
	id, err := GetIdentityFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-7", id.ID)
	assert.Nil(t, id.Avatar)

	ctx = ContextWithClaims(req.Context(), jwt.MapClaims{"user_id": 1.5})
	_, err = GetIdentityFromContext(ctx)
	assert.Error(t, err)

	ctx = ContextWithClaims(req.Context(), jwt.MapClaims{"user_id": true})
	_, err = GetIdentityFromContext(ctx)
	assert.Error(t, err)
}
