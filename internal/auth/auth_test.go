package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return s
}

func claims(userID int64, role int, ttl time.Duration) Claims {
	return Claims{
		UserID: userID,
		RoleID: role,
		Email:  "ana@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func TestVerifier_Parse(t *testing.T) {
	v := NewVerifier(secret)

	id, err := v.Parse(sign(t, jwt.SigningMethodHS256, []byte(secret), claims(7, RoleAdmin, time.Hour)))
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: 7, RoleID: RoleAdmin, Email: "ana@example.com"}, id)
	require.Equal(t, "ana@example.com", id.ActingUser())
	require.Equal(t, "user:7", Identity{UserID: 7}.ActingUser())

	_, err = v.Parse(sign(t, jwt.SigningMethodHS256, []byte(secret), claims(7, RoleAdmin, -time.Minute)))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Parse(sign(t, jwt.SigningMethodHS256, []byte("other"), claims(7, RoleAdmin, time.Hour)))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Parse(sign(t, jwt.SigningMethodHS512, []byte(secret), claims(7, RoleAdmin, time.Hour)))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Parse(sign(t, jwt.SigningMethodHS256, []byte(secret), claims(0, RoleAdmin, time.Hour)))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware_AndRoles(t *testing.T) {
	v := NewVerifier(secret)
	var seen Identity
	h := v.Middleware(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, do(""))
	require.Equal(t, http.StatusUnauthorized, do("Token abc"))
	require.Equal(t, http.StatusUnauthorized, do("Bearer garbage"))
	require.Equal(t, http.StatusForbidden, do("Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), claims(8, RoleClient, time.Hour))))
	require.Equal(t, http.StatusNoContent, do("Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), claims(7, RoleAdmin, time.Hour))))
	require.Equal(t, int64(7), seen.UserID)
}
