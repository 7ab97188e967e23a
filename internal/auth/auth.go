// Package auth verifies bearer tokens issued by the account service and
// gates routes by role. Issuing tokens is not done here.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	RoleAdmin  = 1
	RoleClient = 2
)

type Claims struct {
	UserID int64  `json:"user_id"`
	RoleID int    `json:"role_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID int64
	RoleID int
	Email  string
}

// ActingUser is the identifier written to history entries.
func (i Identity) ActingUser() string {
	if i.Email != "" {
		return i.Email
	}
	return fmt.Sprintf("user:%d", i.UserID)
}

var ErrInvalidToken = errors.New("invalid or expired token")

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (v *Verifier) Parse(token string) (Identity, error) {
	claims := &Claims{}
	tok, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, errors.Wrapf(ErrInvalidToken, "%v", err)
	}
	if claims.UserID == 0 || claims.RoleID == 0 {
		return Identity{}, errors.Wrap(ErrInvalidToken, "missing user or role claim")
	}
	return Identity{UserID: claims.UserID, RoleID: claims.RoleID, Email: claims.Email}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			deny(w, http.StatusUnauthorized, "unauthorized", "authorization header is required")
			return
		}
		id, err := v.Parse(strings.TrimSpace(token))
		if err != nil {
			deny(w, http.StatusUnauthorized, "unauthorized", ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func RequireRole(roles ...int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			for _, role := range roles {
				if id.RoleID == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusForbidden, "forbidden", "insufficient permissions")
		})
	}
}

func deny(w http.ResponseWriter, code int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "reason": reason, "message": msg})
}
