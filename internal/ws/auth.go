package ws

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"meal-alert-service/internal/models"
)

var (
	ErrMissingToken   = errors.New("missing credential")
	ErrInvalidToken   = errors.New("invalid or expired credential")
	ErrRoleNotAllowed = errors.New("role not permitted for realtime alerts")
)

// allowedRoles are the only roles admitted to the connection registry.
var allowedRoles = map[string]bool{
	models.RoleKitchenStaff:  true,
	models.RoleAdministrator: true,
}

// Claims is the bearer-token payload presented at connection time. Token
// issuance belongs to the care-facility application; this service only
// verifies.
type Claims struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate verifies a raw bearer credential and returns the identity
// and role it carries.
func Authenticate(raw, secret string) (string, string, error) {
	if raw == "" {
		return "", "", ErrMissingToken
	}

	t, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !t.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || claims.Identity == "" {
		return "", "", ErrInvalidToken
	}
	if !allowedRoles[claims.Role] {
		return "", "", ErrRoleNotAllowed
	}
	return claims.Identity, claims.Role, nil
}

// MintToken signs a connection credential. Used by tests and ops tooling;
// production tokens come from the facility's auth service with the same
// shared secret.
func MintToken(identity, role, secret string, ttl time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Identity: identity,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	return t.SignedString([]byte(secret))
}
