// Package auth issues and verifies the bearer tokens that gate the
// library's write endpoints.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles allowed to change catalogs, directories and the ledger.
const (
	RoleLibrarian = "librarian"
	RoleStaff     = "staff"
	RolePrincipal = "principal"
)

// ErrInvalidRole is returned when a token is minted for, or carries, an
// unknown role.
var ErrInvalidRole = errors.New("role must be one of librarian, staff, principal")

// ValidRole reports whether role may hold a token.
func ValidRole(role string) bool {
	switch role {
	case RoleLibrarian, RoleStaff, RolePrincipal:
		return true
	}
	return false
}

// Claims is the token payload: who the caller is, their role and the school
// code the token was minted for.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	School string `json:"school,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens with one shared secret.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenManager returns a manager for secret. A blank issuer becomes
// "school-library".
func NewTokenManager(secret, issuer string) *TokenManager {
	if issuer == "" {
		issuer = "school-library"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// GenerateToken signs an HS256 token for userID with the given role.
func (tm *TokenManager) GenerateToken(userID, role, school string, expiresIn time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id required")
	}
	if !ValidRole(role) {
		return "", ErrInvalidRole
	}
	if len(tm.secret) == 0 {
		return "", fmt.Errorf("signing secret not configured")
	}
	now := tm.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		School: school,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ValidateToken checks the signature, issuer, expiry and role of
// tokenString and returns its claims.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !ValidRole(claims.Role) {
		return nil, ErrInvalidRole
	}
	return claims, nil
}

// ExtractToken returns the token from an "Authorization: Bearer <token>"
// header value.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
