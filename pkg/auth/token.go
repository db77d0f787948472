package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed is returned when a bearer token cannot be decoded at
	// all.
	ErrTokenMalformed = errors.New("bearer token is malformed")

	// ErrTokenExpired is returned by manual-token validation when the token's
	// exp claim is in the past.
	ErrTokenExpired = errors.New("bearer token has expired")

	// ErrAdminRoleRequired is returned when a decoded token lacks the admin
	// role. The token is technically valid; the holder just cannot use this
	// tool.
	ErrAdminRoleRequired = errors.New("admin role required")

	// ErrMissingAccountID is returned when a token carries no account_id
	// claim.
	ErrMissingAccountID = errors.New("bearer token carries no account_id claim")
)

// TokenClaims is the subset of the long-lived bearer token's payload the
// tool inspects. The decode is trust-but-verify only: no signature check is
// possible (or needed) client-side, the configuration API enforces the real
// authorization.
type TokenClaims struct {
	AccountID int64
	Roles     []string
	ExpiresAt time.Time
}

// DecodeToken extracts the claims of a bearer token without verifying its
// signature.
func DecodeToken(token string) (*TokenClaims, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	decoded := &TokenClaims{}

	if accountID, ok := claims["account_id"].(float64); ok {
		decoded.AccountID = int64(accountID)
	}

	if rawRoles, ok := claims["roles"].([]any); ok {
		for _, raw := range rawRoles {
			if role, ok := raw.(string); ok {
				decoded.Roles = append(decoded.Roles, role)
			}
		}
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		decoded.ExpiresAt = exp.Time
	}

	return decoded, nil
}

// HasRole reports whether the token carries the given role claim.
func (c *TokenClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ValidateManualToken checks a manually pasted bearer token: shape, expiry,
// account claim, and admin role. Used when the programmatic login cannot run
// (SSO-only or captcha-gated accounts).
func ValidateManualToken(token string) (*TokenClaims, error) {
	if !strings.HasPrefix(token, "eyJ") {
		return nil, fmt.Errorf("%w: token should start with \"eyJ\"", ErrTokenMalformed)
	}

	claims, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	if claims.AccountID == 0 {
		return nil, ErrMissingAccountID
	}

	if !claims.ExpiresAt.IsZero() && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	if !claims.HasRole("admin") {
		return nil, ErrAdminRoleRequired
	}

	return claims, nil
}
