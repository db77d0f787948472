package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToken(t *testing.T) {
	t.Parallel()

	token := signedToken(t, jwt.MapClaims{
		"account_id": float64(1234),
		"roles":      []any{"admin", "agent"},
		"exp":        float64(time.Now().Add(time.Hour).Unix()),
	})

	claims, err := DecodeToken(token)
	require.NoError(t, err)

	assert.EqualValues(t, 1234, claims.AccountID)
	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("viewer"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestDecodeToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := DecodeToken("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestValidateManualToken(t *testing.T) {
	t.Parallel()

	future := float64(time.Now().Add(time.Hour).Unix())
	past := float64(time.Now().Add(-time.Hour).Unix())

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		wantErr error
	}{
		{"valid admin token", jwt.MapClaims{"account_id": float64(9), "roles": []any{"admin"}, "exp": future}, nil},
		{"expired", jwt.MapClaims{"account_id": float64(9), "roles": []any{"admin"}, "exp": past}, ErrTokenExpired},
		{"missing account", jwt.MapClaims{"roles": []any{"admin"}, "exp": future}, ErrMissingAccountID},
		{"not admin", jwt.MapClaims{"account_id": float64(9), "roles": []any{"agent"}, "exp": future}, ErrAdminRoleRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := ValidateManualToken(signedToken(t, tt.claims))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.EqualValues(t, 9, claims.AccountID)
		})
	}
}

func TestValidateManualToken_RejectsNonJWTShapes(t *testing.T) {
	t.Parallel()

	_, err := ValidateManualToken("plain-api-key")
	require.ErrorIs(t, err, ErrTokenMalformed)
}
