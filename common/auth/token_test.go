package auth_test

import (
	"testing"
	"time"

	"marketplace-service/common/auth"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func sign(t *testing.T, claims jwt.MapClaims, key []byte) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestIdentityFromToken(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": "u1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()}, secret)

	id, err := auth.IdentityFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "admin", id.Role)
}

func TestIdentityFromToken_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
		key   []byte
	}{
		{"expired", sign(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, secret), secret},
		{"wrong key", sign(t, jwt.MapClaims{"sub": "u1"}, []byte("other")), secret},
		{"no subject", sign(t, jwt.MapClaims{"role": "admin"}, secret), secret},
		{"no secret configured", sign(t, jwt.MapClaims{"sub": "u1"}, secret), nil},
		{"garbage", "not-a-jwt", secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.IdentityFromToken(tt.token, tt.key)
			assert.Error(t, err)
		})
	}
}

func TestParseAndValidateToken_Type(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": "u1", "typ": "refresh"}, secret)

	_, err := auth.ParseAndValidateToken(token, secret, "access")
	assert.Error(t, err)
	_, err = auth.ParseAndValidateToken(token, secret, "refresh")
	assert.NoError(t, err)
}
