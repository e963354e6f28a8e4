package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("secret")

	token, err := svc.GenerateAdminToken(7, 2, []string{PermissionExamsMonitor}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, 2, claims.RoleID)
	assert.Equal(t, "7", claims.Subject)
	assert.True(t, claims.HasPermission(PermissionExamsMonitor))
	assert.False(t, claims.HasPermission(PermissionExamsWrite))
}

func TestAuthService_RejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("one").GenerateAdminToken(1, 1, nil, time.Hour)
	require.NoError(t, err)

	_, err = NewAuthService("two").ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrSignatureInvalid)
}

func TestAuthService_RejectsExpired(t *testing.T) {
	svc := NewAuthService("secret")
	token, err := svc.GenerateAdminToken(1, 1, nil, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthService_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewAuthService("secret")
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{TokenType: TokenTypeAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)
}
