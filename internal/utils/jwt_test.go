package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "jwt-secret-used-only-in-tests-0123456789"

func newTestJWTManager() *JWTManager {
	return NewJWTManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	manager := newTestJWTManager()

	token, err := manager.GenerateAccessToken("usr_1", "tnt_1", "user@example.com", "Member", "sess_1")
	require.NoError(t, err)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)

	assert.Equal(t, "usr_1", claims.UserID)
	assert.Equal(t, "tnt_1", claims.TenantID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Member", claims.Role)
	assert.Equal(t, "sess_1", claims.SessionID)
	assert.False(t, claims.IsExpired())
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	manager := newTestJWTManager()

	token, err := manager.GenerateRefreshToken("sess_1", "jti-1", 3)
	require.NoError(t, err)

	claims, err := manager.ValidateRefreshToken(token)
	require.NoError(t, err)

	assert.Equal(t, "sess_1", claims.SessionID)
	assert.Equal(t, "jti-1", claims.Jti)
	assert.Equal(t, 3, claims.Version)
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	manager := newTestJWTManager()

	refreshToken, err := manager.GenerateRefreshToken("sess_1", "jti-1", 1)
	require.NoError(t, err)
	_, err = manager.ValidateAccessToken(refreshToken)
	assert.Error(t, err, "a refresh token must not pass as an access token")

	accessToken, err := manager.GenerateAccessToken("usr_1", "tnt_1", "user@example.com", "Member", "sess_1")
	require.NoError(t, err)
	_, err = manager.ValidateRefreshToken(accessToken)
	assert.Error(t, err, "an access token must not pass as a refresh token")
}

func TestTokenSignatureValidation(t *testing.T) {
	manager := newTestJWTManager()
	other := NewJWTManager("another-secret-entirely-0123456789abcdef", 15*time.Minute, 7*24*time.Hour)

	token, err := manager.GenerateAccessToken("usr_1", "tnt_1", "user@example.com", "Member", "sess_1")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)

	_, err = manager.ValidateAccessToken("not.a.token")
	assert.Error(t, err)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	manager := NewJWTManager(testJWTSecret, -time.Minute, 7*24*time.Hour)

	token, err := manager.GenerateAccessToken("usr_1", "tnt_1", "user@example.com", "Member", "sess_1")
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTokenExpirySeconds(t *testing.T) {
	manager := newTestJWTManager()

	assert.Equal(t, int((15 * time.Minute).Seconds()), manager.GetAccessTokenExpiry())
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), manager.GetRefreshTokenExpiry())
}
