package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/A7-pro/mikerobot/internal/config"
)

func TestTokenRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := IssueToken("alice@example.com", "browser-1")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.UserID())
	assert.Equal(t, "browser-1", claims.ClientID)
	assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	config.AppConfig.JWTSecret = "first"
	token, err := IssueToken("bob", "browser-1")
	require.NoError(t, err)

	config.AppConfig.JWTSecret = "second"
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRequiresClient(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	_, err := IssueToken("bob", "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with the right key but no client claim is still refused.
	bare, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ParseToken(bare)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithm(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		ClientID: "browser-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "bob",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
