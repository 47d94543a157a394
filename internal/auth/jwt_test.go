package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSessionToken_RoundTrip(t *testing.T) {
	sess, err := NewSessionToken(testSecret, 42, true, time.Hour)
	require.NoError(t, err)
	assert.Len(t, sess.CSRF, 64)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	claims, err := ParseSessionToken(testSecret, sess.Token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, sess.CSRF, claims.CSRF)
}

func TestParseSessionToken_WrongSecret(t *testing.T) {
	sess, err := NewSessionToken(testSecret, 1, false, time.Hour)
	require.NoError(t, err)

	_, err = ParseSessionToken("another-secret", sess.Token)
	assert.Error(t, err)
}

func TestParseSessionToken_Expired(t *testing.T) {
	sess, err := NewSessionToken(testSecret, 1, false, -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(testSecret, sess.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseSessionToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := SessionClaims{
		CSRF:             "x",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseSessionToken(testSecret, unsigned)
	assert.Error(t, err)
}

func TestParseSessionToken_RejectsMissingCSRF(t *testing.T) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseSessionToken(testSecret, signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewCSRFToken_Unique(t *testing.T) {
	a, err := NewCSRFToken()
	require.NoError(t, err)
	b, err := NewCSRFToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
