package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("secret", 42, time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseAccessTokenRejects(t *testing.T) {
	valid, err := GenerateAccessToken("secret", 42, time.Minute)
	require.NoError(t, err)
	expired, err := GenerateAccessToken("secret", 42, -time.Minute)
	require.NoError(t, err)
	anonymous, err := GenerateAccessToken("secret", 0, time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{UserID: 42}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct{ token, secret string }{
		"wrong secret": {valid, "other"},
		"expired":      {expired, "secret"},
		"no user":      {anonymous, "secret"},
		"unsigned":     {none, "secret"},
		"garbage":      {"not.a.jwt", "secret"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.token, tc.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestEmptySecretNeverVerifies(t *testing.T) {
	_, err := GenerateAccessToken("", 42, time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{UserID: 42}).SignedString([]byte(""))
	require.NoError(t, err)

	_, err = ParseAccessToken(forged, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
