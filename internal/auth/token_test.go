package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "greenhouse", 10)
	token, expires, err := tm.GenerateToken(Identity{UserID: "u1", Email: "grower@example.com", Name: "Pat"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expires, 5*time.Second)

	identity, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "grower@example.com", identity.Email)
	assert.Equal(t, "Pat", identity.Name)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "greenhouse", 10)

	other := NewTokenManager("other-secret", "greenhouse", 10)
	forged, _, err := other.GenerateToken(Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = tm.ParseToken(forged)
	assert.Error(t, err, "wrong signing key")

	foreign := NewTokenManager("secret", "someone-else", 10)
	wrongIssuer, _, err := foreign.GenerateToken(Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = tm.ParseToken(wrongIssuer)
	assert.Error(t, err, "wrong issuer")

	noSubject, _, err := tm.GenerateToken(Identity{Email: "x@example.com"})
	require.NoError(t, err)
	_, err = tm.ParseToken(noSubject)
	assert.Error(t, err, "missing subject")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "greenhouse",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err, "expired")
}

func TestSecretHashing(t *testing.T) {
	hashed, err := HashSecret("webhook-secret", 4)
	require.NoError(t, err)

	assert.True(t, VerifySecret(hashed, "webhook-secret"))
	assert.False(t, VerifySecret(hashed, "guess"))
	assert.False(t, VerifySecret(hashed, ""))
	assert.False(t, VerifySecret("", "webhook-secret"), "unset hash rejects everything")
}
