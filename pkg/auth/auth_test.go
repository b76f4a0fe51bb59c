package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	session := UserSession{ID: 42, Name: "ann"}

	token, err := GenerateToken(session)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.User.ID)
	assert.Equal(t, "ann", claims.User.Name)
	assert.NotEmpty(t, claims.RegisteredClaims.ID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("s3cret-Pass")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("s3cret-Pass", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	assert.Error(t, ValidatePasswordStrength("short"))
	assert.NoError(t, ValidatePasswordStrength("long enough"))
}
