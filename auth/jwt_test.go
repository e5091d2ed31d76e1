package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	uid := uuid.New()

	token, err := GenerateJWT("test-secret", uid, "puck@example.com")
	require.NoError(t, err)

	claims, err := ValidateJWT("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, uid.String(), claims.UID)
	assert.Equal(t, "puck@example.com", claims.Email)
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("test-secret", uuid.New(), "puck@example.com")
	require.NoError(t, err)

	_, err = ValidateJWT("other-secret", token)
	assert.Error(t, err)
}

func TestJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("test-secret", "not.a.token")
	assert.Error(t, err)
}
