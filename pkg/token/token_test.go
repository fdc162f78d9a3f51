package token

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tokenStr, err := GenerateJWT("u1", string(RoleMember), "chat_service")
	require.NoError(t, err)

	claims, err := ParseJWT(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.MemberID)
	assert.Equal(t, string(RoleMember), claims.Role)
	assert.Equal(t, "chat_service", claims.Issuer)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{MemberID: "u1"})
	tokenStr, err := other.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	_, err = ParseJWT(tokenStr)
	assert.Error(t, err)
}

func TestParseJWT_MissingMember(t *testing.T) {
	tokenStr, err := GenerateJWT("", string(RoleMember), "chat_service")
	require.NoError(t, err)

	_, err = ParseJWT(tokenStr)
	assert.Error(t, err)
}
