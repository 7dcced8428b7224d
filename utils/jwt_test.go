package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "unit-test-secret")
	os.Exit(m.Run())
}

func TestGenerateTokenPair(t *testing.T) {
	access, refresh, err := GenerateTokenPair(42, "octocat")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := ParseToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "octocat", claims.Username)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	claims, err = ParseToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestRefreshAccessToken(t *testing.T) {
	_, refresh, err := GenerateTokenPair(7, "octocat")
	require.NoError(t, err)

	access, err := RefreshAccessToken(refresh)
	require.NoError(t, err)

	claims, err := ParseAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "octocat", claims.Username)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	access, _, err := GenerateTokenPair(7, "octocat")
	require.NoError(t, err)

	_, err = RefreshAccessToken(access)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsRefreshToken(t *testing.T) {
	_, refresh, err := GenerateTokenPair(7, "octocat")
	require.NoError(t, err)

	_, err = ParseAccessToken(refresh)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not.a.jwt")
	assert.Error(t, err)

	_, err = ParseToken("")
	assert.Error(t, err)
}

func TestParseTokenRejectsWrongSignature(t *testing.T) {
	// Token signed with a different secret
	forged := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJ1c2VyX2lkIjoxLCJ1c2VybmFtZSI6ImV2aWwiLCJ0b2tlbl90eXBlIjoiYWNjZXNzIn0." +
		"p7v1DsP0z1Rl2v5mS0kq3Y1w8cJb4x6a9d2e5f8g0hA"
	_, err := ParseToken(forged)
	assert.Error(t, err)
}
