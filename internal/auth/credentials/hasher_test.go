package credentials

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, version, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)
	require.Equal(t, HashVersionBcrypt, version)
	require.NotEqual(t, "correct-horse-battery", hash)

	require.NoError(t, VerifyPassword(hash, "correct-horse-battery"))
	require.Error(t, VerifyPassword(hash, "wrong-password"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, _, err := HashPassword("short")
	require.Error(t, err)
}

func TestHashPassword_SaltVaries(t *testing.T) {
	a, _, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)
	b, _, err := HashPassword("correct-horse-battery")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
