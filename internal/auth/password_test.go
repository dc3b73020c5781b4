package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("atelier-bois")
	require.NoError(t, err)
	assert.NotEqual(t, "atelier-bois", hash)

	assert.True(t, VerifyPassword(hash, "atelier-bois"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "atelier-bois"))
}
