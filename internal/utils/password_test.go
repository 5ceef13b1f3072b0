package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "secret123"))
	assert.False(t, VerifyPassword(h, "secret124"))
	assert.False(t, VerifyPassword("", "secret123"))
}

func TestHashPasswordClampsCost(t *testing.T) {
	h, err := HashPassword("secret123", 0)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 80), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNeedsRehash(t *testing.T) {
	h, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, NeedsRehash(h, bcrypt.MinCost))
	assert.True(t, NeedsRehash(h, bcrypt.MinCost+1))
	assert.False(t, NeedsRehash("not-a-hash", bcrypt.MinCost))
}
