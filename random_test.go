package identity_test

import (
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	id, err := identity.GenerateID(24)
	require.NoError(t, err)
	assert.Len(t, id, 24)
	assert.Regexp(t, "^[0-9A-Za-z]+$", id)
}

func TestGenerateIDDefaultsLength(t *testing.T) {
	id, err := identity.GenerateID(0)
	require.NoError(t, err)
	assert.Len(t, id, identity.DefaultIDLength)

	id, err = identity.GenerateID(-5)
	require.NoError(t, err)
	assert.Len(t, id, identity.DefaultIDLength)
}

func TestGenerateIDUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := identity.GenerateID(24)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGenerateCode(t *testing.T) {
	code, err := identity.GenerateCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, "^[0-9]+$", code)
}

func TestGenerateCodeDefaultsDigits(t *testing.T) {
	code, err := identity.GenerateCode(0)
	require.NoError(t, err)
	assert.Len(t, code, identity.DefaultCodeDigits)
}
