// internal/models/user_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		id, err := NewUserID()
		require.NoError(t, err)
		assert.True(t, ValidUserID(id), "minted id %q is not well formed", id)
		assert.False(t, seen[id], "id %q minted twice", id)
		seen[id] = true
	}
}

func TestValidUserID(t *testing.T) {
	assert.True(t, ValidUserID("aaaabbbbcccc"))
	assert.False(t, ValidUserID(""))
	assert.False(t, ValidUserID("aaaabbbbccc"))   // short
	assert.False(t, ValidUserID("aaaabbbbccccd")) // long
	assert.False(t, ValidUserID("AAAABBBBCCCC"))  // upper case
	assert.False(t, ValidUserID("aaaabbbbccgg"))  // non-hex
}
