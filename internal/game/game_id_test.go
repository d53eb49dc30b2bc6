package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateGameID(t *testing.T) {
	id := GenerateGameID(func(string) bool { return false })
	assert.Len(t, id, GameIDLen)
	assert.True(t, ValidGameID(id))
}

func TestGenerateGameIDSkipsCollisions(t *testing.T) {
	taken := map[string]bool{}
	first := GenerateGameID(func(string) bool { return false })
	taken[first] = true

	calls := 0
	id := GenerateGameID(func(s string) bool {
		calls++
		return taken[s]
	})
	assert.False(t, taken[id])
	assert.GreaterOrEqual(t, calls, 1)
}

func TestValidGameID(t *testing.T) {
	assert.True(t, ValidGameID("ABCD"))
	assert.False(t, ValidGameID("ABC"))
	assert.False(t, ValidGameID("ABCDE"))
	assert.False(t, ValidGameID("ABCI"), "I is not in the alphabet")
	assert.False(t, ValidGameID("ABCV"), "V is not in the alphabet")
	assert.False(t, ValidGameID("ABCW"), "W is not in the alphabet")
	assert.False(t, ValidGameID("abcd"), "lowercase is rejected")
}
