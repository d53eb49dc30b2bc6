// internal/game/game_id.go
package game

import (
	"math/rand/v2"
	"strings"
)

// GameIDLen is the length of a lobby game id.
const GameIDLen = 4

// gameIDAlphabet omits glyphs that are easy to misread when a player
// dictates an id (I, V, W).
const gameIDAlphabet = "ABCDEFGHJKLMNOPQRSTUXYZ"

// GenerateGameID mints a game id that does not collide with any id
// for which exists returns true.
func GenerateGameID(exists func(string) bool) string {
	for {
		id := randomGameID()
		if !exists(id) {
			return id
		}
	}
}

func randomGameID() string {
	var sb strings.Builder
	for i := 0; i < GameIDLen; i++ {
		sb.WriteByte(gameIDAlphabet[rand.IntN(len(gameIDAlphabet))])
	}
	return sb.String()
}

// ValidGameID reports whether s could have been produced by
// GenerateGameID.
func ValidGameID(s string) bool {
	if len(s) != GameIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(gameIDAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
