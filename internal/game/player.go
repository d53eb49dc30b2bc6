// internal/game/player.go
package game

// Player identifies one of the two sides of a match.
type Player int

const (
	PlayerOne Player = iota + 1
	PlayerTwo
)

// Other returns the opposing player.
func (p Player) Other() Player {
	if p == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

// Select picks one of two values by side: PlayerOne gets the first.
func Select[T any](p Player, one, two T) T {
	if p == PlayerOne {
		return one
	}
	return two
}

func (p Player) String() string {
	if p == PlayerOne {
		return "one"
	}
	return "two"
}
