// internal/game/board.go
package game

import (
	"errors"
	"math/rand/v2"
)

// FieldSize is the width and height of the playing field.
const FieldSize = 7

var (
	// ErrInvalidColumn is returned for out-of-range or full columns.
	ErrInvalidColumn = errors.New("invalid column")
	// ErrNotYourTurn is returned when the opponent has the turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrGameOver is returned for moves after the game ended.
	ErrGameOver = errors.New("game is over")
)

// Winner records a finished game. Player is nil when the board filled
// without a four-in-a-row. RematchRequester tracks which side has
// already voted for a rematch.
type Winner struct {
	Player           *Player
	RematchRequester *Player
}

// Board holds the authoritative state of one Connect-Four game.
// Column-major: field[col][row], row FieldSize-1 is the bottom.
// Board is a plain value owned by exactly one Lobby; it performs no
// I/O and is not safe for concurrent use.
type Board struct {
	field  [FieldSize][FieldSize]Player // 0 = empty cell
	Turn   Player
	Winner *Winner
}

// NewBoard creates an empty board with a uniformly random first turn.
func NewBoard() *Board {
	return &Board{Turn: randomPlayer()}
}

// NewBoardWithTurn creates an empty board with a fixed first turn.
func NewBoardWithTurn(turn Player) *Board {
	return &Board{Turn: turn}
}

func randomPlayer() Player {
	if rand.IntN(2) == 0 {
		return PlayerOne
	}
	return PlayerTwo
}

// Reset clears the field, forgets the winner and re-randomises the
// first turn.
func (b *Board) Reset() {
	b.field = [FieldSize][FieldSize]Player{}
	b.Winner = nil
	b.Turn = randomPlayer()
}

// Cell returns the occupant of (col, row), or 0 for an empty cell.
func (b *Board) Cell(col, row int) Player {
	return b.field[col][row]
}

// Place drops a chip for player into column. It returns the winner
// record if this move ended the game (win or draw), or an error if
// the move is illegal. On success the turn flips to the other side.
func (b *Board) Place(column int, player Player) (*Winner, error) {
	if b.Winner != nil {
		return nil, ErrGameOver
	}
	if column < 0 || column >= FieldSize {
		return nil, ErrInvalidColumn
	}
	if player != b.Turn {
		return nil, ErrNotYourTurn
	}
	row := -1
	for r := FieldSize - 1; r >= 0; r-- {
		if b.field[column][r] == 0 {
			row = r
			break
		}
	}
	if row < 0 {
		return nil, ErrInvalidColumn
	}
	b.field[column][row] = player
	b.Turn = player.Other()

	if b.hasFourInARow(player) {
		p := player
		b.Winner = &Winner{Player: &p}
		return b.Winner, nil
	}
	if b.full() {
		b.Winner = &Winner{}
		return b.Winner, nil
	}
	return nil, nil
}

func (b *Board) full() bool {
	for col := 0; col < FieldSize; col++ {
		if b.field[col][0] == 0 {
			return false
		}
	}
	return true
}

// hasFourInARow scans horizontals, verticals and both diagonals.
func (b *Board) hasFourInARow(player Player) bool {
	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	for col := 0; col < FieldSize; col++ {
		for row := 0; row < FieldSize; row++ {
			if b.field[col][row] != player {
				continue
			}
			for _, d := range dirs {
				if b.runFrom(col, row, d[0], d[1], player) >= 4 {
					return true
				}
			}
		}
	}
	return false
}

func (b *Board) runFrom(col, row, dc, dr int, player Player) int {
	n := 0
	for col >= 0 && col < FieldSize && row >= 0 && row < FieldSize && b.field[col][row] == player {
		n++
		col += dc
		row += dr
	}
	return n
}
