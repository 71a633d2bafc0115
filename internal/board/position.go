package board

import (
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

const (
	// Min and Max bound both coordinates of a square.
	Min = 1
	Max = 8
)

var ErrOutOfBounds = errors.New("position out of bounds")

// Position is a 1-indexed board coordinate. X maps to the file (a..h) and
// Y to the rank (1..8).
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pos builds a Position without checking bounds. Move generators that already
// clip to the board use it.
func Pos(x, y int) Position {
	return Position{X: x, Y: y}
}

// NewPosition builds a Position and rejects coordinates outside the board.
func NewPosition(x, y int) (Position, error) {
	p := Position{X: x, Y: y}
	if !p.Valid() {
		return Position{}, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return p, nil
}

func InBounds(v int) bool {
	return v >= Min && v <= Max
}

func (p Position) Valid() bool {
	return InBounds(p.X) && InBounds(p.Y)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Square converts the position to a notnil/chess square. Out-of-range
// positions map to chess.NoSquare.
func (p Position) Square() chess.Square {
	if !p.Valid() {
		return chess.NoSquare
	}
	return chess.Square((p.Y-1)*8 + (p.X - 1))
}

// Name returns the algebraic square name, e.g. "c3".
func (p Position) Name() string {
	return p.Square().String()
}

// ParseSquare parses algebraic notation ("a1".."h8") into a Position.
func ParseSquare(sq string) (Position, error) {
	if len(sq) != 2 {
		return Position{}, fmt.Errorf("invalid square notation %q", sq)
	}

	file := int(sq[0]) - 'a'
	rank := int(sq[1]) - '1'

	return NewPosition(file+1, rank+1)
}
