// Package moves generates the squares a piece can reach in one move from a
// position on an empty board. Occupancy is the caller's concern.
package moves

import (
	"github.com/justinabrahms/piecewalk/internal/board"
)

// Rule computes the candidate destinations from a position.
type Rule func(board.Position) []board.Position

type offset struct {
	dx, dy int
}

var knightOffsets = [8]offset{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

var diagonalDirections = [4]offset{
	{1, 1}, {-1, -1}, {1, -1}, {-1, 1},
}

// Knight returns the L-shaped jumps that stay on the board.
func Knight(pos board.Position) []board.Position {
	result := make([]board.Position, 0, len(knightOffsets))
	for _, o := range knightOffsets {
		x, y := pos.X+o.dx, pos.Y+o.dy
		if board.InBounds(x) && board.InBounds(y) {
			result = append(result, board.Pos(x, y))
		}
	}
	return result
}

// Horizontal returns every other square sharing the position's X.
func Horizontal(pos board.Position) []board.Position {
	result := make([]board.Position, 0, board.Max-board.Min)
	for i := board.Min; i <= board.Max; i++ {
		if i != pos.Y {
			result = append(result, board.Pos(pos.X, i))
		}
	}
	return result
}

// Vertical returns every other square sharing the position's Y.
func Vertical(pos board.Position) []board.Position {
	result := make([]board.Position, 0, board.Max-board.Min)
	for i := board.Min; i <= board.Max; i++ {
		if i != pos.X {
			result = append(result, board.Pos(i, pos.Y))
		}
	}
	return result
}

// Diagonal casts a ray in each diagonal direction until the board edge. The
// origin is never part of the result.
func Diagonal(pos board.Position) []board.Position {
	var result []board.Position
	for _, d := range diagonalDirections {
		x, y := pos.X, pos.Y
		for board.InBounds(x+d.dx) && board.InBounds(y+d.dy) {
			x += d.dx
			y += d.dy
			result = append(result, board.Pos(x, y))
		}
	}
	return result
}

func Bishop(pos board.Position) []board.Position {
	return Diagonal(pos)
}

// Queen combines rank, file and diagonal rays. The three sets are disjoint so
// no de-duplication is needed.
func Queen(pos board.Position) []board.Position {
	result := make([]board.Position, 0, 4*(board.Max-board.Min))
	result = append(result, Horizontal(pos)...)
	result = append(result, Vertical(pos)...)
	result = append(result, Diagonal(pos)...)
	return result
}
