package board

import (
	"github.com/notnil/chess"
)

// Layout places chess pieces on positions for rendering.
type Layout map[Position]chess.Piece

func (l Layout) chessBoard() *chess.Board {
	squares := make(map[chess.Square]chess.Piece, len(l))
	for pos, pc := range l {
		if sq := pos.Square(); sq != chess.NoSquare {
			squares[sq] = pc
		}
	}
	return chess.NewBoard(squares)
}

// Render draws the layout as an ASCII board, rank 8 at the top.
func Render(l Layout) string {
	return l.chessBoard().Draw()
}

// Placement returns the piece-placement field of a FEN string for the layout.
func Placement(l Layout) string {
	return l.chessBoard().String()
}
