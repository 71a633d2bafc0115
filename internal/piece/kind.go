package piece

import (
	"errors"
	"fmt"
	"strings"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/moves"
	"github.com/notnil/chess"
)

var ErrUnknownKind = errors.New("unknown piece kind")

// Kind is the closed set of pieces on the board.
type Kind int

const (
	Knight Kind = iota
	Bishop
	Queen
)

var kinds = [...]Kind{Knight, Bishop, Queen}

// Kinds returns every kind in setup order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds[:])
	return out
}

func (k Kind) Valid() bool {
	return k >= Knight && k <= Queen
}

func (k Kind) String() string {
	switch k {
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Queen:
		return "Queen"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DefaultStart is where a kind is placed when the registry has no entry for it.
// The three defaults never collide.
func DefaultStart(k Kind) (board.Position, error) {
	switch k {
	case Knight:
		return board.Pos(3, 3), nil
	case Bishop:
		return board.Pos(2, 2), nil
	case Queen:
		return board.Pos(1, 1), nil
	default:
		return board.Position{}, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
}

// Rules dispatches a kind to its move generator. It returns nil for kinds
// outside the closed set.
func Rules(k Kind) moves.Rule {
	switch k {
	case Knight:
		return moves.Knight
	case Bishop:
		return moves.Bishop
	case Queen:
		return moves.Queen
	default:
		return nil
	}
}

// ChessPiece maps the kind to the notnil/chess piece used for rendering.
func (k Kind) ChessPiece() chess.Piece {
	switch k {
	case Knight:
		return chess.WhiteKnight
	case Bishop:
		return chess.WhiteBishop
	case Queen:
		return chess.WhiteQueen
	default:
		return chess.NoPiece
	}
}
