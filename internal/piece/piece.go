package piece

import (
	"errors"
	"fmt"

	"github.com/justinabrahms/piecewalk/internal/board"
)

var (
	ErrNoLegalMove   = errors.New("no legal move available")
	ErrInvalidBudget = errors.New("move budget must not be negative")
)

// Occupancy is the read side of the position registry.
type Occupancy interface {
	Lookup(k Kind) (board.Position, bool)
	Occupied(pos board.Position) bool
}

// Rand is the source used to pick among candidates. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Piece is a move strategy for one kind. It holds no current position: the
// registry owns that.
type Piece struct {
	Kind  Kind
	Moves int
	Start board.Position
}

// New builds a piece that resumes from the kind's registered position, or
// from the kind's default square when the registry has no entry for it.
func New(k Kind, moves int, occ Occupancy) (Piece, error) {
	if !k.Valid() {
		return Piece{}, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	if moves < 0 {
		return Piece{}, fmt.Errorf("%w: %d", ErrInvalidBudget, moves)
	}

	start, ok := board.Position{}, false
	if occ != nil {
		start, ok = occ.Lookup(k)
	}
	if !ok {
		start, _ = DefaultStart(k)
	}

	return Piece{Kind: k, Moves: moves, Start: start}, nil
}

// Setup confirms the start position. It does not touch the registry.
func (p Piece) Setup() board.Position {
	return p.Start
}

// Candidates returns the destinations a kind can reach from a position that
// no registered piece currently holds.
func Candidates(k Kind, from board.Position, occ Occupancy) ([]board.Position, error) {
	rule := Rules(k)
	if rule == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}

	all := rule(from)
	free := make([]board.Position, 0, len(all))
	for _, c := range all {
		if !c.Valid() {
			return nil, fmt.Errorf("%s from %s generated %s: %w", k, from, c, board.ErrOutOfBounds)
		}
		if occ != nil && occ.Occupied(c) {
			continue
		}
		free = append(free, c)
	}
	return free, nil
}

// Walk advances the piece Moves times, each step picking uniformly among the
// free candidates from the previous step's square. Occupancy is read once per
// step and is not updated between steps. It returns the visited squares.
func (p Piece) Walk(occ Occupancy, rng Rand) ([]board.Position, error) {
	path := make([]board.Position, 0, p.Moves)
	pos := p.Start

	for step := 1; step <= p.Moves; step++ {
		free, err := Candidates(p.Kind, pos, occ)
		if err != nil {
			return nil, err
		}
		if len(free) == 0 {
			return nil, fmt.Errorf("%s at %s, step %d: %w", p.Kind, pos, step, ErrNoLegalMove)
		}

		pos = free[rng.Intn(len(free))]
		path = append(path, pos)
	}

	return path, nil
}

// Play walks the piece and returns where it ends up.
func (p Piece) Play(occ Occupancy, rng Rand) (board.Position, error) {
	path, err := p.Walk(occ, rng)
	if err != nil {
		return board.Position{}, err
	}
	if len(path) == 0 {
		return p.Start, nil
	}
	return path[len(path)-1], nil
}
