// Package registry keeps the authoritative square of every piece kind on the
// board.
package registry

import (
	"errors"
	"fmt"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

var ErrOccupied = errors.New("square already occupied")

// Registry maps each kind to its current position. It holds at most one entry
// per kind and never two kinds on the same square.
type Registry struct {
	positions map[piece.Kind]board.Position
}

func New() *Registry {
	return &Registry{
		positions: make(map[piece.Kind]board.Position),
	}
}

func (r *Registry) Lookup(k piece.Kind) (board.Position, bool) {
	pos, ok := r.positions[k]
	return pos, ok
}

// Occupied reports whether any registered kind holds pos.
func (r *Registry) Occupied(pos board.Position) bool {
	_, ok := r.holder(pos)
	return ok
}

func (r *Registry) holder(pos board.Position) (piece.Kind, bool) {
	for k, p := range r.positions {
		if p == pos {
			return k, true
		}
	}
	return 0, false
}

// Set places k on pos, replacing any earlier entry for k. The write is refused
// when another kind already holds pos or when pos is off the board.
func (r *Registry) Set(k piece.Kind, pos board.Position) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %s", piece.ErrUnknownKind, k)
	}
	if !pos.Valid() {
		return fmt.Errorf("%s to %s: %w", k, pos, board.ErrOutOfBounds)
	}
	if other, ok := r.holder(pos); ok && other != k {
		return fmt.Errorf("%s to %s held by %s: %w", k, pos, other, ErrOccupied)
	}

	r.positions[k] = pos
	return nil
}

func (r *Registry) Len() int {
	return len(r.positions)
}

// Snapshot copies the current entries.
func (r *Registry) Snapshot() map[piece.Kind]board.Position {
	out := make(map[piece.Kind]board.Position, len(r.positions))
	for k, p := range r.positions {
		out[k] = p
	}
	return out
}

// Layout returns the entries as a renderable board layout.
func (r *Registry) Layout() board.Layout {
	layout := make(board.Layout, len(r.positions))
	for k, p := range r.positions {
		layout[p] = k.ChessPiece()
	}
	return layout
}
