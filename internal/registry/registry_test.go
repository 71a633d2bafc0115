package registry

import (
	"errors"
	"testing"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

func TestSetAndLookup(t *testing.T) {
	r := New()

	if _, ok := r.Lookup(piece.Knight); ok {
		t.Error("Expected empty registry")
	}

	if err := r.Set(piece.Knight, board.Pos(3, 3)); err != nil {
		t.Fatalf("Set returned error %v", err)
	}
	pos, ok := r.Lookup(piece.Knight)
	if !ok || pos != board.Pos(3, 3) {
		t.Errorf("Expected knight at (3, 3), got %s (%v)", pos, ok)
	}

	// Overwriting the same kind keeps a single entry.
	if err := r.Set(piece.Knight, board.Pos(5, 4)); err != nil {
		t.Fatalf("Set returned error %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", r.Len())
	}
	if r.Occupied(board.Pos(3, 3)) {
		t.Error("Expected (3, 3) to be vacated")
	}
	if !r.Occupied(board.Pos(5, 4)) {
		t.Error("Expected (5, 4) to be occupied")
	}
}

func TestSetRejectsCollisions(t *testing.T) {
	r := New()
	if err := r.Set(piece.Queen, board.Pos(1, 1)); err != nil {
		t.Fatalf("Set returned error %v", err)
	}

	err := r.Set(piece.Bishop, board.Pos(1, 1))
	if !errors.Is(err, ErrOccupied) {
		t.Errorf("Expected ErrOccupied, got %v", err)
	}
	if _, ok := r.Lookup(piece.Bishop); ok {
		t.Error("Rejected write must not register the bishop")
	}

	// A kind may be re-set onto its own square.
	if err := r.Set(piece.Queen, board.Pos(1, 1)); err != nil {
		t.Errorf("Expected re-set to succeed, got %v", err)
	}
}

func TestSetRejectsInvalidInput(t *testing.T) {
	r := New()
	if err := r.Set(piece.Knight, board.Pos(0, 9)); !errors.Is(err, board.ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds, got %v", err)
	}
	if err := r.Set(piece.Kind(8), board.Pos(4, 4)); !errors.Is(err, piece.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Expected no entries, got %d", r.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	_ = r.Set(piece.Bishop, board.Pos(2, 2))

	snap := r.Snapshot()
	snap[piece.Bishop] = board.Pos(8, 8)
	snap[piece.Knight] = board.Pos(3, 3)

	if pos, _ := r.Lookup(piece.Bishop); pos != board.Pos(2, 2) {
		t.Errorf("Snapshot mutation leaked into registry: %s", pos)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", r.Len())
	}
}

func TestLayout(t *testing.T) {
	r := New()
	_ = r.Set(piece.Queen, board.Pos(1, 1))
	_ = r.Set(piece.Knight, board.Pos(3, 3))

	if got := board.Placement(r.Layout()); got != "8/8/8/8/8/2N5/8/Q7" {
		t.Errorf("Unexpected placement %s", got)
	}
}

func TestRegistrySatisfiesOccupancy(t *testing.T) {
	var _ piece.Occupancy = New()
}
