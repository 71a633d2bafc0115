package board

import (
	"errors"
	"strings"
	"testing"

	"github.com/notnil/chess"
)

func TestPositionEquality(t *testing.T) {
	pos := Pos(1, 1)
	if pos.X != 1 || pos.Y != 1 {
		t.Errorf("Expected (1, 1), got %s", pos)
	}

	if pos != Pos(1, 1) {
		t.Error("Expected positions with equal coordinates to be equal")
	}

	seen := map[Position]bool{Pos(4, 5): true}
	if !seen[Pos(4, 5)] {
		t.Error("Expected position to work as a map key")
	}
}

func TestNewPosition(t *testing.T) {
	tests := []struct {
		x, y  int
		valid bool
	}{
		{1, 1, true},
		{8, 8, true},
		{4, 5, true},
		{0, 1, false},
		{1, 0, false},
		{9, 3, false},
		{3, 9, false},
		{-1, -1, false},
	}

	for _, test := range tests {
		pos, err := NewPosition(test.x, test.y)
		if test.valid {
			if err != nil {
				t.Errorf("NewPosition(%d, %d) returned error %v", test.x, test.y, err)
			}
			if pos != Pos(test.x, test.y) {
				t.Errorf("NewPosition(%d, %d) = %s", test.x, test.y, pos)
			}
			continue
		}
		if !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("NewPosition(%d, %d) expected ErrOutOfBounds, got %v", test.x, test.y, err)
		}
	}
}

func TestPositionString(t *testing.T) {
	if got := Pos(2, 5).String(); got != "(2, 5)" {
		t.Errorf("Expected (2, 5), got %s", got)
	}
}

func TestSquareConversion(t *testing.T) {
	tests := []struct {
		pos  Position
		name string
		sq   chess.Square
	}{
		{Pos(1, 1), "a1", chess.A1},
		{Pos(3, 3), "c3", chess.C3},
		{Pos(2, 2), "b2", chess.B2},
		{Pos(8, 8), "h8", chess.H8},
		{Pos(2, 5), "b5", chess.B5},
	}

	for _, test := range tests {
		if got := test.pos.Square(); got != test.sq {
			t.Errorf("%s.Square() = %v, expected %v", test.pos, got, test.sq)
		}
		if got := test.pos.Name(); got != test.name {
			t.Errorf("%s.Name() = %s, expected %s", test.pos, got, test.name)
		}

		parsed, err := ParseSquare(test.name)
		if err != nil {
			t.Fatalf("ParseSquare(%s) returned error %v", test.name, err)
		}
		if parsed != test.pos {
			t.Errorf("ParseSquare(%s) = %s, expected %s", test.name, parsed, test.pos)
		}
	}

	if Pos(0, 9).Square() != chess.NoSquare {
		t.Error("Expected out of range position to map to NoSquare")
	}
}

func TestParseSquareRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{"", "a", "z9", "i1", "a0", "a9", "abc"} {
		if _, err := ParseSquare(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestPlacement(t *testing.T) {
	layout := Layout{
		Pos(1, 1): chess.WhiteQueen,
		Pos(2, 2): chess.WhiteBishop,
		Pos(3, 3): chess.WhiteKnight,
	}

	expected := "8/8/8/8/8/2N5/1B6/Q7"
	if got := Placement(layout); got != expected {
		t.Errorf("Expected placement %s, got %s", expected, got)
	}

	drawn := Render(layout)
	if !strings.Contains(drawn, "A B C D E F G H") {
		t.Errorf("Expected file labels in rendering, got %q", drawn)
	}
}
