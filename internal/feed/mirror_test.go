package feed

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/piece"
	"github.com/justinabrahms/piecewalk/internal/registry"
	"github.com/justinabrahms/piecewalk/internal/web"
)

func setupUpdate() web.Update {
	return web.Update{
		Type: web.UpdateSetup,
		Positions: map[piece.Kind]board.Position{
			piece.Knight: board.Pos(3, 3),
			piece.Bishop: board.Pos(2, 2),
			piece.Queen:  board.Pos(1, 1),
		},
	}
}

func turnUpdate(number int, k piece.Kind, from, to board.Position) web.Update {
	return web.Update{
		Type: web.UpdateTurn,
		Turn: &game.Turn{Number: number, Kind: k, From: from, To: to},
	}
}

func TestMirrorFollowsGame(t *testing.T) {
	m := NewMirror(zerolog.New(zerolog.NewTestWriter(t)))
	g := game.New(game.WithSeed(17), game.WithObserver(func(turn game.Turn) {
		require.NoError(t, m.Apply(web.Update{Type: web.UpdateTurn, Turn: &turn}))
	}))

	require.NoError(t, g.Setup())
	require.NoError(t, m.Apply(web.Update{Type: web.UpdateSetup, Positions: g.Positions()}))
	require.NoError(t, g.Play(40))

	assert.Equal(t, g.Positions(), m.Positions())
	assert.Equal(t, 40, m.LastTurn())
	assert.Equal(t, 0, m.Gaps())
	assert.Equal(t, board.Placement(g.Layout()), board.Placement(m.Layout()))
}

func TestMirrorRejectsOutOfOrderTurns(t *testing.T) {
	m := NewMirror(zerolog.Nop())
	require.NoError(t, m.Apply(setupUpdate()))
	require.NoError(t, m.Apply(turnUpdate(1, piece.Knight, board.Pos(3, 3), board.Pos(5, 4))))

	err := m.Apply(turnUpdate(1, piece.Knight, board.Pos(5, 4), board.Pos(3, 3)))
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, board.Pos(5, 4), m.Positions()[piece.Knight])
}

func TestMirrorDetectsDivergence(t *testing.T) {
	m := NewMirror(zerolog.Nop())
	require.NoError(t, m.Apply(setupUpdate()))

	err := m.Apply(turnUpdate(1, piece.Knight, board.Pos(4, 4), board.Pos(5, 6)))
	assert.ErrorIs(t, err, ErrDiverged)
	assert.Equal(t, 0, m.LastTurn())
}

func TestMirrorRefusesCollisions(t *testing.T) {
	m := NewMirror(zerolog.Nop())
	require.NoError(t, m.Apply(setupUpdate()))

	err := m.Apply(turnUpdate(1, piece.Queen, board.Pos(1, 1), board.Pos(2, 2)))
	assert.ErrorIs(t, err, registry.ErrOccupied)
	assert.Equal(t, board.Pos(1, 1), m.Positions()[piece.Queen])
}

func TestMirrorCountsGaps(t *testing.T) {
	m := NewMirror(zerolog.Nop())
	require.NoError(t, m.Apply(setupUpdate()))

	// Joined late: turn 5 is the first one seen, its origin is trusted.
	require.NoError(t, m.Apply(turnUpdate(5, piece.Bishop, board.Pos(4, 4), board.Pos(6, 6))))
	assert.Equal(t, 1, m.Gaps())
	assert.Equal(t, 5, m.LastTurn())
	assert.Equal(t, board.Pos(6, 6), m.Positions()[piece.Bishop])
}

func TestMirrorSetupResets(t *testing.T) {
	m := NewMirror(zerolog.Nop())
	require.NoError(t, m.Apply(setupUpdate()))
	require.NoError(t, m.Apply(turnUpdate(1, piece.Knight, board.Pos(3, 3), board.Pos(5, 4))))

	require.NoError(t, m.Apply(setupUpdate()))
	assert.Equal(t, 0, m.LastTurn())
	assert.Equal(t, board.Pos(3, 3), m.Positions()[piece.Knight])

	assert.Error(t, m.Apply(web.Update{Type: web.UpdateTurn}))
	assert.NoError(t, m.Apply(web.Update{Type: "pong"}))
}

func TestMirrorJoinsFromSnapshot(t *testing.T) {
	m := NewMirror(zerolog.Nop())
	snapshot := setupUpdate()
	snapshot.Type = web.UpdateSnapshot
	snapshot.Positions[piece.Bishop] = board.Pos(4, 4)
	snapshot.LastTurn = 4

	require.NoError(t, m.Apply(snapshot))
	assert.Equal(t, 4, m.LastTurn())

	require.NoError(t, m.Apply(turnUpdate(5, piece.Bishop, board.Pos(4, 4), board.Pos(6, 6))))
	assert.Equal(t, 0, m.Gaps())
	assert.Equal(t, board.Pos(6, 6), m.Positions()[piece.Bishop])

	// The snapshot puts turn 4 behind the mirror.
	assert.ErrorIs(t, m.Apply(turnUpdate(4, piece.Queen, board.Pos(1, 1), board.Pos(1, 5))), ErrOutOfOrder)
}
