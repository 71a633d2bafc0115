package feed

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/piece"
	"github.com/justinabrahms/piecewalk/internal/registry"
	"github.com/justinabrahms/piecewalk/internal/web"
)

var (
	ErrOutOfOrder = errors.New("turn arrived out of order")
	ErrDiverged   = errors.New("turn does not start where the mirror has the piece")
)

// Mirror rebuilds the board from a stream of updates. Applying a turn goes
// through a local registry, so the mirror refuses anything that would put two
// pieces on one square.
type Mirror struct {
	mu       sync.RWMutex
	registry *registry.Registry
	lastTurn int
	gaps     int
	logger   zerolog.Logger
}

func NewMirror(logger zerolog.Logger) *Mirror {
	return &Mirror{
		registry: registry.New(),
		logger:   logger,
	}
}

// Apply folds one update into the mirror. It has the Handler signature.
func (m *Mirror) Apply(update web.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch update.Type {
	case web.UpdateSetup, web.UpdateSnapshot:
		return m.reset(update.Positions, update.LastTurn)
	case web.UpdateTurn:
		if update.Turn == nil {
			return fmt.Errorf("turn update without a turn")
		}
		return m.applyTurn(update.Turn.Number, update.Turn.Kind, update.Turn.From, update.Turn.To)
	default:
		m.logger.Debug().Str("type", update.Type).Msg("Ignoring unknown update type")
	}
	return nil
}

func (m *Mirror) reset(positions map[piece.Kind]board.Position, lastTurn int) error {
	fresh := registry.New()
	for _, k := range piece.Kinds() {
		pos, ok := positions[k]
		if !ok {
			continue
		}
		if err := fresh.Set(k, pos); err != nil {
			return fmt.Errorf("setup of %s: %w", k, err)
		}
	}
	m.registry = fresh
	m.lastTurn = lastTurn
	return nil
}

func (m *Mirror) applyTurn(number int, k piece.Kind, from, to board.Position) error {
	if number <= m.lastTurn {
		return fmt.Errorf("%w: got %d after %d", ErrOutOfOrder, number, m.lastTurn)
	}
	if number != m.lastTurn+1 {
		m.gaps++
		m.logger.Warn().
			Int("expected", m.lastTurn+1).
			Int("got", number).
			Msg("Missed turns, trusting the reported origin")
	} else if current, ok := m.registry.Lookup(k); ok && current != from {
		return fmt.Errorf("%w: %s at %s, turn %d says %s", ErrDiverged, k, current, number, from)
	}

	if err := m.registry.Set(k, to); err != nil {
		return fmt.Errorf("turn %d: %w", number, err)
	}
	m.lastTurn = number

	m.logger.Debug().
		Int("turn", number).
		Str("kind", k.String()).
		Str("to", to.Name()).
		Msg("Mirrored turn")
	return nil
}

func (m *Mirror) Positions() map[piece.Kind]board.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Snapshot()
}

func (m *Mirror) Layout() board.Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Layout()
}

func (m *Mirror) LastTurn() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastTurn
}

// Gaps counts how many times turns were skipped, e.g. across a reconnect.
func (m *Mirror) Gaps() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gaps
}
