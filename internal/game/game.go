package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/piece"
	"github.com/justinabrahms/piecewalk/internal/registry"
	"github.com/rs/zerolog"
)

var (
	ErrDuplicateSetup = errors.New("game already set up")
	ErrInvalidTurns   = errors.New("turn count must not be negative")
)

// Turn records one committed move.
type Turn struct {
	Number int            `json:"number"`
	Kind   piece.Kind     `json:"kind"`
	From   board.Position `json:"from"`
	To     board.Position `json:"to"`
}

// Observer is called after every committed turn.
type Observer func(Turn)

// Game drives the random walk: it owns the registry and decides which kind
// moves on each turn. It is not safe for concurrent use.
type Game struct {
	registry  *registry.Registry
	rng       piece.Rand
	seed      int64
	logger    zerolog.Logger
	observers []Observer
	history   []Turn
}

// Option configures the game
type Option func(*Game)

// WithSeed seeds the random source so a run can be replayed.
func WithSeed(seed int64) Option {
	return func(g *Game) {
		g.seed = seed
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand sets the random source directly. The game then has no seed to
// report, so Seed returns 0.
func WithRand(rng piece.Rand) Option {
	return func(g *Game) {
		g.seed = 0
		g.rng = rng
	}
}

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Game) {
		g.logger = logger
	}
}

// WithObserver adds a callback for committed turns.
func WithObserver(fn Observer) Option {
	return func(g *Game) {
		g.observers = append(g.observers, fn)
	}
}

func New(opts ...Option) *Game {
	seed := time.Now().UnixNano()

	g := &Game{
		registry: registry.New(),
		rng:      rand.New(rand.NewSource(seed)),
		seed:     seed,
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Setup places every kind on its start square.
func (g *Game) Setup() error {
	if g.registry.Len() > 0 {
		return ErrDuplicateSetup
	}

	for _, k := range piece.Kinds() {
		p, err := piece.New(k, 0, g.registry)
		if err != nil {
			return fmt.Errorf("setup %s: %w", k, err)
		}

		start := p.Setup()
		if err := g.registry.Set(k, start); err != nil {
			return fmt.Errorf("setup %s: %w", k, err)
		}

		g.logger.Debug().Str("kind", k.String()).Str("square", start.Name()).Msg("Piece placed")
	}

	return nil
}

// Play runs the given number of turns. Each turn moves one uniformly chosen
// kind by a single step. An error stops the run before the failing turn
// changes anything.
func (g *Game) Play(turns int) error {
	if turns < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTurns, turns)
	}

	kinds := piece.Kinds()
	for i := 0; i < turns; i++ {
		k := kinds[g.rng.Intn(len(kinds))]

		if err := g.turn(k); err != nil {
			return fmt.Errorf("turn %d: %w", len(g.history)+1, err)
		}
	}

	return nil
}

func (g *Game) turn(k piece.Kind) error {
	p, err := piece.New(k, 1, g.registry)
	if err != nil {
		return err
	}

	to, err := p.Play(g.registry, g.rng)
	if err != nil {
		return err
	}

	if err := g.registry.Set(k, to); err != nil {
		return err
	}

	t := Turn{
		Number: len(g.history) + 1,
		Kind:   k,
		From:   p.Start,
		To:     to,
	}
	g.history = append(g.history, t)

	g.logger.Info().
		Int("turn", t.Number).
		Str("kind", k.String()).
		Str("from", t.From.Name()).
		Str("to", t.To.Name()).
		Msg("Piece moved")

	for _, fn := range g.observers {
		fn(t)
	}

	return nil
}

// Place registers a kind on a square directly, bypassing Setup. The registry
// still refuses collisions.
func (g *Game) Place(k piece.Kind, pos board.Position) error {
	return g.registry.Set(k, pos)
}

// PositionOf returns the registered square of a kind.
func (g *Game) PositionOf(k piece.Kind) (board.Position, bool) {
	return g.registry.Lookup(k)
}

func (g *Game) Positions() map[piece.Kind]board.Position {
	return g.registry.Snapshot()
}

// Candidates lists where a kind could move next from its current square.
func (g *Game) Candidates(k piece.Kind) (board.Position, []board.Position, error) {
	p, err := piece.New(k, 1, g.registry)
	if err != nil {
		return board.Position{}, nil, err
	}

	free, err := piece.Candidates(k, p.Start, g.registry)
	if err != nil {
		return board.Position{}, nil, err
	}
	return p.Start, free, nil
}

func (g *Game) History() []Turn {
	out := make([]Turn, len(g.history))
	copy(out, g.history)
	return out
}

func (g *Game) Seed() int64 {
	return g.seed
}

func (g *Game) Layout() board.Layout {
	return g.registry.Layout()
}
