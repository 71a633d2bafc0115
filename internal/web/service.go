package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/piecewalk/internal/archive"
	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/config"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

// MaxTurnsPerRequest caps a single play request.
const MaxTurnsPerRequest = 10000

// Service exposes one game over HTTP. The game itself is single-threaded, so
// every handler takes mu.
type Service struct {
	mu     sync.Mutex
	game   *game.Game
	config *config.Config
	hub    *Hub
}

func NewService(g *game.Game, config *config.Config, hub *Hub) *Service {
	return &Service{
		game:   g,
		config: config,
		hub:    hub,
	}
}

type PositionView struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Square string `json:"square"`
}

func viewOf(p board.Position) PositionView {
	return PositionView{X: p.X, Y: p.Y, Square: p.Name()}
}

func viewsOf(positions map[piece.Kind]board.Position) map[piece.Kind]PositionView {
	out := make(map[piece.Kind]PositionView, len(positions))
	for k, p := range positions {
		out[k] = viewOf(p)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	seed := s.game.Seed()
	turns := len(s.game.History())
	s.mu.Unlock()

	response := map[string]interface{}{
		"status": "ok",
		"seed":   seed,
		"turns":  turns,
	}
	if s.hub != nil {
		response["watchers"] = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Service) SetupHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.game.Setup()
	positions := s.game.Positions()
	// Broadcast under the lock so no turn can reach watchers ahead of it.
	if err == nil && s.hub != nil {
		s.hub.Broadcast(Update{Type: UpdateSetup, Positions: positions})
	}
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, game.ErrDuplicateSetup) {
			http.Error(w, "Game already set up", http.StatusConflict)
			return
		}
		log.Error().Err(err).Msg("Failed to set up game")
		http.Error(w, "Failed to set up game", http.StatusInternalServerError)
		return
	}

	log.Info().Int("pieces", len(positions)).Msg("Game set up")

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"positions": viewsOf(positions),
	})
}

type PlayRequest struct {
	Turns *int `json:"turns,omitempty"`
}

type PlayResponse struct {
	Played    int                         `json:"played"`
	Turns     []game.Turn                 `json:"turns"`
	Positions map[piece.Kind]PositionView `json:"positions"`
}

func (s *Service) PlayHandler(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	turns := s.config.Game.Turns
	if req.Turns != nil {
		turns = *req.Turns
	}
	if turns < 0 || turns > MaxTurnsPerRequest {
		http.Error(w, fmt.Sprintf("turns must be between 0 and %d", MaxTurnsPerRequest), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	before := len(s.game.History())
	err := s.game.Play(turns)
	history := s.game.History()
	positions := s.game.Positions()
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Int("turns", turns).Msg("Play failed")
		if errors.Is(err, piece.ErrNoLegalMove) {
			http.Error(w, fmt.Sprintf("No legal move: %s", err.Error()), http.StatusConflict)
			return
		}
		http.Error(w, "Failed to play", http.StatusInternalServerError)
		return
	}

	played := history[before:]
	log.Info().Int("played", len(played)).Int("total", len(history)).Msg("Turns played")

	writeJSON(w, http.StatusOK, PlayResponse{
		Played:    len(played),
		Turns:     played,
		Positions: viewsOf(positions),
	})
}

func (s *Service) PositionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	positions := s.game.Positions()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, viewsOf(positions))
}

func kindFromRequest(w http.ResponseWriter, r *http.Request) (piece.Kind, bool) {
	name := mux.Vars(r)["kind"]
	k, err := piece.ParseKind(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Unknown piece %q", name), http.StatusBadRequest)
		return 0, false
	}
	return k, true
}

func (s *Service) PieceHandler(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromRequest(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	pos, placed := s.game.PositionOf(k)
	s.mu.Unlock()

	if !placed {
		http.Error(w, "Piece not on the board", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":     k,
		"position": viewOf(pos),
	})
}

func (s *Service) MovesHandler(w http.ResponseWriter, r *http.Request) {
	k, ok := kindFromRequest(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	from, free, err := s.game.Candidates(k)
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("kind", k.String()).Msg("Failed to list moves")
		http.Error(w, "Failed to list moves", http.StatusInternalServerError)
		return
	}

	moves := make([]PositionView, 0, len(free))
	for _, p := range free {
		moves = append(moves, viewOf(p))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":  k,
		"from":  viewOf(from),
		"moves": moves,
	})
}

// BoardHandler renders the board as text, or as a FEN placement field with
// ?format=fen.
func (s *Service) BoardHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	layout := s.game.Layout()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.URL.Query().Get("format") == "fen" {
		_, _ = io.WriteString(w, board.Placement(layout)+"\n")
		return
	}
	_, _ = io.WriteString(w, board.Render(layout))
}

func (s *Service) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	history := s.game.History()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"turns": history,
		"total": len(history),
	})
}

func (s *Service) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	run := archive.RunOf(s.game)
	s.mu.Unlock()

	var buf bytes.Buffer
	root, err := archive.Export(&buf, run)
	if err != nil {
		log.Error().Err(err).Msg("Failed to export archive")
		http.Error(w, "Failed to export archive", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", archive.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="piecewalk-%d.car"`, run.Seed))
	w.Header().Set("X-Root-Cid", root.String())
	_, _ = w.Write(buf.Bytes())
}
