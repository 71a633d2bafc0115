package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/piecewalk/internal/auth"
	"github.com/justinabrahms/piecewalk/internal/config"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/web"
)

func main() {
	var showHelp, setup bool
	var configPath string
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&showHelp, "h", false, "Show help information")
	flag.StringVar(&configPath, "config", "", "Path to a config file")
	flag.BoolVar(&setup, "setup", false, "Place the pieces on their default squares at startup")
	flag.Parse()

	if showHelp {
		showHelpMessage()
		return
	}

	// Setup logging
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	configureLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := web.NewHub()
	go hub.Run(ctx)

	opts := []game.Option{
		game.WithLogger(log.Logger),
		game.WithObserver(hub.TurnObserver()),
	}
	if cfg.Game.Seed != 0 {
		opts = append(opts, game.WithSeed(cfg.Game.Seed))
	}
	g := game.New(opts...)
	log.Info().Int64("seed", g.Seed()).Msg("Game created")

	if setup {
		if err := g.Setup(); err != nil {
			log.Fatal().Err(err).Msg("Failed to set up game")
		}
		// Seeds the hub so watchers joining later get the opening squares.
		hub.Broadcast(web.Update{Type: web.UpdateSetup, Positions: g.Positions()})
	}

	var issuer *auth.Issuer
	if cfg.Auth.Secret != "" {
		issuer, err = auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create token issuer")
		}
		log.Info().Msg("Bearer tokens required for setup and play")
	} else {
		log.Warn().Msg("auth.secret not set, setup and play are open")
	}

	service := web.NewService(g, cfg, hub)
	router := web.NewRouter(service, hub, issuer)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Closing the hub drops watchers before Shutdown waits on open connections.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Int("turns", len(g.History())).Msg("Server exited")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func configureLogging(cfg *config.Config) {
	if cfg.Development.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	level, err := zerolog.ParseLevel(cfg.Development.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.Development.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func showHelpMessage() {
	fmt.Println(`piecewalk server

DESCRIPTION:
    Runs one random walk of a knight, a bishop and a queen on an 8x8 board
    and serves it over HTTP. Every committed turn is pushed to websocket
    watchers on /ws.

USAGE:
    piecewalk-server [OPTIONS]

OPTIONS:
    -h, --help         Show this help message
    -config <path>     Load this file instead of config.yaml
    -setup             Place the pieces on their default squares at startup

CONFIGURATION:
    config.yaml in the current directory or ./config, overridden by
    PIECEWALK_* environment variables (PIECEWALK_SERVER_PORT, ...).

    Example config.yaml:
        server:
          host: localhost
          port: 8080
        game:
          seed: 42          # 0 picks a time based seed
          turns: 10         # default for POST /api/play
        auth:
          secret: ""        # set to require bearer tokens on POST routes
          token_ttl: 24h
        development:
          debug: true
          log_level: debug

API ENDPOINTS:
    GET  /api/health                 - Service health check
    POST /api/setup                  - Place the pieces on their default squares
    POST /api/play                   - Play turns, body {"turns": n}
    GET  /api/positions              - Current squares of every piece
    GET  /api/pieces/{kind}          - Square of one piece
    GET  /api/pieces/{kind}/moves    - Free destinations of one piece
    GET  /api/board                  - Text board, ?format=fen for FEN placement
    GET  /api/history                - Every turn played so far
    GET  /api/archive                - The run as a CAR file
    GET  /ws                         - Live turn feed

EXAMPLES:
    # Start with a fixed seed
    PIECEWALK_GAME_SEED=42 piecewalk-server -setup

    # Play five turns
    curl -X POST http://localhost:8080/api/play -d '{"turns": 5}'

SEE ALSO:
    piecewalk-walk(1), piecewalk-watch(1), piecewalk-issue-token(1)`)
}
