package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/config"
	"github.com/justinabrahms/piecewalk/internal/feed"
	"github.com/justinabrahms/piecewalk/internal/web"
)

func main() {
	var (
		showHelp   bool
		url        string
		token      string
		configPath string
		quiet      bool
	)
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&showHelp, "h", false, "Show help information")
	flag.StringVar(&url, "url", "", "Feed URL (default feed.url from config)")
	flag.StringVar(&token, "token", "", "Bearer token sent when dialing")
	flag.StringVar(&configPath, "config", "", "Path to a config file")
	flag.BoolVar(&quiet, "quiet", false, "Only log turns, do not redraw the board")
	flag.Parse()

	if showHelp {
		showHelpMessage()
		return
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if url == "" {
		url = cfg.Feed.URL
	}

	mirror := feed.NewMirror(log.Logger)
	handler := func(update web.Update) error {
		if err := mirror.Apply(update); err != nil {
			return err
		}

		switch update.Type {
		case web.UpdateSetup:
			log.Info().Int("pieces", len(update.Positions)).Msg("Game set up")
		case web.UpdateSnapshot:
			log.Info().
				Int("pieces", len(update.Positions)).
				Int("last_turn", update.LastTurn).
				Msg("Joined game in progress")
		case web.UpdateTurn:
			t := update.Turn
			log.Info().
				Int("turn", t.Number).
				Str("kind", t.Kind.String()).
				Str("from", t.From.Name()).
				Str("to", t.To.Name()).
				Msg("Piece moved")
		}

		if !quiet {
			fmt.Print(board.Render(mirror.Layout()))
		}
		return nil
	}

	opts := []feed.Option{feed.WithURL(url), feed.WithLogger(log.Logger)}
	if token != "" {
		opts = append(opts, feed.WithBearerToken(token))
	}
	client := feed.NewClient(handler, opts...)

	if err := client.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start feed client")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := client.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop feed client")
	}
	log.Info().
		Int("last_turn", mirror.LastTurn()).
		Int("gaps", mirror.Gaps()).
		Msg("Stopped watching")
}

func showHelpMessage() {
	fmt.Println(`piecewalk watch

DESCRIPTION:
    Follows a piecewalk server's /ws feed, logs every turn and redraws the
    board as it changes. Reconnects with backoff when the server goes away.

USAGE:
    piecewalk-watch [OPTIONS]

OPTIONS:
    -h, --help         Show this help message
    -url <url>         Feed URL (default ws://localhost:8080/ws)
    -token <jwt>       Bearer token sent when dialing
    -config <path>     Load this file instead of config.yaml
    -quiet             Only log turns

EXAMPLES:
    piecewalk-watch -url ws://localhost:8080/ws`)
}
