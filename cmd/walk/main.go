package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/piecewalk/internal/archive"
	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/config"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

func main() {
	var (
		showHelp    bool
		turns       int
		seed        int64
		archivePath string
		configPath  string
	)
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&showHelp, "h", false, "Show help information")
	flag.IntVar(&turns, "turns", -1, "Number of turns to play (default from config)")
	flag.Int64Var(&seed, "seed", 0, "Random seed, 0 picks one from the clock")
	flag.StringVar(&archivePath, "archive", "", "Write the run to this CAR file")
	flag.StringVar(&configPath, "config", "", "Path to a config file")
	flag.Parse()

	if showHelp {
		showHelpMessage()
		return
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Development.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if turns < 0 {
		turns = cfg.Game.Turns
	}
	if seed == 0 {
		seed = cfg.Game.Seed
	}
	if archivePath == "" {
		archivePath = cfg.Archive.Path
	}

	opts := []game.Option{game.WithLogger(log.Logger)}
	if seed != 0 {
		opts = append(opts, game.WithSeed(seed))
	}
	g := game.New(opts...)

	if err := g.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up game")
	}
	for _, k := range piece.Kinds() {
		if pos, ok := g.PositionOf(k); ok {
			log.Info().Str("kind", k.String()).Str("square", pos.Name()).Msg("Placed")
		}
	}

	if err := g.Play(turns); err != nil {
		log.Error().Err(err).Int("played", len(g.History())).Msg("Walk stopped")
		fmt.Print(board.Render(g.Layout()))
		os.Exit(1)
	}

	fmt.Print(board.Render(g.Layout()))
	fmt.Printf("seed %d, %d turns, %s\n", g.Seed(), len(g.History()), board.Placement(g.Layout()))

	if archivePath != "" {
		if err := writeArchive(archivePath, g); err != nil {
			log.Fatal().Err(err).Str("path", archivePath).Msg("Failed to write archive")
		}
	}
}

func writeArchive(path string, g *game.Game) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := archive.Export(f, archive.RunOf(g))
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	log.Info().Str("path", path).Str("root", root.String()).Msg("Archive written")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func showHelpMessage() {
	fmt.Println(`piecewalk walk

DESCRIPTION:
    Places a knight on c3, a bishop on b2 and a queen on a1, then plays
    random turns. Each turn moves one randomly chosen piece to a random
    free square it can reach. Prints the final board.

USAGE:
    piecewalk-walk [OPTIONS]

OPTIONS:
    -h, --help          Show this help message
    -turns <n>          Turns to play (default game.turns from config)
    -seed <n>           Random seed, equal seeds replay equal walks
    -archive <path>     Write the run as a CAR file
    -config <path>      Load this file instead of config.yaml

EXAMPLES:
    piecewalk-walk -turns 20 -seed 7
    piecewalk-walk -turns 100 -archive run.car`)
}
