package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/game"
	"github.com/pthm-cable/slug/journal"
	"github.com/pthm-cable/slug/telemetry"
)

func main() {
	// CLI flags; every flag can also come from a SLUG_* environment variable
	pflag.String("config", "", "Path to config.yaml (empty = use defaults)")
	pflag.Int64("seed", 0, "RNG seed (0 = time-based)")
	pflag.Int32("max-ticks", 0, "Stop after N ticks (0 = until interrupted)")
	pflag.Bool("log-stats", false, "Output window stats via slog")
	pflag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	pflag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	pflag.String("snapshot-dir", "", "Directory for bookmark snapshots")
	pflag.String("journal", "", "SQLite file for the possession journal (empty = disabled)")
	pflag.String("locale", "", "Popup locale (empty = use config)")
	pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	pflag.Parse()

	viper.SetEnvPrefix("slug")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		slog.Error("failed to bind flags", "error", err)
		os.Exit(1)
	}

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(viper.GetString("config")); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	var store *journal.Store
	if path := viper.GetString("journal"); path != "" {
		var err error
		store, err = journal.Open(path)
		if err != nil {
			slog.Error("failed to open journal", "path", path, "error", err)
			os.Exit(1)
		}
	}

	opts := game.Options{
		Seed:           viper.GetInt64("seed"),
		LogStats:       viper.GetBool("log-stats"),
		StatsWindowSec: viper.GetFloat64("stats-window"),
		SnapshotDir:    viper.GetString("snapshot-dir"),
		OutputDir:      viper.GetString("output-dir"),
		Locale:         viper.GetString("locale"),
		Journal:        store,
	}
	if !opts.LogStats {
		opts.StatsCallback = func(s telemetry.WindowStats) {
			slog.Debug("window", "tick", s.WindowEndTick, "possessing", s.Possessing)
		}
	}

	g, err := game.NewGame(cfg, opts)
	if err != nil {
		slog.Error("failed to create game", "error", err)
		if store != nil {
			store.Close()
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	maxTicks := viper.GetInt32("max-ticks")
	slog.Info("starting simulation",
		"run", g.RunID(),
		"seed", g.Seed(),
		"max_ticks", maxTicks,
	)

	runErr := g.Run(ctx, maxTicks)
	switch {
	case errors.Is(runErr, context.Canceled):
		slog.Info("interrupted", "tick", g.Tick())
	case runErr != nil:
		slog.Error("simulation failed", "tick", g.Tick(), "error", runErr)
	default:
		slog.Info("max ticks reached", "tick", g.Tick())
	}

	if err := g.Close(); err != nil {
		slog.Error("failed to close game", "error", err)
		os.Exit(1)
	}
}
