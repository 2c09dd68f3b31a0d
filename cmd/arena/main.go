package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/gateway"
	"github.com/brensch/snekarena/logging"
	"github.com/brensch/snekarena/registry"
	"github.com/brensch/snekarena/store"
)

func main() {
	def := game.DefaultSettings()

	addr := flag.String("addr", getEnvOrDefault("ARENA_ADDR", ":8080"), "HTTP listen address")
	logFormat := flag.String("log-format", getEnvOrDefault("ARENA_LOG_FORMAT", logging.FormatText), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", getEnvOrDefault("ARENA_LOG_LEVEL", "info"), "Log level: debug, info, warn or error")
	broadcastEvery := flag.Duration("broadcast-interval", getEnvDurationOrDefault("ARENA_BROADCAST_INTERVAL", gateway.DefaultBroadcastInterval), "Snapshot broadcast interval")
	seed := flag.Int64("seed", int64(getEnvIntOrDefault("ARENA_SEED", 0)), "Random seed (0 = time based)")

	archiveDir := flag.String("archive-dir", getEnvOrDefault("ARENA_ARCHIVE_DIR", ""), "Directory for finished-match parquet files (empty disables the archive)")
	archiveEvery := flag.Int("archive-flush-matches", getEnvIntOrDefault("ARENA_ARCHIVE_FLUSH_MATCHES", store.DefaultFlushEvery), "Finalize an archive file after this many matches")
	archiveInterval := flag.Duration("archive-flush-interval", getEnvDurationOrDefault("ARENA_ARCHIVE_FLUSH_INTERVAL", store.DefaultFlushInterval), "Finalize a non-empty archive file this often")

	maxPlayers := flag.Int("max-players", getEnvIntOrDefault("ARENA_MAX_PLAYERS", def.MaxPlayers), "Actors per room")
	minPlayers := flag.Int("min-players", getEnvIntOrDefault("ARENA_MIN_PLAYERS", def.MinPlayers), "Actors needed to start a match")
	gridSize := flag.Int("grid", getEnvIntOrDefault("ARENA_GRID", def.GridSize), "Cell size in pixels")
	width := flag.Int("width", getEnvIntOrDefault("ARENA_WIDTH", def.Width), "Canvas width in pixels")
	height := flag.Int("height", getEnvIntOrDefault("ARENA_HEIGHT", def.Height), "Canvas height in pixels")
	tick := flag.Duration("tick", getEnvDurationOrDefault("ARENA_TICK", def.TickInterval), "Simulation tick interval")
	matchDuration := flag.Duration("match-duration", getEnvDurationOrDefault("ARENA_MATCH_DURATION", def.MatchDuration), "Match length")
	resetDelay := flag.Duration("reset-delay", getEnvDurationOrDefault("ARENA_RESET_DELAY", def.ResetDelay), "Pause between a match ending and the next one")
	minFood := flag.Int("min-food", getEnvIntOrDefault("ARENA_MIN_FOOD", def.MinFood), "Refill food when fewer items remain")
	initialFood := flag.Int("initial-food", getEnvIntOrDefault("ARENA_INITIAL_FOOD", def.InitialFood), "Food placed on creation and reset")
	refillBatch := flag.Int("refill-batch", getEnvIntOrDefault("ARENA_REFILL_BATCH", def.RefillBatch), "Food placed per refill")
	goldenChance := flag.Float64("golden-chance", getEnvFloatOrDefault("ARENA_GOLDEN_CHANCE", def.GoldenChance), "Probability a new food item is golden")
	goldenLifetime := flag.Duration("golden-lifetime", getEnvDurationOrDefault("ARENA_GOLDEN_LIFETIME", def.GoldenLifetime), "Golden food lifetime")
	respawn := flag.Duration("respawn", getEnvDurationOrDefault("ARENA_RESPAWN", def.RespawnCooldown), "Respawn cooldown")
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	settings := game.Settings{
		MaxPlayers:      *maxPlayers,
		MinPlayers:      *minPlayers,
		GridSize:        *gridSize,
		Width:           *width,
		Height:          *height,
		TickInterval:    *tick,
		MatchDuration:   *matchDuration,
		ResetDelay:      *resetDelay,
		MinFood:         *minFood,
		InitialFood:     *initialFood,
		RefillBatch:     *refillBatch,
		GoldenChance:    *goldenChance,
		GoldenLifetime:  *goldenLifetime,
		RespawnCooldown: *respawn,
	}
	if err := settings.Validate(); err != nil {
		logger.Error("invalid settings", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, config{
		addr:            *addr,
		settings:        settings,
		seed:            *seed,
		broadcastEvery:  *broadcastEvery,
		archiveDir:      *archiveDir,
		archiveEvery:    *archiveEvery,
		archiveInterval: *archiveInterval,
	}); err != nil {
		logger.Error("arena stopped", "error", err)
		os.Exit(1)
	}
}

type config struct {
	addr           string
	settings       game.Settings
	seed           int64
	broadcastEvery time.Duration

	archiveDir      string
	archiveEvery    int
	archiveInterval time.Duration
}

func run(ctx context.Context, logger *slog.Logger, cfg config) error {
	reg := registry.New(registry.Options{
		Settings: cfg.settings,
		Logger:   logger.With("component", "registry"),
		Seed:     cfg.seed,
	})

	var archive *store.Archive
	if cfg.archiveDir != "" {
		var err error
		archive, err = store.OpenArchive(store.ArchiveOptions{
			OutDir:        cfg.archiveDir,
			FlushEvery:    cfg.archiveEvery,
			FlushInterval: cfg.archiveInterval,
			Logger:        logger.With("component", "archive"),
		})
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		reg.Subscribe(archive)
	}

	gw := gateway.New(reg, gateway.Options{
		Logger:            logger.With("component", "gateway"),
		BroadcastInterval: cfg.broadcastEvery,
	})

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	if archive != nil {
		mux.Handle("/api/matches", store.NewMatchIndex(cfg.archiveDir, 10*time.Second, logger.With("component", "history")))
	}

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.addr, "grid", cfg.settings.GridSize,
			"canvas", fmt.Sprintf("%dx%d", cfg.settings.Width, cfg.settings.Height),
			"tick", cfg.settings.TickInterval, "archive", cfg.archiveDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gw.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		gw.Close()
		err := srv.Shutdown(shutdownCtx)
		reg.Close()
		if archive != nil {
			if cerr := archive.Close(); cerr != nil {
				logger.Error("close archive", "error", cerr)
			}
		}
		return err
	})
	return g.Wait()
}

// Environment variable helpers
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
