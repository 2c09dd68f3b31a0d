package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/snekarena/bot"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/logging"
	"github.com/brensch/snekarena/room"
	"github.com/brensch/snekarena/store"
)

const pilotID = "pilot"

// endWatcher remembers whether a match has ended.
type endWatcher struct {
	ended  bool
	result *room.MatchResult
}

func (w *endWatcher) Publish(roomID string, ev room.Event) {
	switch ev.Type {
	case room.EventStarted:
		log.Printf("Match started in %s", roomID)
	case room.EventEnded:
		w.ended = true
		w.result = ev.Result
	}
}

func main() {
	def := game.DefaultSettings()

	bots := flag.Int("bots", getEnvIntOrDefault("DEBUGMATCH_BOTS", 3), "Bots joining alongside the pilot")
	seed := flag.Int64("seed", int64(getEnvIntOrDefault("DEBUGMATCH_SEED", 1)), "Random seed")
	duration := flag.Duration("duration", getEnvDurationOrDefault("DEBUGMATCH_DURATION", 30*time.Second), "Simulated match length")
	maxTicks := flag.Int("ticks", getEnvIntOrDefault("DEBUGMATCH_TICKS", 0), "Stop after this many ticks (0 = run until the match ends)")
	printEvery := flag.Int("print-every", getEnvIntOrDefault("DEBUGMATCH_PRINT_EVERY", 50), "Print the board every N ticks (0 = never)")
	outDir := flag.String("out-dir", getEnvOrDefault("DEBUGMATCH_OUT_DIR", ""), "Write the finished match to a parquet file in this directory")
	verbose := flag.Bool("v", getEnvBoolOrDefault("DEBUGMATCH_VERBOSE", false), "Log room and planner debug output")
	flag.Parse()

	var logger *slog.Logger
	if *verbose {
		h, err := logging.NewHandler(os.Stderr, logging.FormatText, slog.LevelDebug)
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		logger = slog.New(h)
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	settings := def
	settings.MatchDuration = *duration
	settings.MaxPlayers = *bots + 1
	if err := settings.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	clock := room.NewManualClock(time.Now())
	sched := room.NewManualScheduler(clock)
	watcher := &endWatcher{}

	rm := room.New(game.RoomConfig{
		ID:        "debug",
		Name:      "Debug Match",
		CreatedAt: clock.Now(),
		CreatedBy: pilotID,
		Settings:  settings,
	}, room.Options{
		Scheduler: sched,
		Clock:     clock,
		Rand:      rand.New(rand.NewSource(*seed)),
		Notifier:  watcher,
		Logger:    logger,
	})
	defer rm.Close()

	pilot := bot.NewPlanner(bot.Options{Rand: rand.New(rand.NewSource(*seed + 1)), Logger: logger})

	if _, err := rm.Join(pilotID, "Pilot", room.JoinOptions{}); err != nil {
		log.Fatalf("Pilot join failed: %v", err)
	}
	for i := 0; i < *bots; i++ {
		b, err := rm.AddBot()
		if err != nil {
			log.Fatalf("Add bot failed: %v", err)
		}
		log.Printf("Bot joined: %s (%s)", b.Name, b.Color)
	}
	if rm.Phase() != game.PhasePlaying {
		log.Fatalf("Match did not start (phase %s); need at least %d actors", rm.Phase(), settings.MinPlayers)
	}

	start := time.Now()
	ticks := 0
	for !watcher.ended {
		if *maxTicks > 0 && ticks >= *maxTicks {
			break
		}
		board := rm.Board()
		if dir, changed := pilot.Plan(&board, pilotID, clock.Now()); changed {
			if err := rm.UpdateDirection(pilotID, dir); err != nil {
				logger.Debug("pilot direction rejected", "error", err)
			}
		}
		sched.Advance(settings.TickInterval)
		ticks++

		if *printEvery > 0 && ticks%*printEvery == 0 {
			snap := rm.Snapshot()
			fmt.Printf("Tick %4d | %5.1fs left | %s\n", ticks, float64(snap.TimeRemainingMs)/1000, scoreLine(rm.Board()))
			fmt.Print(render(rm.Board()))
		}
	}

	log.Printf("Ran %d ticks (%s simulated) in %s", ticks, time.Duration(ticks)*settings.TickInterval, time.Since(start).Round(time.Millisecond))
	if !watcher.ended || watcher.result == nil {
		log.Printf("Stopped before the match ended: %s", scoreLine(rm.Board()))
		return
	}

	res := *watcher.result
	log.Printf("Match %s ended (%s), winner: %s", res.MatchID, res.Reason, res.Winner)
	for _, p := range res.Players {
		kind := "human"
		if p.IsBot {
			kind = "bot"
		}
		fmt.Printf("  %-10s %-5s score=%3d length=%3d alive=%v\n", p.Name, kind, p.Score, p.Length, p.Alive)
	}

	if *outDir != "" {
		path, err := store.WriteMatches(*outDir, []store.MatchRow{store.RowFromResult(res)})
		if err != nil {
			log.Fatalf("Failed to write match: %v", err)
		}
		log.Printf("Match written to: %s", path)
	}
}

func scoreLine(b game.Board) string {
	parts := make([]string, 0, len(b.Actors))
	for _, a := range b.Actors {
		state := strconv.Itoa(a.Score)
		if !a.Alive {
			state = "dead"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", a.Name, state))
	}
	return strings.Join(parts, " ")
}

// render draws the board one character per cell. Heads are upper case, bodies
// lower case, '.' is normal food and '$' golden food.
func render(b game.Board) string {
	cols := b.Bounds.Width / b.Bounds.Grid
	rows := b.Bounds.Height / b.Bounds.Grid
	grid := make([][]byte, rows)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", cols))
	}
	set := func(p game.Position, c byte) {
		x, y := p.X/b.Bounds.Grid, p.Y/b.Bounds.Grid
		if x >= 0 && x < cols && y >= 0 && y < rows {
			grid[y][x] = c
		}
	}
	for _, f := range b.Food {
		c := byte('.')
		if f.Kind == game.FoodGolden {
			c = '$'
		}
		set(f.Position, c)
	}
	for i, a := range b.Actors {
		if !a.Alive {
			continue
		}
		letter := byte('a' + i%26)
		for j := len(a.Body) - 1; j >= 0; j-- {
			c := letter
			if j == 0 {
				c = letter - 'a' + 'A'
			}
			set(a.Body[j], c)
		}
	}

	var sb strings.Builder
	border := "+" + strings.Repeat("-", cols) + "+\n"
	sb.WriteString(border)
	for _, row := range grid {
		sb.WriteByte('|')
		sb.Write(row)
		sb.WriteString("|\n")
	}
	sb.WriteString(border)
	return sb.String()
}

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

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
