package game

import (
	"fmt"
	"time"
)

// Settings are the per-room tunables. DefaultSettings matches the classic
// arena: 40x30 cells of 20px, 80ms ticks, 5 minute matches.
type Settings struct {
	MaxPlayers int
	MinPlayers int

	GridSize int
	Width    int
	Height   int

	TickInterval  time.Duration
	MatchDuration time.Duration
	ResetDelay    time.Duration

	MinFood        int
	InitialFood    int
	RefillBatch    int
	GoldenChance   float64
	GoldenLifetime time.Duration

	RespawnCooldown time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:      8,
		MinPlayers:      2,
		GridSize:        20,
		Width:           800,
		Height:          600,
		TickInterval:    80 * time.Millisecond,
		MatchDuration:   5 * time.Minute,
		ResetDelay:      5 * time.Second,
		MinFood:         3,
		InitialFood:     5,
		RefillBatch:     2,
		GoldenChance:    0.1,
		GoldenLifetime:  15 * time.Second,
		RespawnCooldown: 3 * time.Second,
	}
}

// Bounds returns the canvas described by s.
func (s Settings) Bounds() Bounds {
	return Bounds{Width: s.Width, Height: s.Height, Grid: s.GridSize}
}

// Validate rejects settings the engine cannot run with.
func (s Settings) Validate() error {
	if s.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", s.GridSize)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("canvas must be positive, got %dx%d", s.Width, s.Height)
	}
	if s.Width%s.GridSize != 0 || s.Height%s.GridSize != 0 {
		return fmt.Errorf("canvas %dx%d is not a multiple of grid %d", s.Width, s.Height, s.GridSize)
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", s.TickInterval)
	}
	if s.MaxPlayers < 1 || s.MinPlayers < 1 {
		return fmt.Errorf("player limits must be positive, got min=%d max=%d", s.MinPlayers, s.MaxPlayers)
	}
	if s.GoldenChance < 0 || s.GoldenChance > 1 {
		return fmt.Errorf("golden chance must be in [0,1], got %v", s.GoldenChance)
	}
	return nil
}

// RoomConfig is the immutable identity of a room plus its settings.
type RoomConfig struct {
	ID        string
	Code      string
	Name      string
	IsPrivate bool
	CreatedAt time.Time
	CreatedBy string
	Settings  Settings
}

// Palette is the set of snake colors handed out in order.
var Palette = []string{
	"#3b82f6",
	"#22c55e",
	"#f97316",
	"#ef4444",
	"#8b5cf6",
	"#06b6d4",
	"#f59e0b",
	"#10b981",
}

// BotNames is the roster bots draw their names from.
var BotNames = []string{
	"CyberBot",
	"NeonBot",
	"VoltBot",
	"CrystalBot",
	"StarBot",
	"TurboBot",
	"PrecisionBot",
	"NovaBot",
}
