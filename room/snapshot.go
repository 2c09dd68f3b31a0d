package room

import (
	"time"

	"github.com/brensch/snekarena/game"
)

// Snapshot is the externally visible state of a room, ready for encoding.
type Snapshot struct {
	RoomID          string      `json:"roomId"`
	Actors          []ActorView `json:"actors"`
	Food            []FoodView  `json:"food"`
	Phase           game.Phase  `json:"phase"`
	TimeRemainingMs int64       `json:"timeRemainingMs"`
}

type ActorView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Body      []game.Position `json:"body"`
	Direction game.Position   `json:"direction"`
	Color     string          `json:"color"`
	Alive     bool            `json:"alive"`
	Score     int             `json:"score"`
	IsBot     bool            `json:"isBot"`
	// Set only for dead actors. DeathAt is unix milliseconds;
	// RespawnCooldownMs is the time left until respawn.
	DeathAt           int64 `json:"deathAt,omitempty"`
	RespawnCooldownMs int64 `json:"respawnCooldownMs,omitempty"`
}

type FoodView struct {
	X         int           `json:"x"`
	Y         int           `json:"y"`
	Kind      game.FoodKind `json:"kind"`
	ExpiresAt int64         `json:"expiresAt,omitempty"`
}

// Info is the lobby-facing summary of a room.
type Info struct {
	ID          string     `json:"id"`
	Code        string     `json:"code,omitempty"`
	Name        string     `json:"name"`
	IsPrivate   bool       `json:"isPrivate"`
	Phase       game.Phase `json:"phase"`
	PlayerCount int        `json:"playerCount"`
	Humans      int        `json:"humans"`
	MaxPlayers  int        `json:"maxPlayers"`
	CreatedAt   int64      `json:"createdAt"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	GridSize    int        `json:"gridSize"`
}

func (r *Room) snapshotLocked(now time.Time) Snapshot {
	snap := Snapshot{
		RoomID:          r.cfg.ID,
		Actors:          make([]ActorView, 0, len(r.actors)),
		Food:            make([]FoodView, 0, len(r.food)),
		Phase:           r.phase,
		TimeRemainingMs: r.timeRemainingLocked(now).Milliseconds(),
	}
	for i := range r.actors {
		a := &r.actors[i]
		v := ActorView{
			ID:        a.ID,
			Name:      a.Name,
			Body:      append([]game.Position(nil), a.Body...),
			Direction: a.Direction,
			Color:     a.Color,
			Alive:     a.Alive,
			Score:     a.Score,
			IsBot:     a.IsBot,
		}
		if !a.Alive && !a.DeathAt.IsZero() {
			v.DeathAt = a.DeathAt.UnixMilli()
			if left := a.RespawnAt.Sub(now); left > 0 {
				v.RespawnCooldownMs = left.Milliseconds()
			}
		}
		snap.Actors = append(snap.Actors, v)
	}
	for _, f := range r.food {
		v := FoodView{X: f.Position.X, Y: f.Position.Y, Kind: f.Kind}
		if !f.ExpiresAt.IsZero() {
			v.ExpiresAt = f.ExpiresAt.UnixMilli()
		}
		snap.Food = append(snap.Food, v)
	}
	return snap
}

func (r *Room) timeRemainingLocked(now time.Time) time.Duration {
	total := r.cfg.Settings.MatchDuration
	if r.phase != game.PhasePlaying {
		return total
	}
	left := total - now.Sub(r.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (r *Room) infoLocked() Info {
	s := r.cfg.Settings
	return Info{
		ID:          r.cfg.ID,
		Code:        r.cfg.Code,
		Name:        r.cfg.Name,
		IsPrivate:   r.cfg.IsPrivate,
		Phase:       r.phase,
		PlayerCount: len(r.actors),
		Humans:      r.humansLocked(),
		MaxPlayers:  s.MaxPlayers,
		CreatedAt:   r.cfg.CreatedAt.UnixMilli(),
		Width:       s.Width,
		Height:      s.Height,
		GridSize:    s.GridSize,
	}
}
