// Package game defines the world model shared by the room engine, the
// collision rules and the bot planner.
//
// The types are passive data. Invariants (non-empty body while alive, no
// reversal, score reset on death) are enforced by the room engine, which is
// the only writer.
package game

import "time"

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// FoodKind distinguishes the regular pellets from the timed high-value ones.
type FoodKind string

const (
	FoodNormal FoodKind = "normal"
	FoodGolden FoodKind = "golden"
)

// Score values per food kind.
const (
	NormalFoodValue = 1
	GoldenFoodValue = 5
)

type Food struct {
	Position  Position
	Kind      FoodKind
	SpawnedAt time.Time
	// ExpiresAt is zero for normal food.
	ExpiresAt time.Time
}

// Value is the score awarded for eating f.
func (f Food) Value() int {
	if f.Kind == FoodGolden {
		return GoldenFoodValue
	}
	return NormalFoodValue
}

// Expired reports whether f is golden food past its deadline.
func (f Food) Expired(now time.Time) bool {
	return f.Kind == FoodGolden && !f.ExpiresAt.IsZero() && now.After(f.ExpiresAt)
}

// Actor is a human- or bot-controlled snake.
type Actor struct {
	ID        string
	Name      string
	Body      []Position // head first
	Direction Position
	// Heading is the step taken on the last tick. Steering may not reverse it.
	Heading   Position
	Color     string
	Alive     bool
	Score     int
	IsBot     bool

	LastDirectionChange time.Time
	// DeathAt and RespawnAt are set together when the actor dies and cleared
	// on respawn.
	DeathAt   time.Time
	RespawnAt time.Time
}

// Head returns the first body cell. ok is false for an empty body.
func (a *Actor) Head() (Position, bool) {
	if len(a.Body) == 0 {
		return Position{}, false
	}
	return a.Body[0], true
}

// Occupies reports whether any body cell equals p.
func (a *Actor) Occupies(p Position) bool {
	for _, c := range a.Body {
		if c == p {
			return true
		}
	}
	return false
}

// Clone performs a deep copy of the actor.
func (a *Actor) Clone() Actor {
	out := *a
	if len(a.Body) > 0 {
		out.Body = make([]Position, len(a.Body))
		copy(out.Body, a.Body)
	}
	return out
}

// Board is a read-only view of a room's world handed to the bot planner.
type Board struct {
	Bounds Bounds
	Actors []Actor // join order
	Food   []Food
}

// Actor returns the actor with the given id.
func (b *Board) Actor(id string) (*Actor, bool) {
	for i := range b.Actors {
		if b.Actors[i].ID == id {
			return &b.Actors[i], true
		}
	}
	return nil, false
}

// Occupied reports whether p is covered by any actor body.
func (b *Board) Occupied(p Position) bool {
	for i := range b.Actors {
		if b.Actors[i].Occupies(p) {
			return true
		}
	}
	return false
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{Bounds: b.Bounds}
	if len(b.Actors) > 0 {
		out.Actors = make([]Actor, len(b.Actors))
		for i := range b.Actors {
			out.Actors[i] = b.Actors[i].Clone()
		}
	}
	if len(b.Food) > 0 {
		out.Food = make([]Food, len(b.Food))
		copy(out.Food, b.Food)
	}
	return out
}
