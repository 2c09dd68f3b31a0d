package rules

import (
	"math/rand"
	"time"

	"github.com/zyedidia/generic/mapset"

	"github.com/brensch/snekarena/game"
)

// MaxPlacementAttempts bounds the random search for a free cell.
const MaxPlacementAttempts = 50

// FoodSettings controls food spawning.
type FoodSettings struct {
	GoldenChance   float64       // probability in [0,1] that a new item is golden
	GoldenLifetime time.Duration // lifetime of golden items
}

// FoodSettingsFrom extracts the food knobs from room settings.
func FoodSettingsFrom(s game.Settings) FoodSettings {
	return FoodSettings{GoldenChance: s.GoldenChance, GoldenLifetime: s.GoldenLifetime}
}

// Occupancy collects every actor body cell and every food cell.
func Occupancy(actors []game.Actor, food []game.Food) mapset.Set[game.Position] {
	occupied := mapset.New[game.Position]()
	for i := range actors {
		for _, c := range actors[i].Body {
			occupied.Put(c)
		}
	}
	for _, f := range food {
		occupied.Put(f.Position)
	}
	return occupied
}

// ExpireFood drops golden food whose deadline has passed. The input slice is
// reused.
func ExpireFood(food []game.Food, now time.Time) []game.Food {
	kept := food[:0]
	for _, f := range food {
		if f.Expired(now) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// SpawnFood tries to place n new items on free cells and returns the grown
// slice. Each item gets MaxPlacementAttempts random tries; an item that finds
// no free cell is skipped, so fewer than n items may be added.
func SpawnFood(food []game.Food, actors []game.Actor, b game.Bounds, n int, rng *rand.Rand, now time.Time, settings FoodSettings) []game.Food {
	if n <= 0 || b.Cols() <= 0 || b.Rows() <= 0 {
		return food
	}
	occupied := Occupancy(actors, food)

	for i := 0; i < n; i++ {
		p, ok := randomFreeCell(b, rng, occupied.Has)
		if !ok {
			continue
		}
		f := game.Food{Position: p, Kind: game.FoodNormal, SpawnedAt: now}
		if settings.GoldenChance > 0 && rng.Float64() < settings.GoldenChance {
			f.Kind = game.FoodGolden
			f.ExpiresAt = now.Add(settings.GoldenLifetime)
		}
		food = append(food, f)
		occupied.Put(p)
	}
	return food
}

func randomFreeCell(b game.Bounds, rng *rand.Rand, taken func(game.Position) bool) (game.Position, bool) {
	for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
		p := b.Cell(rng.Intn(b.Cols()), rng.Intn(b.Rows()))
		if !taken(p) {
			return p, true
		}
	}
	return game.Position{}, false
}

// EatAt removes the food item at p, if any, and returns it.
func EatAt(food []game.Food, p game.Position) ([]game.Food, game.Food, bool) {
	for i := range food {
		if food[i].Position == p {
			eaten := food[i]
			return append(food[:i], food[i+1:]...), eaten, true
		}
	}
	return food, game.Food{}, false
}
