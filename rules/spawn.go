package rules

import (
	"math/rand"

	"github.com/brensch/snekarena/game"
)

// spawnInset keeps fresh snakes away from the walls.
const spawnInset = 5

// SpawnPoint picks a random cell at least spawnInset cells from every wall
// (or anywhere, on boards too small for the inset) that taken rejects. After
// MaxPlacementAttempts the last candidate is returned with ok=false.
func SpawnPoint(b game.Bounds, rng *rand.Rand, taken func(game.Position) bool) (game.Position, bool) {
	var p game.Position
	for attempt := 0; attempt < MaxPlacementAttempts; attempt++ {
		p = b.Cell(insetIndex(b.Cols(), rng), insetIndex(b.Rows(), rng))
		if taken == nil || !taken(p) {
			return p, true
		}
	}
	return p, false
}

func insetIndex(n int, rng *rand.Rand) int {
	if n <= 0 {
		return 0
	}
	if n <= 2*spawnInset {
		return rng.Intn(n)
	}
	return rng.Intn(n-2*spawnInset) + spawnInset
}

// LiveBodies returns a predicate matching cells covered by a live actor.
func LiveBodies(actors []game.Actor) func(game.Position) bool {
	return func(p game.Position) bool {
		for i := range actors {
			if actors[i].Alive && actors[i].Occupies(p) {
				return true
			}
		}
		return false
	}
}
