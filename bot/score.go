package bot

import (
	"math"

	"github.com/zyedidia/generic/mapset"

	"github.com/brensch/snekarena/game"
)

func scoreMove(board *game.Board, actor *game.Actor, d game.Position, diff Difficulty) float64 {
	head, _ := actor.Head()
	next := head.Add(d)
	obstacles := liveBodies(board)

	score := foodScore(board, next, diff)

	if pathClear(board.Bounds, obstacles, next, d, lookahead(diff)) {
		score += 25 * diff.Multiplier
	} else {
		score += blockedPathPenalty
	}

	score += float64(openSpace(board.Bounds, obstacles, next)) * diff.Multiplier

	if diff.Multiplier > aggressionAbove {
		score += aggression(board, next)
	}
	return score
}

// foodScore rewards closing in on the nearest food, weighted by its value.
func foodScore(board *game.Board, next game.Position, diff Difficulty) float64 {
	var target *game.Food
	closest := math.MaxInt
	for i := range board.Food {
		dist := game.Manhattan(next, board.Food[i].Position)
		if dist < closest {
			closest = dist
			target = &board.Food[i]
		}
	}
	if target == nil {
		return 0
	}

	maxDist := float64(board.Bounds.Width + board.Bounds.Height)
	score := (maxDist - float64(closest)) / maxDist * float64(target.Value()) * 100 * diff.Multiplier
	if target.Kind == game.FoodGolden && diff.Multiplier > goldenBonusAbove {
		score += 50
	}
	return score
}

func lookahead(diff Difficulty) int {
	steps := int(math.Floor(diff.Multiplier))
	if steps < 2 {
		return 2
	}
	if steps > 4 {
		return 4
	}
	return steps
}

// pathClear walks straight ahead from next for steps cells.
func pathClear(b game.Bounds, obstacles mapset.Set[game.Position], next, d game.Position, steps int) bool {
	p := next
	for i := 0; i < steps; i++ {
		p = p.Add(d)
		if !b.Contains(p) || obstacles.Has(p) {
			return false
		}
	}
	return true
}

// openSpace counts free in-bounds cells in the 5x5 block around p.
func openSpace(b game.Bounds, obstacles mapset.Set[game.Position], p game.Position) int {
	free := 0
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			c := game.Position{X: p.X + dx*b.Grid, Y: p.Y + dy*b.Grid}
			if b.Contains(c) && !obstacles.Has(c) {
				free++
			}
		}
	}
	return free
}

// aggression rewards positions a few cells from a live human head without
// being adjacent to it.
func aggression(board *game.Board, next game.Position) float64 {
	g := board.Bounds.Grid
	score := 0.0
	for i := range board.Actors {
		h := &board.Actors[i]
		if h.IsBot || !h.Alive || len(h.Body) == 0 {
			continue
		}
		dist := game.Manhattan(next, h.Body[0])
		if dist > 2*g && dist < 6*g {
			score += aggressionBonus
		}
	}
	return score
}
