// Package rules holds the pure parts of the simulation: simultaneous-move
// collision resolution, food lifecycle and spawn placement.
package rules

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/brensch/snekarena/game"
)

// Cause explains why an actor was destroyed.
type Cause string

const (
	CauseWall   Cause = "wall"
	CauseSelf   Cause = "self"
	CauseOther  Cause = "other"
	CauseHeadOn Cause = "head-on"
)

// Mover is the frozen pre-tick view of one live actor together with the cell
// its head is about to enter.
type Mover struct {
	ID   string
	Body []game.Position // head first, pre-move
	Next game.Position
}

// Resolve decides which movers die this tick. All checks run against the
// pre-move bodies, so the result does not depend on the order of movers.
//
// Head-on deaths come first and cover two shapes: a pair swapping head cells,
// and any group of two or more movers entering the same cell. Head-on movers
// are not colliders for the remaining wall/self/other checks.
func Resolve(b game.Bounds, movers []Mover) map[string]Cause {
	dead := make(map[string]Cause)

	for i := 0; i < len(movers); i++ {
		if len(movers[i].Body) == 0 {
			continue
		}
		for j := i + 1; j < len(movers); j++ {
			if len(movers[j].Body) == 0 {
				continue
			}
			if movers[i].Next == movers[j].Body[0] && movers[j].Next == movers[i].Body[0] {
				dead[movers[i].ID] = CauseHeadOn
				dead[movers[j].ID] = CauseHeadOn
			}
		}
	}

	targets := make(map[game.Position]int, len(movers))
	for _, m := range movers {
		targets[m.Next]++
	}
	for _, m := range movers {
		if targets[m.Next] > 1 {
			dead[m.ID] = CauseHeadOn
		}
	}

	bodies := mapset.New[game.Position]()
	for _, m := range movers {
		if _, ok := dead[m.ID]; ok {
			continue
		}
		for _, c := range m.Body {
			bodies.Put(c)
		}
	}

	for _, m := range movers {
		if _, ok := dead[m.ID]; ok {
			continue
		}
		if !b.Contains(m.Next) {
			dead[m.ID] = CauseWall
			continue
		}
		if occupies(m.Body, m.Next) {
			dead[m.ID] = CauseSelf
			continue
		}
		// Own cells were ruled out above, so any hit here belongs to another mover.
		if bodies.Has(m.Next) {
			dead[m.ID] = CauseOther
		}
	}

	return dead
}

func occupies(body []game.Position, p game.Position) bool {
	for _, c := range body {
		if c == p {
			return true
		}
	}
	return false
}
