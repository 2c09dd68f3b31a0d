// Package bot implements the heuristic planner that steers bot actors.
//
// Bots get harder as the strongest human grows: they re-plan more often,
// weight food and clear paths more, hunt humans above a threshold, and make
// fewer random moves.
package bot

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/zyedidia/generic/mapset"

	"github.com/brensch/snekarena/game"
)

const (
	baseDifficulty     = 1.5
	goldenBonusAbove   = 1.5
	aggressionAbove    = 1.8
	minCooldown        = 80 * time.Millisecond
	maxCooldown        = 200 * time.Millisecond
	cooldownPerScore   = 8 * time.Millisecond
	cooldownJitter     = 150 * time.Millisecond
	blockedPathPenalty = -1000.0
	aggressionBonus    = 15.0
)

// Difficulty is derived from the leading human each time a bot plans.
type Difficulty struct {
	Multiplier float64
	Cooldown   time.Duration // before jitter
}

// Assess computes the difficulty for board. Humans are counted whether alive
// or not; with no humans the board is at base difficulty.
func Assess(board *game.Board) Difficulty {
	leadingScore, leadingLength := 0, 1
	for i := range board.Actors {
		a := &board.Actors[i]
		if a.IsBot {
			continue
		}
		if a.Score > leadingScore {
			leadingScore = a.Score
		}
		if len(a.Body) > leadingLength {
			leadingLength = len(a.Body)
		}
	}

	cooldown := maxCooldown - time.Duration(leadingScore)*cooldownPerScore
	if cooldown < minCooldown {
		cooldown = minCooldown
	}
	return Difficulty{
		Multiplier: baseDifficulty + float64(leadingLength-1)*0.1,
		Cooldown:   cooldown,
	}
}

// Options configures a Planner.
type Options struct {
	Rand   *rand.Rand
	Logger *slog.Logger
	// DisableNoise removes cooldown jitter and the random override so plans
	// are a pure function of the board.
	DisableNoise bool
}

type Planner struct {
	rng     *rand.Rand
	log     *slog.Logger
	noNoise bool
}

func NewPlanner(opts Options) *Planner {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{rng: rng, log: logger, noNoise: opts.DisableNoise}
}

// Plan returns the direction the actor should take and whether it differs
// from its current one. Callers commit the direction (and reset the cooldown)
// only when changed is true. Plan does not mutate board.
func (p *Planner) Plan(board *game.Board, actorID string, now time.Time) (dir game.Position, changed bool) {
	actor, ok := board.Actor(actorID)
	if !ok || !actor.Alive || len(actor.Body) == 0 {
		return game.Position{}, false
	}
	diff := Assess(board)

	cooldown := diff.Cooldown
	if !p.noNoise {
		cooldown += time.Duration(p.rng.Int63n(int64(cooldownJitter)))
	}
	if !actor.LastDirectionChange.IsZero() && now.Sub(actor.LastDirectionChange) < cooldown {
		return actor.Direction, false
	}

	safe := SafeDirections(board, actor)
	if len(safe) == 0 {
		candidates := Candidates(board.Bounds.Grid, actor.Direction)
		pick := candidates[p.rng.Intn(len(candidates))]
		p.log.Debug("bot stalemate, taking fallback move", "actor", actorID, "dx", pick.X, "dy", pick.Y)
		return pick, pick != actor.Direction
	}

	best := safe[0]
	bestScore := math.Inf(-1)
	for _, d := range safe {
		s := scoreMove(board, actor, d, diff)
		if s > bestScore {
			best, bestScore = d, s
		}
	}

	if !p.noNoise {
		chance := math.Max(0.03, 0.12-(diff.Multiplier-baseDifficulty)*0.08)
		if p.rng.Float64() < chance {
			best = safe[p.rng.Intn(len(safe))]
		}
	}

	return best, best != actor.Direction
}

// Candidates lists the unit directions that are not a reversal of current.
func Candidates(grid int, current game.Position) []game.Position {
	out := make([]game.Position, 0, 4)
	for _, d := range game.Directions(grid) {
		if game.IsReverse(current, d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SafeDirections returns the candidates whose next head stays on the board
// and off every live body, including the actor's own.
func SafeDirections(board *game.Board, actor *game.Actor) []game.Position {
	head, ok := actor.Head()
	if !ok {
		return nil
	}
	obstacles := liveBodies(board)
	var safe []game.Position
	for _, d := range Candidates(board.Bounds.Grid, actor.Direction) {
		next := head.Add(d)
		if !board.Bounds.Contains(next) || obstacles.Has(next) {
			continue
		}
		safe = append(safe, d)
	}
	return safe
}

func liveBodies(board *game.Board) mapset.Set[game.Position] {
	cells := mapset.New[game.Position]()
	for i := range board.Actors {
		if !board.Actors[i].Alive {
			continue
		}
		for _, c := range board.Actors[i].Body {
			cells.Put(c)
		}
	}
	return cells
}
