package room

import (
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

// TimerReset names the one-shot timer that follows a finished match.
const TimerReset = "reset"

// Tick advances the world by one step if the room is playing and a full tick
// interval has passed since the previous one.
func (r *Room) Tick() {
	r.mu.Lock()
	r.tickLocked()
	events := r.drainLocked()
	r.mu.Unlock()

	r.publish(events)
}

// OnTimer handles a named timer firing. Unknown names are ignored.
func (r *Room) OnTimer(name string) {
	r.mu.Lock()
	r.onTimerLocked(name)
	events := r.drainLocked()
	r.mu.Unlock()

	r.publish(events)
}

func (r *Room) onTimerLocked(name string) {
	switch name {
	case TimerReset:
		if r.closed || r.phase != game.PhaseFinished {
			return
		}
		r.stopReset = nil
		r.resetLocked(r.clock.Now())
	default:
		r.log.Warn("unknown timer", "timer", name)
	}
}

// fire wraps a scheduler callback so that it is dropped once its generation
// has been cancelled.
func (r *Room) fire(gen uint64, fn func()) {
	r.mu.Lock()
	if r.gen != gen || r.closed {
		r.mu.Unlock()
		return
	}
	fn()
	events := r.drainLocked()
	r.mu.Unlock()

	r.publish(events)
}

func (r *Room) tickLocked() {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tick panicked, skipping", "panic", p, "stack", string(debug.Stack()))
		}
	}()

	if r.closed || r.phase != game.PhasePlaying {
		return
	}
	now := r.clock.Now()
	if !r.lastTick.IsZero() && now.Sub(r.lastTick) < r.cfg.Settings.TickInterval-tickTolerance {
		return
	}
	r.lastTick = now
	r.stepLocked(now)
}

func (r *Room) stepLocked(now time.Time) {
	s := r.cfg.Settings

	// Bots steer first so they move on this tick.
	board := r.boardLocked()
	for i := range r.actors {
		a := &r.actors[i]
		if !a.IsBot || !a.Alive {
			continue
		}
		if d, changed := r.planner.Plan(&board, a.ID, now); changed {
			a.Direction = d
			a.LastDirectionChange = now
		}
	}

	for i := range r.actors {
		a := &r.actors[i]
		if a.Alive || a.RespawnAt.IsZero() || now.Before(a.RespawnAt) {
			continue
		}
		r.respawnLocked(a, now)
	}

	movers := make([]rules.Mover, 0, len(r.actors))
	for i := range r.actors {
		a := &r.actors[i]
		head, ok := a.Head()
		if !a.Alive || !ok {
			continue
		}
		movers = append(movers, rules.Mover{ID: a.ID, Body: a.Body, Next: head.Add(a.Direction)})
	}
	dead := rules.Resolve(r.bounds, movers)

	for i := range r.actors {
		a := &r.actors[i]
		if !a.Alive {
			continue
		}
		if cause, ok := dead[a.ID]; ok {
			a.Alive = false
			a.Score = 0
			a.DeathAt = now
			a.RespawnAt = now.Add(s.RespawnCooldown)
			r.log.Debug("actor died", "actor", a.ID, "cause", cause)
			continue
		}

		head, _ := a.Head()
		next := head.Add(a.Direction)
		var eaten game.Food
		var ate bool
		r.food, eaten, ate = rules.EatAt(r.food, next)

		body := make([]game.Position, 0, len(a.Body)+1)
		body = append(body, next)
		if ate {
			body = append(body, a.Body...)
			a.Score += eaten.Value()
		} else {
			body = append(body, a.Body[:len(a.Body)-1]...)
		}
		a.Body = body
		a.Heading = a.Direction
	}

	r.food = rules.ExpireFood(r.food, now)
	if len(r.food) < s.MinFood {
		r.food = rules.SpawnFood(r.food, r.actors, r.bounds, s.RefillBatch, r.rng, now, rules.FoodSettingsFrom(s))
	}

	if now.Sub(r.startedAt) >= s.MatchDuration {
		r.endLocked(now, EndTimeUp)
	}
}

// respawnLocked gives a dead actor a fresh one-cell snake. If no free cell
// turns up the actor stays dead and is retried next tick.
func (r *Room) respawnLocked(a *game.Actor, now time.Time) {
	p, ok := rules.SpawnPoint(r.bounds, r.rng, rules.LiveBodies(r.actors))
	if !ok {
		r.log.Debug("no free spawn cell, respawn deferred", "actor", a.ID)
		return
	}
	a.Body = []game.Position{p}
	a.Direction = game.Right(r.cfg.Settings.GridSize)
	a.Heading = a.Direction
	a.Alive = true
	a.DeathAt = time.Time{}
	a.RespawnAt = time.Time{}
	a.LastDirectionChange = time.Time{}
}

func (r *Room) startableLocked() bool {
	return len(r.actors) >= r.cfg.Settings.MinPlayers && r.humansLocked() > 0
}

func (r *Room) maybeStartLocked(now time.Time) {
	if r.closed || r.phase != game.PhaseWaiting || !r.startableLocked() {
		return
	}
	r.startLocked(now)
}

func (r *Room) startLocked(now time.Time) {
	r.phase = game.PhasePlaying
	r.startedAt = now
	r.lastTick = now
	r.matchID = uuid.NewString()

	r.cancelTickLocked()
	gen := r.gen
	r.stopTick = r.sched.Every(r.cfg.Settings.TickInterval, func() {
		r.fire(gen, r.tickLocked)
	})

	r.emitLocked(Event{Type: EventStarted, At: now})
	r.log.Info("match started", "match", r.matchID, "actors", len(r.actors))
}

// endLocked moves a playing room to Finished. It reports whether the call
// made the transition; repeated calls are no-ops.
func (r *Room) endLocked(now time.Time, reason EndReason) bool {
	if r.phase != game.PhasePlaying {
		return false
	}
	r.phase = game.PhaseFinished
	r.cancelTickLocked()

	res := r.matchResultLocked(now, reason)
	r.result = &res
	r.emitLocked(Event{Type: EventEnded, At: now, Winner: res.Winner, Result: &res})
	r.log.Info("match ended", "match", r.matchID, "winner", res.Winner, "reason", reason)

	r.cancelResetLocked()
	gen := r.gen
	r.stopReset = r.sched.After(r.cfg.Settings.ResetDelay, func() {
		r.fire(gen, func() { r.onTimerLocked(TimerReset) })
	})
	return true
}

// resetLocked puts every actor back on the board with a fresh snake and new
// food, then starts again if the room is still startable.
func (r *Room) resetLocked(now time.Time) {
	for i := range r.actors {
		r.actors[i].Alive = false
		r.actors[i].Body = nil
	}
	for i := range r.actors {
		a := &r.actors[i]
		p, _ := rules.SpawnPoint(r.bounds, r.rng, rules.LiveBodies(r.actors))
		a.Body = []game.Position{p}
		a.Direction = game.Right(r.cfg.Settings.GridSize)
		a.Heading = a.Direction
		a.Score = 0
		a.Alive = true
		a.DeathAt = time.Time{}
		a.RespawnAt = time.Time{}
		a.LastDirectionChange = time.Time{}
	}
	r.food = rules.SpawnFood(nil, r.actors, r.bounds, r.cfg.Settings.InitialFood, r.rng, now, rules.FoodSettingsFrom(r.cfg.Settings))

	r.phase = game.PhaseWaiting
	r.startedAt = time.Time{}
	r.lastTick = time.Time{}
	r.log.Info("room reset", "actors", len(r.actors))
	r.maybeStartLocked(now)
}

// matchResultLocked picks the highest scoring human, earliest joiner first.
func (r *Room) matchResultLocked(now time.Time, reason EndReason) MatchResult {
	res := MatchResult{
		MatchID:   r.matchID,
		Room:      r.cfg,
		StartedAt: r.startedAt,
		EndedAt:   now,
		Winner:    NoWinner,
		Reason:    reason,
		Players:   make([]PlayerResult, 0, len(r.actors)),
	}
	best := -1
	for i := range r.actors {
		a := &r.actors[i]
		res.Players = append(res.Players, PlayerResult{
			ID:     a.ID,
			Name:   a.Name,
			IsBot:  a.IsBot,
			Score:  a.Score,
			Length: len(a.Body),
			Alive:  a.Alive,
		})
		if !a.IsBot && a.Score > best {
			best = a.Score
			res.Winner = a.Name
		}
	}
	return res
}

func (r *Room) cancelTickLocked() {
	r.gen++
	if r.stopTick != nil {
		r.stopTick()
		r.stopTick = nil
	}
}

func (r *Room) cancelResetLocked() {
	r.gen++
	if r.stopReset != nil {
		r.stopReset()
		r.stopReset = nil
	}
}
