// Package room runs the authoritative simulation for a single match room:
// actor membership, the fixed-tick world update, the match phase machine and
// the events observers see.
//
// All mutation happens under the room mutex. Events produced while the lock
// is held are queued and handed to the Notifier after it is released, so a
// Notifier may call back into the room.
package room

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/snekarena/bot"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

// tickTolerance absorbs scheduler jitter when deciding whether a tick is due.
const tickTolerance = 5 * time.Millisecond

// Options carries a room's collaborators. Zero values fall back to the
// production implementations.
type Options struct {
	Scheduler Scheduler
	Clock     Clock
	Rand      *rand.Rand
	Notifier  Notifier
	Logger    *slog.Logger
	// NewBotID overrides the bot-<uuid> id generator.
	NewBotID func() string
}

// JoinOptions tunes admission.
type JoinOptions struct {
	// RejectInProgress refuses the join while a match is being played.
	RejectInProgress bool
}

// LeaveResult describes what a Leave changed.
type LeaveResult struct {
	Removed     bool
	RemovedBots []string
	Actors      int
	Humans      int
	Ended       bool
}

type Room struct {
	cfg      game.RoomConfig
	bounds   game.Bounds
	sched    Scheduler
	clock    Clock
	rng      *rand.Rand
	planner  *bot.Planner
	notify   Notifier
	log      *slog.Logger
	newBotID func() string

	mu        sync.Mutex
	actors    []game.Actor // join order
	food      []game.Food
	phase     game.Phase
	startedAt time.Time
	lastTick  time.Time
	matchID   string
	closed    bool
	// gen is bumped whenever the tick driver or reset timer is cancelled;
	// callbacks carrying an older value do nothing.
	gen       uint64
	stopTick  CancelFunc
	stopReset CancelFunc
	outbox    []Event
	result    *MatchResult
}

// New creates a room in the Waiting phase with its initial food laid out.
func New(cfg game.RoomConfig, opts Options) *Room {
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewBotID == nil {
		opts.NewBotID = func() string { return "bot-" + uuid.NewString() }
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = opts.Clock.Now()
	}

	logger := opts.Logger.With("room", cfg.ID)
	r := &Room{
		cfg:      cfg,
		bounds:   cfg.Settings.Bounds(),
		sched:    opts.Scheduler,
		clock:    opts.Clock,
		rng:      opts.Rand,
		planner:  bot.NewPlanner(bot.Options{Rand: opts.Rand, Logger: logger}),
		notify:   opts.Notifier,
		log:      logger,
		newBotID: opts.NewBotID,
		phase:    game.PhaseWaiting,
	}
	r.food = rules.SpawnFood(nil, nil, r.bounds, cfg.Settings.InitialFood, r.rng, r.clock.Now(), rules.FoodSettingsFrom(cfg.Settings))
	return r
}

func (r *Room) ID() string { return r.cfg.ID }

// Config returns the room's immutable configuration.
func (r *Room) Config() game.RoomConfig { return r.cfg }

// Join admits a human actor. Joining with an id already in the room returns
// the existing actor.
func (r *Room) Join(actorID, name string, opts JoinOptions) (game.Actor, error) {
	r.mu.Lock()
	actor, err := r.joinLocked(actorID, name, opts)
	events := r.drainLocked()
	r.mu.Unlock()

	r.publish(events)
	return actor, err
}

func (r *Room) joinLocked(actorID, name string, opts JoinOptions) (game.Actor, error) {
	if r.closed {
		return game.Actor{}, ErrRoomClosed
	}
	if a, ok := r.actorLocked(actorID); ok {
		return a.Clone(), nil
	}
	if len(r.actors) >= r.cfg.Settings.MaxPlayers {
		return game.Actor{}, ErrRoomFull
	}
	if opts.RejectInProgress && r.phase == game.PhasePlaying {
		return game.Actor{}, ErrGameInProgress
	}

	now := r.clock.Now()
	a := r.newActorLocked(actorID, name, false)
	r.actors = append(r.actors, a)
	r.emitLocked(Event{Type: EventPlayerJoined, At: now, ActorID: a.ID, Name: a.Name})
	r.log.Info("actor joined", "actor", a.ID, "name", a.Name, "actors", len(r.actors))
	r.maybeStartLocked(now)
	return a.Clone(), nil
}

// AddBot adds a bot with an unused roster name and color.
func (r *Room) AddBot() (game.Actor, error) {
	r.mu.Lock()
	actor, err := r.addBotLocked()
	events := r.drainLocked()
	r.mu.Unlock()

	r.publish(events)
	return actor, err
}

func (r *Room) addBotLocked() (game.Actor, error) {
	if r.closed {
		return game.Actor{}, ErrRoomClosed
	}
	if len(r.actors) >= r.cfg.Settings.MaxPlayers {
		return game.Actor{}, ErrRoomFull
	}

	now := r.clock.Now()
	a := r.newActorLocked(r.newBotID(), r.botNameLocked(), true)
	r.actors = append(r.actors, a)
	r.emitLocked(Event{Type: EventPlayerJoined, At: now, ActorID: a.ID, Name: a.Name})
	r.log.Info("bot added", "actor", a.ID, "name", a.Name, "actors", len(r.actors))
	r.maybeStartLocked(now)
	return a.Clone(), nil
}

// Leave removes an actor. A departing human takes the earliest-joined bot
// with it. A match in progress ends when no humans remain or fewer than two
// actors are still alive.
func (r *Room) Leave(actorID string) LeaveResult {
	r.mu.Lock()
	res := r.leaveLocked(actorID)
	events := r.drainLocked()
	r.mu.Unlock()

	r.publish(events)
	return res
}

func (r *Room) leaveLocked(actorID string) LeaveResult {
	now := r.clock.Now()
	idx := r.indexLocked(actorID)
	if idx < 0 {
		return LeaveResult{Actors: len(r.actors), Humans: r.humansLocked()}
	}

	departed := r.actors[idx]
	r.removeLocked(idx)
	r.emitLocked(Event{Type: EventPlayerLeft, At: now, ActorID: departed.ID, Name: departed.Name})
	res := LeaveResult{Removed: true}

	if !departed.IsBot {
		for i := range r.actors {
			if r.actors[i].IsBot {
				b := r.actors[i]
				r.removeLocked(i)
				r.emitLocked(Event{Type: EventPlayerLeft, At: now, ActorID: b.ID, Name: b.Name})
				res.RemovedBots = append(res.RemovedBots, b.ID)
				break
			}
		}
	}
	r.log.Info("actor left", "actor", departed.ID, "bots_removed", len(res.RemovedBots), "actors", len(r.actors))

	if r.phase == game.PhasePlaying {
		switch {
		case r.humansLocked() == 0:
			res.Ended = r.endLocked(now, EndNoHumans)
		case r.aliveLocked() < 2:
			res.Ended = r.endLocked(now, EndLastStanding)
		}
	}

	res.Actors = len(r.actors)
	res.Humans = r.humansLocked()
	return res
}

// UpdateDirection records a human's steering intent for the next tick.
// Unknown, dead and bot actors are ignored.
func (r *Room) UpdateDirection(actorID string, d game.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(actorID)
	if idx < 0 {
		return nil
	}
	a := &r.actors[idx]
	if a.IsBot || !a.Alive {
		return nil
	}
	if !game.IsUnit(d, r.cfg.Settings.GridSize) {
		return fmt.Errorf("%w: (%d,%d) is not a unit step", ErrInvalidDirection, d.X, d.Y)
	}
	heading := a.Heading
	if heading == (game.Position{}) {
		heading = a.Direction
	}
	if game.IsReverse(heading, d) {
		return fmt.Errorf("%w: (%d,%d) reverses current heading", ErrInvalidDirection, d.X, d.Y)
	}
	a.Direction = d
	return nil
}

// Close stops the tick driver and any pending reset. Further joins fail with
// ErrRoomClosed.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancelTickLocked()
	r.cancelResetLocked()
	r.log.Info("room closed")
}

// CloseIfVacant closes the room only if no human is seated, and reports
// whether it did. A Join racing with it either lands first and keeps the room
// open or fails with ErrRoomClosed.
func (r *Room) CloseIfVacant() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if r.humansLocked() > 0 {
		return false
	}
	r.closed = true
	r.cancelTickLocked()
	r.cancelResetLocked()
	r.log.Info("room closed", "actors", len(r.actors))
	return true
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.clock.Now())
}

func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

func (r *Room) Phase() game.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) ActorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

func (r *Room) HumanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humansLocked()
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Board returns a deep copy of the world.
func (r *Room) Board() game.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.boardLocked()
	return *b.Clone()
}

// LastResult returns the most recent finished match, if any.
func (r *Room) LastResult() (MatchResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return MatchResult{}, false
	}
	return *r.result, true
}

func (r *Room) boardLocked() game.Board {
	return game.Board{Bounds: r.bounds, Actors: r.actors, Food: r.food}
}

func (r *Room) newActorLocked(id, name string, isBot bool) game.Actor {
	a := game.Actor{
		ID:        id,
		Name:      name,
		Color:     r.colorLocked(),
		IsBot:     isBot,
		Direction: game.Right(r.cfg.Settings.GridSize),
		Heading:   game.Right(r.cfg.Settings.GridSize),
		Alive:     true,
	}
	p, _ := rules.SpawnPoint(r.bounds, r.rng, rules.LiveBodies(r.actors))
	a.Body = []game.Position{p}
	return a
}

// colorLocked returns the first palette color not held by an actor.
func (r *Room) colorLocked() string {
	for _, c := range game.Palette {
		used := false
		for i := range r.actors {
			if r.actors[i].Color == c {
				used = true
				break
			}
		}
		if !used {
			return c
		}
	}
	return game.Palette[len(r.actors)%len(game.Palette)]
}

func (r *Room) botNameLocked() string {
	for _, name := range game.BotNames {
		used := false
		for i := range r.actors {
			if r.actors[i].Name == name {
				used = true
				break
			}
		}
		if !used {
			return name
		}
	}
	return fmt.Sprintf("Bot%d", len(r.actors)+1)
}

func (r *Room) indexLocked(id string) int {
	for i := range r.actors {
		if r.actors[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) actorLocked(id string) (*game.Actor, bool) {
	if i := r.indexLocked(id); i >= 0 {
		return &r.actors[i], true
	}
	return nil, false
}

func (r *Room) removeLocked(idx int) {
	r.actors = append(r.actors[:idx], r.actors[idx+1:]...)
}

func (r *Room) humansLocked() int {
	n := 0
	for i := range r.actors {
		if !r.actors[i].IsBot {
			n++
		}
	}
	return n
}

func (r *Room) aliveLocked() int {
	n := 0
	for i := range r.actors {
		if r.actors[i].Alive {
			n++
		}
	}
	return n
}

func (r *Room) emitLocked(ev Event) {
	r.outbox = append(r.outbox, ev)
}

func (r *Room) drainLocked() []Event {
	events := r.outbox
	r.outbox = nil
	return events
}

func (r *Room) publish(events []Event) {
	for _, ev := range events {
		r.notify.Publish(r.cfg.ID, ev)
	}
}
