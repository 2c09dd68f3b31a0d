// Package registry owns the set of live rooms: it creates them, routes
// actors to them by id or join code, and tears down rooms nobody is playing
// in any more.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/room"
)

const (
	QuickMatchID   = "quick-match"
	QuickMatchName = "Quick Match"

	defaultRoomName = "Private Room"
	codeLength      = 6
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 10
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrCodeExhausted = errors.New("could not allocate a unique room code")
)

// Options configures a Registry. Zero values use production defaults.
type Options struct {
	Settings  game.Settings
	Logger    *slog.Logger
	Clock     room.Clock
	Scheduler room.Scheduler
	Notifier  room.Notifier
	// NewCode overrides the random join code generator.
	NewCode func() string
	// Seed, when non-zero, makes code generation and every room's randomness
	// reproducible.
	Seed int64
}

type Registry struct {
	settings game.Settings
	log      *slog.Logger
	clock    room.Clock
	sched    room.Scheduler
	notify   *fanout
	newCode  func() string

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	rooms  map[string]*room.Room
	codes  map[string]string // code -> room id
	closed bool
}

func New(opts Options) *Registry {
	if opts.Settings == (game.Settings{}) {
		opts.Settings = game.DefaultSettings()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = room.SystemClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = room.TimerScheduler{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &Registry{
		settings: opts.Settings,
		log:      opts.Logger,
		clock:    opts.Clock,
		sched:    opts.Scheduler,
		notify:   &fanout{},
		newCode:  opts.NewCode,
		rng:      rand.New(rand.NewSource(seed)),
		rooms:    make(map[string]*room.Room),
		codes:    make(map[string]string),
	}
	if r.newCode == nil {
		r.newCode = r.randomCode
	}
	if opts.Notifier != nil {
		r.Subscribe(opts.Notifier)
	}
	return r
}

// Subscribe adds a sink for the events of every room, including rooms that
// already exist.
func (r *Registry) Subscribe(n room.Notifier) {
	r.notify.add(n)
}

type fanout struct {
	mu    sync.RWMutex
	sinks room.Notifiers
}

func (f *fanout) add(n room.Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, n)
}

func (f *fanout) Publish(roomID string, ev room.Event) {
	f.mu.RLock()
	sinks := f.sinks
	f.mu.RUnlock()
	sinks.Publish(roomID, ev)
}

// DefaultName is the name given to actors that join without one.
func DefaultName(actorID, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	short := actorID
	if len(short) > 4 {
		short = short[:4]
	}
	return "Player" + short
}

// JoinQuickMatch joins the shared public room, creating it on first use.
func (r *Registry) JoinQuickMatch(actorID, name string) (*room.Room, game.Actor, error) {
	rm, err := r.quickMatch()
	if err != nil {
		return nil, game.Actor{}, err
	}
	actor, err := rm.Join(actorID, DefaultName(actorID, name), room.JoinOptions{})
	if err != nil {
		return nil, game.Actor{}, r.translate(err)
	}
	return rm, actor, nil
}

func (r *Registry) quickMatch() (*room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomNotFound
	}
	if rm, ok := r.rooms[QuickMatchID]; ok {
		return rm, nil
	}
	code, err := r.allocateCodeLocked()
	if err != nil {
		return nil, err
	}
	rm := r.createLocked(game.RoomConfig{
		ID:        QuickMatchID,
		Code:      code,
		Name:      QuickMatchName,
		IsPrivate: false,
	})
	return rm, nil
}

// CreateRoom makes a private room with a fresh join code and seats its
// creator in it.
func (r *Registry) CreateRoom(actorID, name, roomName string) (*room.Room, game.Actor, error) {
	if roomName = strings.TrimSpace(roomName); roomName == "" {
		roomName = defaultRoomName
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, game.Actor{}, ErrRoomNotFound
	}
	code, err := r.allocateCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return nil, game.Actor{}, err
	}
	rm := r.createLocked(game.RoomConfig{
		ID:        "room-" + code,
		Code:      code,
		Name:      roomName,
		IsPrivate: true,
		CreatedBy: actorID,
	})
	r.mu.Unlock()

	actor, err := rm.Join(actorID, DefaultName(actorID, name), room.JoinOptions{})
	if err != nil {
		r.destroyIfVacant(rm.ID())
		return nil, game.Actor{}, fmt.Errorf("seat creator in %s: %w", rm.ID(), r.translate(err))
	}
	return rm, actor, nil
}

// JoinByCode joins the room holding code. Codes are case-insensitive.
// Joining a match that is already being played is refused.
func (r *Registry) JoinByCode(actorID, name, code string) (*room.Room, game.Actor, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.Lock()
	id, ok := r.codes[code]
	var rm *room.Room
	if ok {
		rm = r.rooms[id]
	}
	r.mu.Unlock()
	if rm == nil {
		return nil, game.Actor{}, fmt.Errorf("code %q: %w", code, ErrRoomNotFound)
	}

	actor, err := rm.Join(actorID, DefaultName(actorID, name), room.JoinOptions{RejectInProgress: true})
	if err != nil {
		return nil, game.Actor{}, r.translate(err)
	}
	return rm, actor, nil
}

// Leave removes the actor from roomID. Rooms other than the quick match are
// destroyed once no human is left in them; bots alone do not keep a room.
func (r *Registry) Leave(roomID, actorID string) (room.LeaveResult, error) {
	rm, ok := r.Room(roomID)
	if !ok {
		return room.LeaveResult{}, fmt.Errorf("leave %s: %w", roomID, ErrRoomNotFound)
	}
	res := rm.Leave(actorID)
	if roomID != QuickMatchID && res.Humans == 0 {
		r.destroyIfVacant(roomID)
	}
	return res, nil
}

func (r *Registry) AddBot(roomID string) (game.Actor, error) {
	rm, ok := r.Room(roomID)
	if !ok {
		return game.Actor{}, fmt.Errorf("add bot to %s: %w", roomID, ErrRoomNotFound)
	}
	actor, err := rm.AddBot()
	if err != nil {
		return game.Actor{}, r.translate(err)
	}
	return actor, nil
}

func (r *Registry) UpdateDirection(roomID, actorID string, d game.Position) error {
	rm, ok := r.Room(roomID)
	if !ok {
		return fmt.Errorf("steer in %s: %w", roomID, ErrRoomNotFound)
	}
	return rm.UpdateDirection(actorID, d)
}

// Room looks up a live room by id.
func (r *Registry) Room(roomID string) (*room.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// Rooms returns every live room, oldest first.
func (r *Registry) Rooms() []*room.Room {
	r.mu.Lock()
	out := make([]*room.Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Config(), out[j].Config()
		if ci.CreatedAt.Equal(cj.CreatedAt) {
			return ci.ID < cj.ID
		}
		return ci.CreatedAt.Before(cj.CreatedAt)
	})
	return out
}

// ListPublicRooms summarizes the non-private rooms that have anyone in them.
func (r *Registry) ListPublicRooms() []room.Info {
	var out []room.Info
	for _, rm := range r.Rooms() {
		if rm.Config().IsPrivate {
			continue
		}
		info := rm.Info()
		if info.PlayerCount == 0 {
			continue
		}
		out = append(out, info)
	}
	return out
}

// Close shuts down every room. The registry refuses new rooms afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	rooms := make([]*room.Room, 0, len(r.rooms))
	for id, rm := range r.rooms {
		rooms = append(rooms, rm)
		delete(r.rooms, id)
	}
	r.codes = make(map[string]string)
	r.mu.Unlock()

	for _, rm := range rooms {
		rm.Close()
	}
	r.log.Info("registry closed", "rooms", len(rooms))
}

func (r *Registry) createLocked(cfg game.RoomConfig) *room.Room {
	cfg.CreatedAt = r.clock.Now()
	cfg.Settings = r.settings

	r.rngMu.Lock()
	seed := r.rng.Int63()
	r.rngMu.Unlock()

	rm := room.New(cfg, room.Options{
		Scheduler: r.sched,
		Clock:     r.clock,
		Rand:      rand.New(rand.NewSource(seed)),
		Notifier:  r.notify,
		Logger:    r.log,
	})
	r.rooms[cfg.ID] = rm
	r.codes[cfg.Code] = cfg.ID
	r.log.Info("room created", "room", cfg.ID, "code", cfg.Code, "private", cfg.IsPrivate)
	return rm
}

// destroyIfVacant unmaps and closes roomID unless a human has been seated
// since the caller looked. The room decides under its own lock and the
// mapping changes under r.mu, so no room is closed with a human inside.
func (r *Registry) destroyIfVacant(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if !rm.CloseIfVacant() {
		r.log.Debug("room kept, a human joined before teardown", "room", roomID)
		return false
	}
	delete(r.rooms, roomID)
	delete(r.codes, rm.Config().Code)
	r.log.Info("room destroyed", "room", roomID)
	return true
}

// allocateCodeLocked draws codes until one is unused.
func (r *Registry) allocateCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := r.newCode()
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func (r *Registry) randomCode() string {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[r.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// translate maps a closed room, which can race with a lookup, to not found.
func (r *Registry) translate(err error) error {
	if errors.Is(err, room.ErrRoomClosed) {
		return fmt.Errorf("%w: %w", ErrRoomNotFound, err)
	}
	return err
}
