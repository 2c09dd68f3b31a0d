package room

import (
	"time"

	"github.com/brensch/snekarena/game"
)

type EventType string

const (
	EventStarted      EventType = "started"
	EventEnded        EventType = "ended"
	EventPlayerJoined EventType = "playerJoined"
	EventPlayerLeft   EventType = "playerLeft"
)

// EndReason records why a match finished.
type EndReason string

const (
	EndTimeUp       EndReason = "time-up"
	EndNoHumans     EndReason = "no-humans"
	EndLastStanding EndReason = "last-standing"
)

// NoWinner is reported when a match ends without any human actor.
const NoWinner = "nobody"

// Event is published by a room after the lock that produced it is released.
type Event struct {
	Type EventType
	At   time.Time

	// playerJoined / playerLeft
	ActorID string
	Name    string

	// ended
	Winner string
	Result *MatchResult
}

// Notifier receives room events. Implementations must not block for long;
// they run on the goroutine that mutated the room.
type Notifier interface {
	Publish(roomID string, ev Event)
}

// Notifiers fans an event out to several sinks in order.
type Notifiers []Notifier

func (ns Notifiers) Publish(roomID string, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Publish(roomID, ev)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, Event) {}

// MatchResult summarizes a finished match.
type MatchResult struct {
	MatchID   string
	Room      game.RoomConfig
	StartedAt time.Time
	EndedAt   time.Time
	Winner    string
	Reason    EndReason
	Players   []PlayerResult // join order
}

type PlayerResult struct {
	ID     string
	Name   string
	IsBot  bool
	Score  int
	Length int
	Alive  bool
}
