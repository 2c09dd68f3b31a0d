package store

import (
	"testing"
	"time"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/registry"
	"github.com/brensch/snekarena/room"
)

func TestArchiveRecordsRegistryMatches(t *testing.T) {
	clock := room.NewManualClock(time.Unix(1_700_000_000, 0))
	sched := room.NewManualScheduler(clock)
	settings := game.DefaultSettings()
	settings.MatchDuration = time.Second

	reg := registry.New(registry.Options{Settings: settings, Clock: clock, Scheduler: sched, Seed: 7})
	defer reg.Close()

	a, err := OpenArchive(ArchiveOptions{OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	reg.Subscribe(a)

	rm, _, err := reg.JoinQuickMatch("alice", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := reg.AddBot(rm.ID()); err != nil {
		t.Fatalf("add bot: %v", err)
	}
	sched.Advance(2 * time.Second)
	if rm.Phase() != game.PhaseFinished {
		t.Fatalf("phase = %s, want finished", rm.Phase())
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	files := a.Files()
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	rows, err := ReadMatches(files[0])
	if err != nil {
		t.Fatalf("ReadMatches: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	row := rows[0]
	if row.RoomID != registry.QuickMatchID || row.Winner != "Alice" || row.Reason != string(room.EndTimeUp) {
		t.Fatalf("unexpected row: %+v", row)
	}
	if len(row.Players) != 2 || row.Players[0].ID != "alice" || !row.Players[1].IsBot {
		t.Fatalf("unexpected players: %+v", row.Players)
	}
	if row.EndedMs-row.StartedMs < time.Second.Milliseconds() {
		t.Fatalf("match lasted %dms", row.EndedMs-row.StartedMs)
	}
}
