package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/room"
)

func testResult(id string) *room.MatchResult {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &room.MatchResult{
		MatchID: id,
		Room: game.RoomConfig{
			ID:        "room-AB12CD",
			Code:      "AB12CD",
			Name:      "Friday Night",
			IsPrivate: true,
			Settings:  game.DefaultSettings(),
		},
		StartedAt: start,
		EndedAt:   start.Add(5 * time.Minute),
		Winner:    "Alice",
		Reason:    room.EndTimeUp,
		Players: []room.PlayerResult{
			{ID: "h1", Name: "Alice", Score: 11, Length: 8, Alive: true},
			{ID: "bot-1", Name: "Viper", IsBot: true, Score: 3, Length: 4},
		},
	}
}

func TestRowFromResult(t *testing.T) {
	row := RowFromResult(*testResult("m1"))
	if row.MatchID != "m1" || row.RoomCode != "AB12CD" || !row.IsPrivate {
		t.Fatalf("unexpected row header: %+v", row)
	}
	if row.EndedMs-row.StartedMs != (5 * time.Minute).Milliseconds() {
		t.Fatalf("duration = %dms", row.EndedMs-row.StartedMs)
	}
	if row.Reason != "time-up" {
		t.Fatalf("reason = %q", row.Reason)
	}
	if len(row.Players) != 2 || row.Players[0].Name != "Alice" || !row.Players[1].IsBot {
		t.Fatalf("players = %+v", row.Players)
	}
}

func TestWriteAndReadMatches(t *testing.T) {
	dir := t.TempDir()
	rows := []MatchRow{RowFromResult(*testResult("m1")), RowFromResult(*testResult("m2"))}

	path, err := WriteMatches(dir, rows)
	if err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	if filepath.Dir(path) != mustAbs(t, dir) {
		t.Fatalf("file written to %s, want %s", path, dir)
	}

	got, err := ReadMatches(path)
	if err != nil {
		t.Fatalf("ReadMatches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d rows, want 2", len(got))
	}
	if got[1].MatchID != "m2" || got[0].Players[0].Score != 11 || got[0].Players[1].Length != 4 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	assertTmpEmpty(t, dir)
}

func TestCommitEmptyMatchFileLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	mf, err := CreateMatchFile(dir)
	if err != nil {
		t.Fatalf("CreateMatchFile: %v", err)
	}
	path, err := mf.Commit()
	if err != nil || path != "" {
		t.Fatalf("Commit = %q, %v", path, err)
	}
	assertTmpEmpty(t, dir)
	files, _ := ListArchives(dir)
	if len(files) != 0 {
		t.Fatalf("archives = %v", files)
	}
	if err := mf.Add(RowFromResult(*testResult("late"))); err == nil {
		t.Fatal("Add after Commit should fail")
	}
}

func TestMatchFileNamedAfterEndTimes(t *testing.T) {
	dir := t.TempDir()
	mf, err := CreateMatchFile(dir)
	if err != nil {
		t.Fatalf("CreateMatchFile: %v", err)
	}
	late, early := RowFromResult(*testResult("late")), RowFromResult(*testResult("early"))
	late.EndedMs, early.EndedMs = 3000, 1000
	if err := mf.Add(late, early); err != nil {
		t.Fatalf("Add: %v", err)
	}
	path, err := mf.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if base := filepath.Base(path); !strings.HasPrefix(base, "matches_1000_3000_") {
		t.Fatalf("file name %s does not carry the end time span", base)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	st, _ := f.Stat()
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		t.Fatalf("parquet.OpenFile: %v", err)
	}
	for key, want := range map[string]string{"schema": MatchSchema, "matches": "2", "first_ended_ms": "1000", "last_ended_ms": "3000"} {
		if got, ok := pf.Lookup(key); !ok || got != want {
			t.Fatalf("metadata %s = %q, want %q", key, got, want)
		}
	}
}

func TestMatchFileRejectsRowWithoutID(t *testing.T) {
	dir := t.TempDir()
	row := RowFromResult(*testResult(""))
	if _, err := WriteMatches(dir, []MatchRow{row}); !errors.Is(err, ErrMissingMatchID) {
		t.Fatalf("want ErrMissingMatchID, got %v", err)
	}
	assertTmpEmpty(t, dir)
	if files, _ := ListArchives(dir); len(files) != 0 {
		t.Fatalf("archives = %v", files)
	}
}

func TestDiscardRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	mf, err := CreateMatchFile(dir)
	if err != nil {
		t.Fatalf("CreateMatchFile: %v", err)
	}
	if err := mf.Add(RowFromResult(*testResult("m1"))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mf.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	assertTmpEmpty(t, dir)
	if _, err := mf.Commit(); err == nil {
		t.Fatal("Commit after Discard should fail")
	}
}

func assertTmpEmpty(t *testing.T, dir string) {
	t.Helper()
	tmp, err := os.ReadDir(filepath.Join(dir, "tmp"))
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	if len(tmp) != 0 {
		t.Fatalf("tmp dir not empty: %d entries", len(tmp))
	}
}

func TestArchiveFlushesOnCount(t *testing.T) {
	dir := t.TempDir()
	a, err := OpenArchive(ArchiveOptions{OutDir: dir, FlushEvery: 2})
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}

	a.Publish("room-AB12CD", room.Event{Type: room.EventStarted})
	a.Publish("room-AB12CD", room.Event{Type: room.EventEnded, Winner: "Alice"})
	a.Publish("room-AB12CD", room.Event{Type: room.EventEnded, Result: testResult("m1")})
	if len(a.Files()) != 0 {
		t.Fatalf("flushed too early: %v", a.Files())
	}
	a.Publish("room-AB12CD", room.Event{Type: room.EventEnded, Result: testResult("m2")})
	if len(a.Files()) != 1 {
		t.Fatalf("expected one file after two matches, got %v", a.Files())
	}
	a.Publish("room-AB12CD", room.Event{Type: room.EventEnded, Result: testResult("m3")})

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	files := a.Files()
	if len(files) != 2 {
		t.Fatalf("expected two files after close, got %v", files)
	}
	if a.Matches() != 3 {
		t.Fatalf("matches = %d, want 3", a.Matches())
	}

	first, err := ReadMatches(files[0])
	if err != nil {
		t.Fatalf("ReadMatches: %v", err)
	}
	second, err := ReadMatches(files[1])
	if err != nil {
		t.Fatalf("ReadMatches: %v", err)
	}
	if len(first) != 2 || len(second) != 1 || second[0].MatchID != "m3" {
		t.Fatalf("unexpected batches: %d + %d", len(first), len(second))
	}

	listed, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %v", listed)
	}
}

func TestArchiveFlushesOnInterval(t *testing.T) {
	dir := t.TempDir()
	a, err := OpenArchive(ArchiveOptions{OutDir: dir, FlushEvery: 100, FlushInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer a.Close()

	if err := a.Append(RowFromResult(*testResult("m1"))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(a.Files()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestArchiveRejectsAfterClose(t *testing.T) {
	a, err := OpenArchive(ArchiveOptions{OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := a.Append(MatchRow{MatchID: "late"}); err != ErrArchiveClosed {
		t.Fatalf("Append after close = %v, want ErrArchiveClosed", err)
	}
	if len(a.Files()) != 0 {
		t.Fatalf("closing an empty archive wrote %v", a.Files())
	}
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

func TestArchiveKeepsBufferOnRowWithoutID(t *testing.T) {
	a, err := OpenArchive(ArchiveOptions{OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	if err := a.Append(RowFromResult(*testResult("m1"))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Append(RowFromResult(*testResult(""))); !errors.Is(err, ErrMissingMatchID) {
		t.Fatalf("want ErrMissingMatchID, got %v", err)
	}
	path, err := a.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	rows, err := ReadMatches(path)
	if err != nil {
		t.Fatalf("ReadMatches: %v", err)
	}
	if len(rows) != 1 || rows[0].MatchID != "m1" {
		t.Fatalf("rows = %+v", rows)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
