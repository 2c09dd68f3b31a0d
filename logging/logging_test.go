package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyJSONHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With("room", "quick-match").WithGroup("tick").Info("collision",
		"actor", "bot-1",
		"error", errors.New("wall"),
		slog.Group("head", "x", 40, "y", 60),
	)

	if !strings.Contains(buf.String(), "\n  ") {
		t.Fatalf("output is not indented: %q", buf.String())
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got["msg"] != "collision" || got["level"] != "INFO" {
		t.Fatalf("unexpected header: %v", got)
	}
	if got["room"] != "quick-match" {
		t.Fatalf("room attr should sit outside the group: %v", got)
	}
	tick, ok := got["tick"].(map[string]any)
	if !ok {
		t.Fatalf("missing tick group: %v", got)
	}
	if tick["actor"] != "bot-1" || tick["error"] != "wall" {
		t.Fatalf("unexpected tick group: %v", tick)
	}
	head, ok := tick["head"].(map[string]any)
	if !ok || head["x"] != float64(40) || head["y"] != float64(60) {
		t.Fatalf("unexpected head group: %v", tick["head"])
	}
}

func TestPrettyJSONHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %s", buf.String())
	}
	log.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %s", buf.String())
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "json", "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("hello", "n", 3)
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("json handler output: %v", err)
	}
	if got["n"] != float64(3) {
		t.Fatalf("unexpected record: %v", got)
	}

	buf.Reset()
	log, err = New(&buf, "", "info")
	if err != nil {
		t.Fatalf("New text: %v", err)
	}
	log.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("text handler output: %q", buf.String())
	}

	if _, err := New(&buf, "xml", "info"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := New(&buf, "text", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
