package store

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func rowEndingAt(id string, endedMs int64) MatchRow {
	row := RowFromResult(*testResult(id))
	row.EndedMs = endedMs
	return row
}

func TestMatchIndexPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteMatches(dir, []MatchRow{rowEndingAt("old", 1000), rowEndingAt("mid", 2000)}); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}

	ix := NewMatchIndex(dir, time.Hour, nil)
	rows, total, err := ix.Recent(10, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if total != 2 || rows[0].MatchID != "mid" || rows[1].MatchID != "old" {
		t.Fatalf("unexpected rows: total=%d %+v", total, rows)
	}

	if _, err := WriteMatches(dir, []MatchRow{rowEndingAt("new", 3000)}); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	// Still cached.
	if _, total, _ := ix.Recent(10, 0); total != 2 {
		t.Fatalf("index refreshed early: total=%d", total)
	}
	if err := ix.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	rows, total, err = ix.Recent(1, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if total != 3 || len(rows) != 1 || rows[0].MatchID != "new" {
		t.Fatalf("after refresh: total=%d %+v", total, rows)
	}

	rows, _, _ = ix.Recent(10, 2)
	if len(rows) != 1 || rows[0].MatchID != "old" {
		t.Fatalf("offset page: %+v", rows)
	}
	rows, _, _ = ix.Recent(10, 5)
	if len(rows) != 0 {
		t.Fatalf("page past the end: %+v", rows)
	}
}

func TestMatchIndexServeHTTP(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteMatches(dir, []MatchRow{rowEndingAt("a", 1000), rowEndingAt("b", 2000)}); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	ix := NewMatchIndex(dir, 0, nil)

	rec := httptest.NewRecorder()
	ix.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/matches?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
	var resp MatchesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Matches) != 1 || resp.Matches[0].MatchID != "b" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Matches[0].Players) != 2 {
		t.Fatalf("players missing from response: %+v", resp.Matches[0])
	}

	rec = httptest.NewRecorder()
	ix.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/matches", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d", rec.Code)
	}
}
