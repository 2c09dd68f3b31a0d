package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MatchIndex keeps the rows of every archive file in a directory in memory.
// Finalized files never change, so a refresh only reads files it has not
// seen yet.
type MatchIndex struct {
	dir         string
	refreshRate time.Duration
	log         *slog.Logger

	mu          sync.RWMutex
	seen        map[string]bool
	rows        []MatchRow // newest first
	lastRefresh time.Time
}

func NewMatchIndex(dir string, refreshRate time.Duration, logger *slog.Logger) *MatchIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchIndex{
		dir:         dir,
		refreshRate: refreshRate,
		log:         logger,
		seen:        make(map[string]bool),
	}
}

// Refresh loads any archive files written since the last refresh.
func (ix *MatchIndex) Refresh() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.refreshLocked()
}

func (ix *MatchIndex) refreshLocked() error {
	paths, err := ListArchives(ix.dir)
	if err != nil {
		return fmt.Errorf("list archives: %w", err)
	}
	added := 0
	for _, p := range paths {
		if ix.seen[p] {
			continue
		}
		rows, err := ReadMatches(p)
		if err != nil {
			return err
		}
		ix.seen[p] = true
		ix.rows = append(ix.rows, rows...)
		added += len(rows)
	}
	if added > 0 {
		sort.SliceStable(ix.rows, func(i, j int) bool { return ix.rows[i].EndedMs > ix.rows[j].EndedMs })
		ix.log.Debug("match index refreshed", "added", added, "total", len(ix.rows))
	}
	ix.lastRefresh = time.Now()
	return nil
}

// Recent returns up to limit matches, newest first, skipping offset. The
// index refreshes itself when older than its refresh rate.
func (ix *MatchIndex) Recent(limit, offset int) ([]MatchRow, int, error) {
	ix.mu.RLock()
	stale := time.Since(ix.lastRefresh) >= ix.refreshRate
	ix.mu.RUnlock()
	if stale {
		if err := ix.Refresh(); err != nil {
			return nil, 0, err
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	total := len(ix.rows)
	if offset >= total {
		return []MatchRow{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]MatchRow(nil), ix.rows[offset:end]...), total, nil
}

type MatchesResponse struct {
	Total   int        `json:"total"`
	Matches []MatchRow `json:"matches"`
}

// ServeHTTP lists archived matches. Query: limit (default 50), offset.
func (ix *MatchIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rows, total, err := ix.Recent(parseIntQuery(r, "limit", 50), parseIntQuery(r, "offset", 0))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(MatchesResponse{Total: total, Matches: rows})
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
