// Package store archives finished matches to parquet files.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/brensch/snekarena/room"
)

const (
	DefaultFlushEvery    = 100
	DefaultFlushInterval = time.Minute
)

var ErrArchiveClosed = errors.New("archive closed")

type ArchiveOptions struct {
	OutDir string
	// FlushEvery finalizes the current file once it holds this many matches.
	FlushEvery int
	// FlushInterval finalizes a non-empty file periodically. Zero disables it.
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Archive is a room.Notifier that writes a row for every ended match.
type Archive struct {
	outDir     string
	flushEvery int
	log        *slog.Logger

	mu      sync.Mutex
	file    *MatchFile
	closed  bool
	written []string
	matches int

	stop chan struct{}
	wg   sync.WaitGroup
}

func OpenArchive(opts ArchiveOptions) (*Archive, error) {
	if opts.OutDir == "" {
		return nil, fmt.Errorf("archive dir is required")
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &Archive{
		outDir:     opts.OutDir,
		flushEvery: opts.FlushEvery,
		log:        opts.Logger,
		stop:       make(chan struct{}),
	}
	if opts.FlushInterval > 0 {
		a.wg.Add(1)
		go a.flushLoop(opts.FlushInterval)
	}
	return a, nil
}

func (a *Archive) flushLoop(every time.Duration) {
	defer a.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			if _, err := a.Flush(); err != nil {
				a.log.Error("archive flush", "reason", "ticker", "error", err)
			}
		}
	}
}

// Publish implements room.Notifier. Only ended events with a result are kept.
func (a *Archive) Publish(roomID string, ev room.Event) {
	if ev.Type != room.EventEnded || ev.Result == nil {
		return
	}
	if err := a.Append(RowFromResult(*ev.Result)); err != nil {
		a.log.Error("archive match", "room", roomID, "match", ev.Result.MatchID, "error", err)
	}
}

// Append buffers one match, committing the file once it holds FlushEvery.
func (a *Archive) Append(row MatchRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrArchiveClosed
	}
	if a.file == nil {
		mf, err := CreateMatchFile(a.outDir)
		if err != nil {
			return err
		}
		a.file = mf
	}
	if err := a.file.Add(row); err != nil {
		if errors.Is(err, ErrMissingMatchID) {
			return err
		}
		// The writer state is unknown after a failed write; start over.
		dropped := a.file.Len()
		_ = a.file.Discard()
		a.file = nil
		return fmt.Errorf("archive match %s (dropped %d buffered): %w", row.MatchID, dropped, err)
	}
	a.matches++
	if a.file.Len() >= a.flushEvery {
		_, err := a.commitLocked("count")
		return err
	}
	return nil
}

// Flush commits the current file if it holds any matches and returns its path.
func (a *Archive) Flush() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitLocked("flush")
}

func (a *Archive) commitLocked(reason string) (string, error) {
	if a.file == nil {
		return "", nil
	}
	mf := a.file
	a.file = nil
	n := mf.Len()
	path, err := mf.Commit()
	if err != nil {
		return "", fmt.Errorf("commit %d matches: %w", n, err)
	}
	if path != "" {
		a.written = append(a.written, path)
		a.log.Info("archived matches", "reason", reason, "matches", n, "path", path)
	}
	return path, nil
}

// Files lists the files this archive has committed.
func (a *Archive) Files() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.written...)
}

// Matches counts rows accepted since the archive was opened.
func (a *Archive) Matches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matches
}

// Close stops the flush loop and commits any buffered matches. Later calls
// are no-ops.
func (a *Archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.commitLocked("close")
	return err
}
