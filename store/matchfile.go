package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

var (
	ErrMissingMatchID = errors.New("match row has no match id")
	errMatchFileDone  = errors.New("match file already committed or discarded")
)

// matchFileSeq keeps names unique when two files cover the same span.
var matchFileSeq atomic.Uint64

// MatchFile is an archive file being filled. Rows go to a file under
// <dir>/tmp and Commit moves it into dir, named after the span of end times
// it covers, so readers only ever see complete files.
type MatchFile struct {
	dir string
	tmp *os.File
	w   *parquet.GenericWriter[MatchRow]

	matches    int
	firstEnded int64
	lastEnded  int64
}

func CreateMatchFile(dir string) (*MatchFile, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve archive dir: %w", err)
	}
	tmpDir := filepath.Join(abs, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	f, err := os.CreateTemp(tmpDir, "matches-*.parquet")
	if err != nil {
		return nil, fmt.Errorf("create tmp parquet: %w", err)
	}
	_ = f.Chmod(0o644)

	w := parquet.NewGenericWriter[MatchRow](f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}))
	w.SetKeyValueMetadata("schema", MatchSchema)
	return &MatchFile{dir: abs, tmp: f, w: w}, nil
}

// Len is the number of matches added so far.
func (m *MatchFile) Len() int { return m.matches }

// Add appends finished matches. Rows without a match id are refused before
// anything is written.
func (m *MatchFile) Add(rows ...MatchRow) error {
	if m.w == nil {
		return errMatchFileDone
	}
	for i := range rows {
		if rows[i].MatchID == "" {
			return fmt.Errorf("row %d: %w", i, ErrMissingMatchID)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := m.w.Write(rows); err != nil {
		return fmt.Errorf("write matches: %w", err)
	}
	for i := range rows {
		ended := rows[i].EndedMs
		if m.matches == 0 || ended < m.firstEnded {
			m.firstEnded = ended
		}
		if m.matches == 0 || ended > m.lastEnded {
			m.lastEnded = ended
		}
		m.matches++
	}
	return nil
}

// Commit seals the file and moves it into the archive directory. A file
// holding no matches is discarded and Commit returns an empty path. On any
// failure the partial file is removed.
func (m *MatchFile) Commit() (string, error) {
	if m.w == nil {
		return "", errMatchFileDone
	}
	if m.matches == 0 {
		return "", m.Discard()
	}

	m.w.SetKeyValueMetadata("matches", strconv.Itoa(m.matches))
	m.w.SetKeyValueMetadata("first_ended_ms", strconv.FormatInt(m.firstEnded, 10))
	m.w.SetKeyValueMetadata("last_ended_ms", strconv.FormatInt(m.lastEnded, 10))

	tmpPath := m.tmp.Name()
	if err := m.seal(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	out := filepath.Join(m.dir, fmt.Sprintf("matches_%d_%d_%d.parquet",
		m.firstEnded, m.lastEnded, matchFileSeq.Add(1)))
	if err := os.Rename(tmpPath, out); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish %s: %w", filepath.Base(out), err)
	}
	return out, nil
}

// Discard drops the file and everything added to it.
func (m *MatchFile) Discard() error {
	if m.w == nil {
		return nil
	}
	tmpPath := m.tmp.Name()
	_ = m.seal()
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove tmp parquet: %w", err)
	}
	return nil
}

// seal flushes the parquet footer and closes the tmp file. The MatchFile
// accepts nothing afterwards.
func (m *MatchFile) seal() error {
	werr := m.w.Close()
	_ = m.tmp.Sync()
	ferr := m.tmp.Close()
	m.w, m.tmp = nil, nil
	if werr != nil {
		return fmt.Errorf("close parquet writer: %w", werr)
	}
	if ferr != nil {
		return fmt.Errorf("close parquet file: %w", ferr)
	}
	return nil
}

// WriteMatches writes rows to a new archive file in dir in one go.
func WriteMatches(dir string, rows []MatchRow) (string, error) {
	mf, err := CreateMatchFile(dir)
	if err != nil {
		return "", err
	}
	if err := mf.Add(rows...); err != nil {
		_ = mf.Discard()
		return "", err
	}
	return mf.Commit()
}
