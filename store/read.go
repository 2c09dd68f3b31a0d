package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// ReadMatches loads every row of an archive file.
func ReadMatches(path string) ([]MatchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != MatchSchema {
		return nil, fmt.Errorf("%s: unexpected schema %q", path, schema)
	}

	reader := parquet.NewGenericReader[MatchRow](pf)
	defer reader.Close()

	out := make([]MatchRow, 0, reader.NumRows())
	for {
		// Fresh buffer per read; rows keep references into it.
		buf := make([]MatchRow, 64)
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// ListArchives returns the finalized archive files in dir, oldest first.
func ListArchives(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "matches_*.parquet"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
