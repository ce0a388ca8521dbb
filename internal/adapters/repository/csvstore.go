package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultRankingFile is the on-disk result file name.
const defaultRankingFile = "ranking.csv"

var header = []string{"id", "name", "score", "image", "created_at"}

// CSVStore is a Store backed by a single CSV file. The whole record set is
// held in memory; every mutation rewrites the file through a temp file and
// an atomic rename in the same directory, so a crash leaves either the old
// or the new file, never a torn one.
//
// IDs are max(id)+1 and never reused while the file lives, so a deleted id
// stays unoccupied.
type CSVStore struct {
	mu      sync.Mutex
	path    string
	records []Record
	nextID  int64
}

// NewCSVStore opens (or initializes) the result file and loads it into
// memory. A missing file is an empty store; a malformed file is ErrStorage.
func NewCSVStore(opts ...Option) (*CSVStore, error) {
	s := &CSVStore{
		path:   defaultRankingFile,
		nextID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Insert persists a new result and returns the stored record.
func (s *CSVStore) Insert(ctx context.Context, name string, score int64, imageFile string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, fmt.Errorf("%w: empty name", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:        s.nextID,
		Name:      name,
		Score:     score,
		ImageFile: imageFile,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	s.records = append(s.records, rec)
	if err := s.flushLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return Record{}, err
	}
	s.nextID++
	return rec, nil
}

// TopN returns the top-N records by score desc, ties in insertion order.
func (s *CSVStore) TopN(ctx context.Context, n int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Delete removes the record with the given id, returning it for cascade
// cleanup. A missing id yields ok=false with no error.
func (s *CSVStore) Delete(ctx context.Context, id int64) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, rec := range s.records {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Record{}, false, nil
	}

	removed := s.records[idx]
	s.records = append(s.records[:idx:idx], s.records[idx+1:]...)
	if err := s.flushLocked(); err != nil {
		// Put it back where it was; the file still holds the old set.
		tail := append([]Record{removed}, s.records[idx:]...)
		s.records = append(s.records[:idx], tail...)
		return Record{}, false, err
	}
	return removed, true, nil
}

// Count returns the number of stored records.
func (s *CSVStore) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// load reads the backing file into memory.
func (s *CSVStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: open %s: %v", ErrStorage, s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
		}
		if first {
			first = false
			if row[0] == header[0] {
				continue
			}
		}
		rec, err := parseRow(row)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrStorage, s.path, err)
		}
		s.records = append(s.records, rec)
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
	}
	return nil
}

func parseRow(row []string) (Record, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad id %q: %w", row[0], err)
	}
	score, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad score %q: %w", row[2], err)
	}
	created, err := time.Parse(time.RFC3339, row[4])
	if err != nil {
		return Record{}, fmt.Errorf("bad created_at %q: %w", row[4], err)
	}
	return Record{
		ID:        id,
		Name:      row[1],
		Score:     score,
		ImageFile: row[3],
		CreatedAt: created,
	}, nil
}

// flushLocked rewrites the backing file atomically. Must be called with
// s.mu held.
func (s *CSVStore) flushLocked() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ranking-*.csv")
	if err != nil {
		return fmt.Errorf("%w: temp file in %s: %v", ErrStorage, dir, err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	writeErr := w.Write(header)
	for _, rec := range s.records {
		if writeErr != nil {
			break
		}
		writeErr = w.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.Name,
			strconv.FormatInt(rec.Score, 10),
			rec.ImageFile,
			rec.CreatedAt.Format(time.RFC3339),
		})
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrStorage, tmpName, writeErr)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrStorage, s.path, err)
	}
	return nil
}
