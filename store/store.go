// Package store keeps a durable, deduplicating registry of image
// fingerprints. Each record maps a canonical fingerprint to its metadata and
// an append-only history of observed file locations.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"imagedupe/fingerprint"
	"imagedupe/logging"
)

// BackupSuffix is appended to an unparsable database file before the store
// resets to empty.
const BackupSuffix = ".backup"

const tempSuffix = ".tmp"

// ErrThresholdOutOfRange is returned by FindSimilar for thresholds outside
// the 0-100 range.
var ErrThresholdOutOfRange = errors.New("threshold must be between 0 and 100")

// LocationEntry records one sighting of an image. Entries are append-only
// and never mutated after creation.
type LocationEntry struct {
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// Record holds everything known about one canonical fingerprint.
type Record struct {
	Fingerprint      string          `json:"fingerprint"`
	OriginalFilename string          `json:"original_filename"`
	FirstSeen        time.Time       `json:"first_seen"`
	Locations        []LocationEntry `json:"locations"`
	Count            int             `json:"count"`
}

// Match is one similarity search result.
type Match struct {
	ID         string
	Similarity float64
	Record     *Record
}

// Registry is the store surface the duplicate finder depends on. Both the
// JSON document store and the SQLite store satisfy it.
type Registry interface {
	FindSimilar(fp *fingerprint.Fingerprint, threshold float64) ([]Match, error)
	RecordObservation(fp *fingerprint.Fingerprint, filename, path string, size int64) (string, bool)
	Clear() bool
	Len() int
}

// Store is the JSON document backend. A single goroutine owns an instance at
// a time; every mutating operation writes through to disk.
type Store struct {
	path    string
	records map[string]*Record
	now     func() time.Time
}

// New creates a store bound to the given file path. Call Load before use.
func New(path string) *Store {
	return &Store{
		path:    path,
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Load reads the durable state. A missing file yields an empty store. An
// unparsable file is moved aside under BackupSuffix and the store starts
// empty; availability wins over recovery, so neither case reaches the
// caller as an error. A failed rename is logged and swallowed.
func (s *Store) Load() {
	s.records = make(map[string]*Record)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.LogWarning("cannot read fingerprint database %s: %v", s.path, err)
		}
		return
	}

	var records map[string]*Record
	if err := json.Unmarshal(raw, &records); err != nil {
		logging.LogError("fingerprint database %s is corrupt: %v", s.path, err)
		s.moveCorruptAside()
		return
	}
	// A JSON "null" document or a null record value unmarshals cleanly but
	// leaves nothing usable behind; treat both as corruption.
	if records == nil {
		logging.LogError("fingerprint database %s holds no record map", s.path)
		s.moveCorruptAside()
		return
	}
	for id, record := range records {
		if record == nil {
			logging.LogError("fingerprint database %s holds a null record %s", s.path, id)
			s.moveCorruptAside()
			return
		}
	}

	s.records = records
	logging.DebugLog("loaded %d fingerprint records from %s", len(records), s.path)
}

func (s *Store) moveCorruptAside() {
	backupPath := s.path + BackupSuffix
	if err := os.Rename(s.path, backupPath); err != nil {
		logging.LogWarning("cannot move corrupt database aside: %v", err)
	} else {
		logging.LogInfo("corrupt database moved to %s", backupPath)
	}
}

// FindSimilar scans every record and returns those scoring at or above the
// threshold, ordered by descending similarity, then earliest first-seen,
// then ID. The scan is linear; store sizes are modest and no index is kept.
func (s *Store) FindSimilar(fp *fingerprint.Fingerprint, threshold float64) ([]Match, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: %g", ErrThresholdOutOfRange, threshold)
	}

	matches := []Match{}
	for id, record := range s.records {
		stored, err := fingerprint.Parse(record.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("record %s holds an incompatible fingerprint: %w", id, err)
		}
		similarity, err := fingerprint.Score(fp, stored)
		if err != nil {
			return nil, err
		}
		if similarity >= threshold {
			matches = append(matches, Match{ID: id, Similarity: similarity, Record: record})
		}
	}

	sortMatches(matches)
	return matches, nil
}

// RecordObservation registers one sighting of a fingerprint. A new ID gets a
// fresh record with count 1; an existing ID gets a location appended and its
// count incremented. The state is persisted immediately afterward; the
// returned flag reports whether that write succeeded. The in-memory record
// is kept either way.
func (s *Store) RecordObservation(fp *fingerprint.Fingerprint, filename, path string, size int64) (string, bool) {
	id := fp.RecordID()
	now := s.now()

	record, ok := s.records[id]
	if !ok {
		record = &Record{
			Fingerprint:      fp.String(),
			OriginalFilename: filename,
			FirstSeen:        now,
		}
		s.records[id] = record
	}

	record.Locations = append(record.Locations, LocationEntry{
		Path:      path,
		Filename:  filename,
		Timestamp: now,
		Size:      size,
	})
	record.Count++

	return id, s.Persist()
}

// Clear discards every record and persists the empty state.
func (s *Store) Clear() bool {
	s.records = make(map[string]*Record)
	return s.Persist()
}

// Persist serializes the full record map to disk. The content is written to
// a temporary file in the same directory and moved into place, so the
// previously persisted version survives any failure. Failures are reported,
// not raised.
func (s *Store) Persist() bool {
	raw, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		logging.LogError("cannot serialize fingerprint database: %v", err)
		return false
	}

	if err := ensureDir(s.path); err != nil {
		logging.LogError("cannot create database directory for %s: %v", s.path, err)
		return false
	}

	tempPath := s.path + tempSuffix
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		logging.LogError("cannot write fingerprint database %s: %v", tempPath, err)
		return false
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		logging.LogError("cannot replace fingerprint database %s: %v", s.path, err)
		os.Remove(tempPath)
		return false
	}

	logging.DebugLog("persisted %d fingerprint records to %s", len(s.records), s.path)
	return true
}

// Len reports the number of records.
func (s *Store) Len() int { return len(s.records) }

// Get returns the record for an ID.
func (s *Store) Get(id string) (*Record, bool) {
	record, ok := s.records[id]
	return record, ok
}

// IDs returns all record IDs sorted lexicographically.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Path returns the durable file path backing this store.
func (s *Store) Path() string { return s.path }

// sortMatches orders matches by descending similarity, ties broken by
// earliest first-seen timestamp, then by ID for full determinism.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if !matches[i].Record.FirstSeen.Equal(matches[j].Record.FirstSeen) {
			return matches[i].Record.FirstSeen.Before(matches[j].Record.FirstSeen)
		}
		return matches[i].ID < matches[j].ID
	})
}

// ensureDir creates the directory holding path if it does not exist yet.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
