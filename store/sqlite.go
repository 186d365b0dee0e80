package store

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"imagedupe/fingerprint"
	"imagedupe/logging"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is an alternative registry backend for larger collections.
// Mutations are transactional, so every observation is durable the moment
// RecordObservation returns; similarity search stays a linear scan in Go.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) a SQLite-backed registry. An existing file
// that cannot be opened or migrated is moved aside under BackupSuffix and a
// fresh database is created, mirroring the document store's recovery
// behavior.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := initSQLite(path)
	if err != nil {
		logging.LogError("fingerprint database %s is unusable: %v", path, err)
		if db != nil {
			db.Close()
		}

		backupPath := path + BackupSuffix
		if renameErr := os.Rename(path, backupPath); renameErr != nil {
			logging.LogWarning("cannot move unusable database aside: %v", renameErr)
			return nil, fmt.Errorf("opening fingerprint database %s: %w", path, err)
		}
		logging.LogInfo("unusable database moved to %s", backupPath)

		db, err = initSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("recreating fingerprint database %s: %w", path, err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func initSQLite(path string) (*sql.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		count INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS locations (
		record_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		path TEXT NOT NULL,
		filename TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		size INTEGER NOT NULL,
		PRIMARY KEY (record_id, seq)
	);`

	if _, err := db.Exec(schema); err != nil {
		return db, err
	}

	return db, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// FindSimilar loads every record and scores it against the query, with the
// same ordering contract as the document store.
func (s *SQLiteStore) FindSimilar(fp *fingerprint.Fingerprint, threshold float64) ([]Match, error) {
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: %g", ErrThresholdOutOfRange, threshold)
	}

	records, err := s.loadRecords()
	if err != nil {
		return nil, err
	}

	matches := []Match{}
	for id, record := range records {
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

// RecordObservation registers one sighting inside a single transaction.
func (s *SQLiteStore) RecordObservation(fp *fingerprint.Fingerprint, filename, path string, size int64) (string, bool) {
	id := fp.RecordID()
	now := time.Now().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		logging.LogError("cannot begin transaction: %v", err)
		return id, false
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow("SELECT count FROM records WHERE id = ?", id).Scan(&count)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(
			"INSERT INTO records (id, fingerprint, original_filename, first_seen, count) VALUES (?, ?, ?, ?, 1)",
			id, fp.String(), filename, now,
		)
		count = 1
	case err == nil:
		_, err = tx.Exec("UPDATE records SET count = count + 1 WHERE id = ?", id)
		count++
	}
	if err != nil {
		logging.LogError("cannot upsert record %s: %v", id, err)
		return id, false
	}

	_, err = tx.Exec(
		"INSERT INTO locations (record_id, seq, path, filename, timestamp, size) VALUES (?, ?, ?, ?, ?, ?)",
		id, count, path, filename, now, size,
	)
	if err != nil {
		logging.LogError("cannot insert location for %s: %v", id, err)
		return id, false
	}

	if err := tx.Commit(); err != nil {
		logging.LogError("cannot commit observation for %s: %v", id, err)
		return id, false
	}
	return id, true
}

// Clear discards all records and location history.
func (s *SQLiteStore) Clear() bool {
	tx, err := s.db.Begin()
	if err != nil {
		logging.LogError("cannot begin transaction: %v", err)
		return false
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM locations"); err != nil {
		logging.LogError("cannot clear locations: %v", err)
		return false
	}
	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		logging.LogError("cannot clear records: %v", err)
		return false
	}

	if err := tx.Commit(); err != nil {
		logging.LogError("cannot commit clear: %v", err)
		return false
	}
	return true
}

// Len reports the number of records.
func (s *SQLiteStore) Len() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		logging.LogError("cannot count records: %v", err)
		return 0
	}
	return count
}

// IDs returns all record IDs sorted lexicographically.
func (s *SQLiteStore) IDs() []string {
	rows, err := s.db.Query("SELECT id FROM records ORDER BY id")
	if err != nil {
		logging.LogError("cannot list records: %v", err)
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logging.LogError("cannot scan record id: %v", err)
			return ids
		}
		ids = append(ids, id)
	}
	return ids
}

// Get returns the record for an ID, including its location history.
func (s *SQLiteStore) Get(id string) (*Record, bool) {
	records, err := s.loadRecords()
	if err != nil {
		logging.LogError("cannot load records: %v", err)
		return nil, false
	}
	record, ok := records[id]
	return record, ok
}

func (s *SQLiteStore) loadRecords() (map[string]*Record, error) {
	rows, err := s.db.Query("SELECT id, fingerprint, original_filename, first_seen, count FROM records")
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*Record)
	for rows.Next() {
		var id, firstSeen string
		record := &Record{}
		if err := rows.Scan(&id, &record.Fingerprint, &record.OriginalFilename, &firstSeen, &record.Count); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		record.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen)
		if err != nil {
			return nil, fmt.Errorf("record %s has a malformed first_seen: %w", id, err)
		}
		records[id] = record
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	locRows, err := s.db.Query("SELECT record_id, path, filename, timestamp, size FROM locations ORDER BY record_id, seq")
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer locRows.Close()

	for locRows.Next() {
		var recordID, timestamp string
		entry := LocationEntry{}
		if err := locRows.Scan(&recordID, &entry.Path, &entry.Filename, &timestamp, &entry.Size); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		entry.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("location for %s has a malformed timestamp: %w", recordID, err)
		}
		if record, ok := records[recordID]; ok {
			record.Locations = append(record.Locations, entry)
		}
	}
	return records, locRows.Err()
}
