package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imagedupe/fingerprint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hexZeros = "0000000000000000"
	hexOnes  = "ffffffffffffffff"
	hexMixed = "0123456789abcdef"
)

func mustFingerprint(t *testing.T, components ...string) *fingerprint.Fingerprint {
	t.Helper()
	fp, err := fingerprint.Parse(strings.Join(components, "_"))
	require.NoError(t, err)
	return fp
}

// testStore returns a store in a temp directory with a deterministic clock
// that advances one second per observation.
func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "fingerprints.json"))
	tick := 0
	s.now = func() time.Time {
		tick++
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}
	s.Load()
	return s
}

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.json"))
	s.Load()
	assert.Equal(t, 0, s.Len())
}

func TestRecordObservation(t *testing.T) {
	s := testStore(t)
	fp := mustFingerprint(t, hexZeros, hexOnes, hexMixed)

	id, persisted := s.RecordObservation(fp, "cat.jpg", "/photos/cat.jpg", 1234)
	assert.True(t, persisted)
	assert.Equal(t, fp.RecordID(), id)

	record, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, fp.String(), record.Fingerprint)
	assert.Equal(t, "cat.jpg", record.OriginalFilename)
	assert.Equal(t, 1, record.Count)
	require.Len(t, record.Locations, 1)
	assert.Equal(t, "/photos/cat.jpg", record.Locations[0].Path)
	assert.Equal(t, int64(1234), record.Locations[0].Size)

	// A second observation appends, it never rewrites
	id2, persisted := s.RecordObservation(fp, "cat-copy.jpg", "/backup/cat-copy.jpg", 1234)
	assert.True(t, persisted)
	assert.Equal(t, id, id2)

	record, _ = s.Get(id)
	assert.Equal(t, "cat.jpg", record.OriginalFilename)
	assert.Equal(t, 2, record.Count)
	require.Len(t, record.Locations, 2)
	assert.Equal(t, "/backup/cat-copy.jpg", record.Locations[1].Path)
	assert.True(t, record.Locations[0].Timestamp.Before(record.Locations[1].Timestamp))
}

func TestPersistLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	s.RecordObservation(mustFingerprint(t, hexZeros, hexOnes, hexMixed), "a.png", "/a.png", 10)
	s.RecordObservation(mustFingerprint(t, hexOnes, hexZeros, hexMixed), "b.png", "/b.png", 20)
	s.RecordObservation(mustFingerprint(t, hexZeros, hexOnes, hexMixed), "a.png", "/copy/a.png", 10)

	reloaded := New(s.Path())
	reloaded.Load()

	require.Equal(t, s.Len(), reloaded.Len())
	for _, id := range s.IDs() {
		original, _ := s.Get(id)
		loaded, ok := reloaded.Get(id)
		require.True(t, ok, "record %s lost in round trip", id)
		assert.Equal(t, original, loaded)
	}
}

func TestLoadCorruptFileRecoversWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fingerprints.json")
	garbage := []byte("{this is not json")
	require.NoError(t, os.WriteFile(path, garbage, 0644))

	s := New(path)
	s.Load()

	assert.Equal(t, 0, s.Len())

	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, garbage, backup)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadNullDocumentRecoversWithBackup(t *testing.T) {
	// "null" and a null record value both unmarshal without error; the store
	// must still take the corruption path instead of running on nil state.
	for name, content := range map[string]string{
		"null document": `null`,
		"null record":   `{"0011223344556677": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fingerprints.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			s := New(path)
			s.Load()

			assert.Equal(t, 0, s.Len())
			assert.FileExists(t, path+BackupSuffix)

			// The store must stay writable and queryable after recovery.
			fp := mustFingerprint(t, hexZeros, hexOnes, hexMixed)
			_, persisted := s.RecordObservation(fp, "a.png", "/a.png", 1)
			assert.True(t, persisted)

			matches, err := s.FindSimilar(fp, 90)
			require.NoError(t, err)
			assert.Len(t, matches, 1)
		})
	}
}

func TestFindSimilarOrderingAndThresholds(t *testing.T) {
	s := testStore(t)

	exact := mustFingerprint(t, hexZeros, hexZeros, hexZeros)
	near := mustFingerprint(t, "8000000000000000", hexZeros, hexZeros)
	far := mustFingerprint(t, hexOnes, hexOnes, hexOnes)

	s.RecordObservation(exact, "exact.png", "/exact.png", 1)
	s.RecordObservation(near, "near.png", "/near.png", 2)
	s.RecordObservation(far, "far.png", "/far.png", 3)

	query := mustFingerprint(t, hexZeros, hexZeros, hexZeros)

	t.Run("descending similarity", func(t *testing.T) {
		matches, err := s.FindSimilar(query, 90)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, exact.RecordID(), matches[0].ID)
		assert.Equal(t, 100.0, matches[0].Similarity)
		assert.Equal(t, near.RecordID(), matches[1].ID)
		assert.Less(t, matches[1].Similarity, 100.0)
	})

	t.Run("threshold 100 means bit-identical", func(t *testing.T) {
		matches, err := s.FindSimilar(query, 100)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, exact.RecordID(), matches[0].ID)
	})

	t.Run("threshold 0 returns everything", func(t *testing.T) {
		matches, err := s.FindSimilar(query, 0)
		require.NoError(t, err)
		assert.Len(t, matches, 3)
	})

	t.Run("out of range thresholds rejected", func(t *testing.T) {
		_, err := s.FindSimilar(query, -1)
		assert.ErrorIs(t, err, ErrThresholdOutOfRange)
		_, err = s.FindSimilar(query, 100.5)
		assert.ErrorIs(t, err, ErrThresholdOutOfRange)
	})

	t.Run("repeated query returns identical order", func(t *testing.T) {
		first, err := s.FindSimilar(query, 0)
		require.NoError(t, err)
		second, err := s.FindSimilar(query, 0)
		require.NoError(t, err)
		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})
}

func TestFindSimilarTiesBrokenByFirstSeen(t *testing.T) {
	s := testStore(t)

	// Both records sit at the same distance from the query; the earlier
	// first-seen record must come first.
	earlier := mustFingerprint(t, "8000000000000000", hexZeros, hexZeros)
	later := mustFingerprint(t, hexZeros, "8000000000000000", hexZeros)
	s.RecordObservation(earlier, "earlier.png", "/earlier.png", 1)
	s.RecordObservation(later, "later.png", "/later.png", 2)

	query := mustFingerprint(t, hexZeros, hexZeros, hexZeros)
	matches, err := s.FindSimilar(query, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0].Similarity, matches[1].Similarity)
	assert.Equal(t, earlier.RecordID(), matches[0].ID)
	assert.Equal(t, later.RecordID(), matches[1].ID)
}

func TestFindSimilarEmptyStore(t *testing.T) {
	s := testStore(t)
	matches, err := s.FindSimilar(mustFingerprint(t, hexZeros, hexOnes, hexMixed), 50)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestClear(t *testing.T) {
	s := testStore(t)
	s.RecordObservation(mustFingerprint(t, hexZeros, hexOnes, hexMixed), "a.png", "/a.png", 1)
	require.Equal(t, 1, s.Len())

	assert.True(t, s.Clear())
	assert.Equal(t, 0, s.Len())

	// The cleared state is durable
	reloaded := New(s.Path())
	reloaded.Load()
	assert.Equal(t, 0, reloaded.Len())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// The database path nests under a regular file, so persisting must fail.
	s := New(filepath.Join(blocker, "nested", "fingerprints.json"))
	s.Load()

	fp := mustFingerprint(t, hexZeros, hexOnes, hexMixed)
	id, persisted := s.RecordObservation(fp, "a.png", "/a.png", 1)

	assert.False(t, persisted)
	_, ok := s.Get(id)
	assert.True(t, ok, "in-memory record must survive a persist failure")
}
