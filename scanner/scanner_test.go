package scanner

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"imagedupe/dedup"
	"imagedupe/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, png.Encode(file, img))
}

func gradientImage(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / size)})
		}
	}
	return img
}

func checkerboardImage(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/8+y/8)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestScanFolder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "gradient.png"), gradientImage(64))
	writePNG(t, filepath.Join(dir, "gradient-copy.png"), gradientImage(64))
	writePNG(t, filepath.Join(dir, "checkerboard.png"), checkerboardImage(64))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644))

	s := store.New(filepath.Join(t.TempDir(), "fingerprints.json"))
	s.Load()
	cache := dedup.NewSessionCache(0)
	finder := dedup.NewFinder(s, dedup.WithCache(cache))

	summary, err := ScanFolder(finder, ScanOptions{FolderPath: dir, MaxWorkers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Errors)
	// The two identical gradients collapse into one record
	assert.GreaterOrEqual(t, summary.Duplicates, 1)
	assert.Equal(t, 3, summary.Duplicates+summary.NewRecords)
	assert.LessOrEqual(t, s.Len(), 2)
	// The workers hash through the session cache, so the two distinct
	// contents leave exactly two cached fingerprints behind.
	assert.Equal(t, 2, cache.Len())
	assert.Greater(t, summary.Elapsed, time.Duration(0))
}

func TestScanFolderCountsUndecodableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644))

	s := store.New(filepath.Join(t.TempDir(), "fingerprints.json"))
	s.Load()
	finder := dedup.NewFinder(s)

	summary, err := ScanFolder(finder, ScanOptions{FolderPath: dir, MaxWorkers: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalFiles)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 0, s.Len())
}
