package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile(".jpg"))
	assert.True(t, IsImageFile(".PNG"))
	assert.True(t, IsImageFile(".webp"))
	assert.False(t, IsImageFile(".txt"))
	assert.False(t, IsImageFile(""))
}

func TestDecode(t *testing.T) {
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, testImage(10, 8)))

	buf, err := Decode(&encoded)
	require.NoError(t, err)

	assert.Equal(t, 10, buf.Width)
	assert.Equal(t, 8, buf.Height)
	assert.Equal(t, 3, buf.Channels)
	assert.Equal(t, 8, buf.BitDepth)
	assert.Len(t, buf.Pix, 10*8*3)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	original := FromImage(testImage(16, 12))

	require.NoError(t, EncodeFile(original, path, 0))

	decoded, src, err := DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, "out.png", src.Filename)
	assert.Greater(t, src.Size, int64(0))
	// PNG is lossless, so the pixel content survives exactly
	assert.Equal(t, original.Pix, decoded.Pix)
}

func TestEncodeFileJPEGQuality(t *testing.T) {
	dir := t.TempDir()
	buf := FromImage(testImage(64, 64))

	low := filepath.Join(dir, "low.jpg")
	high := filepath.Join(dir, "high.jpg")
	require.NoError(t, EncodeFile(buf, low, 10))
	require.NoError(t, EncodeFile(buf, high, 95))

	_, lowSrc, err := DecodeFile(low)
	require.NoError(t, err)
	_, highSrc, err := DecodeFile(high)
	require.NoError(t, err)
	assert.Less(t, lowSrc.Size, highSrc.Size)
}

func TestDecodeFileRejectsUnsupportedExtension(t *testing.T) {
	_, _, err := DecodeFile(filepath.Join(t.TempDir(), "notes.txt"))
	assert.Error(t, err)
}

func TestEncodeFileRejectsWebP(t *testing.T) {
	err := EncodeFile(FromImage(testImage(4, 4)), filepath.Join(t.TempDir(), "out.webp"), 0)
	assert.Error(t, err)
}
