package fingerprint

import (
	"testing"

	"imagedupe/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientBuffer builds a grayscale test image with horizontal and vertical
// structure so all three hash components get non-degenerate input.
func gradientBuffer(width, height int) types.PixelBuffer {
	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[y*width+x] = byte((x*255/width + y*128/height) % 256)
		}
	}
	return types.PixelBuffer{Width: width, Height: height, Channels: 1, BitDepth: 8, Pix: pix}
}

func TestGenerateShape(t *testing.T) {
	fp, err := Generate(gradientBuffer(64, 48))
	require.NoError(t, err)

	components := fp.Components()
	require.Len(t, components, ComponentCount)
	for _, c := range components {
		assert.Len(t, c, ComponentBits/4)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	buf := gradientBuffer(64, 48)

	first, err := Generate(buf)
	require.NoError(t, err)
	second, err := Generate(buf)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.RecordID(), second.RecordID())
}

func TestGenerateFloatRenditionMatches(t *testing.T) {
	buf := gradientBuffer(32, 32)

	floats := make([]float64, len(buf.Pix))
	for i, v := range buf.Pix {
		floats[i] = float64(v) / 255.0
	}
	floatBuf := types.FromFloat64(buf.Width, buf.Height, buf.Channels, floats)

	fromInts, err := Generate(buf)
	require.NoError(t, err)
	fromFloats, err := Generate(floatBuf)
	require.NoError(t, err)

	assert.True(t, fromInts.Equal(fromFloats))
}

func TestGenerateRejectsUnusableBuffers(t *testing.T) {
	var bufErr *UnsupportedBufferError

	_, err := Generate(types.PixelBuffer{})
	assert.ErrorAs(t, err, &bufErr)

	_, err = Generate(types.PixelBuffer{Width: 4, Height: 4, Channels: 1, BitDepth: 8, Pix: []byte{1, 2, 3}})
	assert.ErrorAs(t, err, &bufErr)

	_, err = Generate(types.PixelBuffer{Width: 1, Height: 1, Channels: 2, BitDepth: 8, Pix: []byte{1, 2}})
	assert.ErrorAs(t, err, &bufErr)
}

func TestGenerateChannelVariants(t *testing.T) {
	gray := gradientBuffer(32, 32)

	rgb := make([]byte, 0, len(gray.Pix)*3)
	for _, v := range gray.Pix {
		rgb = append(rgb, v, v, v)
	}
	rgbBuf := types.PixelBuffer{Width: 32, Height: 32, Channels: 3, BitDepth: 8, Pix: rgb}

	fromGray, err := Generate(gray)
	require.NoError(t, err)
	fromRGB, err := Generate(rgbBuf)
	require.NoError(t, err)

	// A neutral gray RGB image carries the same intensity structure,
	// so the fingerprints should diverge in at most a handful of bits.
	score, err := Score(fromGray, fromRGB)
	require.NoError(t, err)
	assert.Greater(t, score, 95.0)
}
