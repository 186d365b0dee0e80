package types

import "fmt"

// PixelBuffer holds a decoded image as interleaved samples. Channel order is
// RGB for 3-channel buffers and RGBA for 4-channel buffers. BitDepth is the
// per-channel sample width in bits; 16-bit samples are stored big-endian, two
// bytes per sample, matching the standard library image packages.
type PixelBuffer struct {
	Width    int
	Height   int
	Channels int
	BitDepth int
	Pix      []byte
}

// SourceInfo describes where an ingested image came from.
type SourceInfo struct {
	Path     string
	Filename string
	Size     int64
}

// FromFloat64 builds an 8-bit PixelBuffer from samples in the 0-1 range.
// Values are rescaled to 0-255 and clamped, so a float rendition of an image
// produces the same buffer content as its integer rendition.
func FromFloat64(width, height, channels int, samples []float64) PixelBuffer {
	pix := make([]byte, len(samples))
	for i, v := range samples {
		scaled := v * 255.0
		if scaled < 0 {
			scaled = 0
		} else if scaled > 255 {
			scaled = 255
		}
		pix[i] = byte(scaled + 0.5)
	}
	return PixelBuffer{Width: width, Height: height, Channels: channels, BitDepth: 8, Pix: pix}
}

// Normalize8 returns the buffer's samples reduced to one byte per sample.
// 16-bit samples keep their high byte. An error is returned when the buffer
// is empty, when the sample count does not match the declared dimensions, or
// when the bit depth is not 8 or 16.
func (b PixelBuffer) Normalize8() ([]byte, error) {
	if b.Width <= 0 || b.Height <= 0 || b.Channels <= 0 || len(b.Pix) == 0 {
		return nil, fmt.Errorf("empty buffer (%dx%d, %d channels)", b.Width, b.Height, b.Channels)
	}
	samples := b.Width * b.Height * b.Channels
	switch b.BitDepth {
	case 8:
		if len(b.Pix) != samples {
			return nil, fmt.Errorf("non-rectangular buffer: %d bytes for %dx%dx%d", len(b.Pix), b.Width, b.Height, b.Channels)
		}
		out := make([]byte, samples)
		copy(out, b.Pix)
		return out, nil
	case 16:
		if len(b.Pix) != samples*2 {
			return nil, fmt.Errorf("non-rectangular buffer: %d bytes for %dx%dx%d at 16 bits", len(b.Pix), b.Width, b.Height, b.Channels)
		}
		out := make([]byte, samples)
		for i := 0; i < samples; i++ {
			out[i] = b.Pix[i*2]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", b.BitDepth)
	}
}
