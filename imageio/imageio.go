// Package imageio decodes image files into pixel buffers and encodes
// buffers back to files. It covers the standard formats only; the
// fingerprinting core never touches files itself.
package imageio

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imagedupe/types"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality is used when no quality is given for JPEG output.
const DefaultJPEGQuality = 95

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether the extension belongs to a decodable format.
func IsImageFile(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// SupportedExtensions returns the decodable file extensions.
func SupportedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}
}

// DecodeFile decodes an image file into a pixel buffer plus its source
// metadata.
func DecodeFile(path string) (types.PixelBuffer, types.SourceInfo, error) {
	src := types.SourceInfo{Path: path, Filename: filepath.Base(path)}

	ext := filepath.Ext(path)
	if !IsImageFile(ext) {
		return types.PixelBuffer{}, src, fmt.Errorf("unsupported image format: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return types.PixelBuffer{}, src, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	if info, statErr := file.Stat(); statErr == nil {
		src.Size = info.Size()
	}

	buf, err := Decode(file)
	if err != nil {
		return types.PixelBuffer{}, src, fmt.Errorf("decoding %s: %w", path, err)
	}
	return buf, src, nil
}

// Decode decodes image data into an 8-bit RGB pixel buffer.
func Decode(r io.Reader) (types.PixelBuffer, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return types.PixelBuffer{}, err
	}
	return FromImage(img), nil
}

// FromImage converts any decoded image to an 8-bit RGB pixel buffer.
func FromImage(img image.Image) types.PixelBuffer {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	pix := make([]byte, 0, width*height*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pix = append(pix, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}

	return types.PixelBuffer{Width: width, Height: height, Channels: 3, BitDepth: 8, Pix: pix}
}

// ToImage converts a pixel buffer back to an image for encoding. Only 8-bit
// buffers with 1, 3 or 4 channels are supported.
func ToImage(buf types.PixelBuffer) (image.Image, error) {
	pix, err := buf.Normalize8()
	if err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, buf.Width, buf.Height)
	switch buf.Channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, pix)
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for i := 0; i < buf.Width*buf.Height; i++ {
			img.Pix[i*4] = pix[i*3]
			img.Pix[i*4+1] = pix[i*3+1]
			img.Pix[i*4+2] = pix[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case 4:
		img := image.NewRGBA(rect)
		copy(img.Pix, pix)
		return img, nil
	default:
		return nil, fmt.Errorf("cannot encode %d-channel buffer", buf.Channels)
	}
}

// EncodeFile writes a pixel buffer to a file, choosing the format by
// extension. WebP has no encoder and is rejected.
func EncodeFile(buf types.PixelBuffer, path string, quality int) error {
	img, err := ToImage(buf)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: quality})
	case ".gif":
		err = gif.Encode(file, img, nil)
	case ".bmp":
		err = bmp.Encode(file, img)
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, nil)
	default:
		err = fmt.Errorf("no encoder for %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
