package fingerprint

import (
	"encoding/hex"
	"fmt"
	"image"
	"sort"

	"imagedupe/types"

	"gocv.io/x/gocv"
)

// Generate computes the composite fingerprint of a decoded image. The buffer
// is first normalized to 8 bits per channel so that different numeric
// renditions of the same content hash identically. Fails with
// *UnsupportedBufferError when the buffer cannot be normalized.
func Generate(buf types.PixelBuffer) (*Fingerprint, error) {
	pix, err := buf.Normalize8()
	if err != nil {
		return nil, &UnsupportedBufferError{Reason: err.Error(), cause: err}
	}

	var matType gocv.MatType
	switch buf.Channels {
	case 1:
		matType = gocv.MatTypeCV8UC1
	case 3:
		matType = gocv.MatTypeCV8UC3
	case 4:
		matType = gocv.MatTypeCV8UC4
	default:
		return nil, &UnsupportedBufferError{Reason: fmt.Sprintf("%d channels", buf.Channels)}
	}

	mat, err := gocv.NewMatFromBytes(buf.Height, buf.Width, matType, pix)
	if err != nil {
		return nil, &UnsupportedBufferError{Reason: "cannot wrap buffer", cause: err}
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()

	switch buf.Channels {
	case 1:
		mat.CopyTo(&gray)
	case 3:
		gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)
	case 4:
		gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray)
	}

	average, err := averageHash(gray)
	if err != nil {
		return nil, err
	}
	dct, err := dctHash(gray)
	if err != nil {
		return nil, err
	}
	gradient, err := gradientHash(gray)
	if err != nil {
		return nil, err
	}

	return New(average, dct, gradient)
}

// averageHash captures coarse intensity structure: resize to 8x8 and set one
// bit per pixel at or above the mean.
func averageHash(gray gocv.Mat) (string, error) {
	if gray.Empty() {
		return "", fmt.Errorf("cannot compute hash for empty image")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: 8, Y: 8}, 0, 0, gocv.InterpolationLinear)

	var sum uint64
	for y := 0; y < resized.Rows(); y++ {
		for x := 0; x < resized.Cols(); x++ {
			sum += uint64(resized.GetUCharAt(y, x))
		}
	}
	mean := float64(sum) / float64(resized.Rows()*resized.Cols())

	bits := make([]bool, 0, ComponentBits)
	for y := 0; y < resized.Rows(); y++ {
		for x := 0; x < resized.Cols(); x++ {
			bits = append(bits, float64(resized.GetUCharAt(y, x)) >= mean)
		}
	}

	return packBits(bits), nil
}

// dctHash captures frequency structure: resize to 32x32, take the 8x8 low
// frequency block of the DCT and set one bit per coefficient at or above the
// median.
func dctHash(gray gocv.Mat) (string, error) {
	if gray.Empty() {
		return "", fmt.Errorf("cannot compute hash for empty image")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: 32, Y: 32}, 0, 0, gocv.InterpolationLinear)

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	resized.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)

	lowFreq := dct.Region(image.Rect(0, 0, 8, 8))
	defer lowFreq.Close()

	values := make([]float32, 0, ComponentBits)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			values = append(values, lowFreq.GetFloatAt(y, x))
		}
	}
	median := calculateMedian(values)

	bits := make([]bool, 0, ComponentBits)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			bits = append(bits, lowFreq.GetFloatAt(y, x) >= median)
		}
	}

	return packBits(bits), nil
}

// gradientHash captures gradient structure: resize to 9x8 and set one bit
// per horizontally adjacent pixel pair that brightens left to right.
func gradientHash(gray gocv.Mat) (string, error) {
	if gray.Empty() {
		return "", fmt.Errorf("cannot compute hash for empty image")
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: 9, Y: 8}, 0, 0, gocv.InterpolationLinear)

	bits := make([]bool, 0, ComponentBits)
	for y := 0; y < resized.Rows(); y++ {
		for x := 0; x < resized.Cols()-1; x++ {
			bits = append(bits, resized.GetUCharAt(y, x) < resized.GetUCharAt(y, x+1))
		}
	}

	return packBits(bits), nil
}

// packBits renders a bit sequence as lowercase hex, most significant bit
// first, zero padded on the right to a whole byte.
func packBits(bits []bool) string {
	hashBytes := make([]byte, 0, (len(bits)+7)/8)
	var current byte
	var count uint

	for _, bit := range bits {
		current <<= 1
		if bit {
			current |= 1
		}
		count++
		if count == 8 {
			hashBytes = append(hashBytes, current)
			current = 0
			count = 0
		}
	}
	if count > 0 {
		current <<= 8 - count
		hashBytes = append(hashBytes, current)
	}

	return hex.EncodeToString(hashBytes)
}

// calculateMedian returns the median of a float32 slice without modifying it.
func calculateMedian(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	length := len(sorted)
	if length%2 == 0 {
		return (sorted[length/2-1] + sorted[length/2]) / 2
	}
	return sorted[length/2]
}
