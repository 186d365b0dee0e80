package fingerprint

import (
	"encoding/hex"
	"fmt"
	"math/bits"
)

// Score compares two fingerprints and returns a similarity in [0,100]. Each
// aligned component pair contributes (1 - hamming/bits) * 100 and the
// per-component percentages are averaged unweighted; the three algorithms
// capture complementary structure and no labeled data justifies weighting
// one over another. Symmetric and reflexive. Fails with *ShapeMismatchError
// when the fingerprints have differing shapes.
func Score(a, b *Fingerprint) (float64, error) {
	ca, cb := a.Components(), b.Components()
	if len(ca) != len(cb) {
		return 0, &ShapeMismatchError{
			ExpectedComponents: len(ca),
			ActualComponents:   len(cb),
			ExpectedLength:     componentHexLen,
			ActualLength:       componentHexLen,
		}
	}

	var total float64
	for i := range ca {
		if len(ca[i]) != len(cb[i]) {
			return 0, &ShapeMismatchError{
				ExpectedComponents: len(ca),
				ActualComponents:   len(cb),
				ExpectedLength:     len(ca[i]),
				ActualLength:       len(cb[i]),
			}
		}
		distance, err := hammingDistance(ca[i], cb[i])
		if err != nil {
			return 0, err
		}
		bitLen := len(ca[i]) * 4
		total += (1 - float64(distance)/float64(bitLen)) * 100
	}

	return total / float64(len(ca)), nil
}

// hammingDistance counts differing bits between two equal-length hex strings.
func hammingDistance(a, b string) (int, error) {
	rawA, err := hex.DecodeString(a)
	if err != nil {
		return 0, fmt.Errorf("invalid hash component %q: %w", a, err)
	}
	rawB, err := hex.DecodeString(b)
	if err != nil {
		return 0, fmt.Errorf("invalid hash component %q: %w", b, err)
	}

	distance := 0
	for i := range rawA {
		distance += bits.OnesCount8(rawA[i] ^ rawB[i])
	}
	return distance, nil
}
