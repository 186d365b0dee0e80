// Package fingerprint derives composite perceptual fingerprints from decoded
// images and scores their similarity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// ComponentCount is the number of hash components in a fingerprint:
	// average-intensity, frequency (DCT) and gradient structure, in that order.
	ComponentCount = 3

	// ComponentBits is the bit length of each hash component.
	ComponentBits = 64

	// componentHexLen is the rendered length of one component.
	componentHexLen = ComponentBits / 4

	separator = "_"

	// RecordIDLength is the truncated length of a record ID.
	RecordIDLength = 16
)

// Fingerprint is an immutable composite image descriptor: an ordered set of
// fixed-length hash components rendered as hex text.
type Fingerprint struct {
	components [ComponentCount]string
}

// New builds a fingerprint from the three component hashes in their fixed
// order (average, dct, gradient). Each must be 16 lowercase hex characters.
func New(average, dct, gradient string) (*Fingerprint, error) {
	fp := &Fingerprint{components: [ComponentCount]string{average, dct, gradient}}
	for _, c := range fp.components {
		if len(c) != componentHexLen {
			return nil, &ShapeMismatchError{
				ExpectedComponents: ComponentCount,
				ActualComponents:   ComponentCount,
				ExpectedLength:     componentHexLen,
				ActualLength:       len(c),
			}
		}
		if _, err := hex.DecodeString(c); err != nil {
			return nil, fmt.Errorf("invalid hash component %q: %w", c, err)
		}
	}
	return fp, nil
}

// Parse reads a fingerprint back from its textual form.
func Parse(s string) (*Fingerprint, error) {
	parts := strings.Split(s, separator)
	if len(parts) != ComponentCount {
		return nil, &ShapeMismatchError{
			ExpectedComponents: ComponentCount,
			ActualComponents:   len(parts),
			ExpectedLength:     componentHexLen,
			ActualLength:       componentHexLen,
		}
	}
	return New(parts[0], parts[1], parts[2])
}

// String renders the composite as its serialized form, components joined in
// their fixed order.
func (f *Fingerprint) String() string {
	return strings.Join(f.components[:], separator)
}

// Components returns the hash components in order.
func (f *Fingerprint) Components() []string {
	out := make([]string, ComponentCount)
	copy(out, f.components[:])
	return out
}

// Equal reports whether two fingerprints are component-wise identical.
func (f *Fingerprint) Equal(other *Fingerprint) bool {
	return f.components == other.components
}

// RecordID derives the stable store key for this fingerprint: a SHA-256
// digest of the textual form, hex encoded and truncated.
func (f *Fingerprint) RecordID() string {
	sum := sha256.Sum256([]byte(f.String()))
	return hex.EncodeToString(sum[:])[:RecordIDLength]
}
