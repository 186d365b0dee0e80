package fingerprint

import "fmt"

// UnsupportedBufferError indicates a pixel buffer that cannot be normalized
// to an 8-bit-per-channel representation.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type UnsupportedBufferError struct {
	Reason string
	cause  error
}

func (e *UnsupportedBufferError) Error() string {
	return fmt.Sprintf("unsupported pixel buffer: %s", e.Reason)
}

func (e *UnsupportedBufferError) Unwrap() error { return e.cause }

// ShapeMismatchError indicates an attempt to compare fingerprints with
// differing component counts or component lengths. One store holds one fixed
// fingerprint shape, so this signals a programming or versioning bug.
type ShapeMismatchError struct {
	ExpectedComponents int
	ActualComponents   int
	ExpectedLength     int
	ActualLength       int
}

func (e *ShapeMismatchError) Error() string {
	if e.ExpectedComponents != e.ActualComponents {
		return fmt.Sprintf("fingerprint shape mismatch: %d components vs %d", e.ExpectedComponents, e.ActualComponents)
	}
	return fmt.Sprintf("fingerprint shape mismatch: component length %d vs %d", e.ExpectedLength, e.ActualLength)
}
