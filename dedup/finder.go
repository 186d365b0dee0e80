// Package dedup answers "has this image, or something close to it, been
// seen before?" and registers new observations.
package dedup

import (
	"imagedupe/fingerprint"
	"imagedupe/logging"
	"imagedupe/store"
	"imagedupe/types"
)

const (
	// DefaultThreshold is the similarity above which a stored image counts
	// as a near-duplicate during ingest.
	DefaultThreshold = 90

	// NearCertain is the similarity above which a match is almost certainly
	// the same image. Callers typically warn on matches above it.
	NearCertain = 95
)

// Result is the outcome of one ingest.
type Result struct {
	RecordID    string
	Fingerprint *fingerprint.Fingerprint
	Matches     []store.Match
	Persisted   bool
}

// Finder orchestrates fingerprint generation, similarity search and
// observation recording against one registry.
type Finder struct {
	reg       store.Registry
	threshold float64
	cache     *SessionCache
}

// Option configures a Finder.
type Option func(*Finder)

// WithThreshold sets the near-duplicate similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(f *Finder) { f.threshold = threshold }
}

// WithCache attaches a caller-owned session cache of computed fingerprints.
func WithCache(cache *SessionCache) Option {
	return func(f *Finder) { f.cache = cache }
}

// NewFinder creates a Finder over the given registry.
func NewFinder(reg store.Registry, opts ...Option) *Finder {
	f := &Finder{reg: reg, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Threshold returns the configured near-duplicate threshold.
func (f *Finder) Threshold() float64 { return f.threshold }

// Ingest fingerprints a decoded image, looks up near matches and records the
// observation. Matching happens before recording, so an image never shows up
// as similar to itself in its own ingest result.
func (f *Finder) Ingest(buf types.PixelBuffer, src types.SourceInfo) (*Result, error) {
	fp, err := f.Fingerprint(buf)
	if err != nil {
		return nil, err
	}
	return f.IngestFingerprint(fp, src)
}

// IngestFingerprint runs the ingest flow for an already-computed
// fingerprint.
func (f *Finder) IngestFingerprint(fp *fingerprint.Fingerprint, src types.SourceInfo) (*Result, error) {
	matches, err := f.reg.FindSimilar(fp, f.threshold)
	if err != nil {
		return nil, err
	}

	id, persisted := f.reg.RecordObservation(fp, src.Filename, src.Path, src.Size)
	if !persisted {
		logging.LogWarning("observation of %s recorded in memory only", src.Filename)
	}

	return &Result{
		RecordID:    id,
		Fingerprint: fp,
		Matches:     matches,
		Persisted:   persisted,
	}, nil
}

// Query fingerprints a decoded image and returns near matches without
// recording an observation.
func (f *Finder) Query(buf types.PixelBuffer, threshold float64) (*fingerprint.Fingerprint, []store.Match, error) {
	fp, err := f.Fingerprint(buf)
	if err != nil {
		return nil, nil, err
	}
	matches, err := f.reg.FindSimilar(fp, threshold)
	if err != nil {
		return nil, nil, err
	}
	return fp, matches, nil
}

// Fingerprint computes the fingerprint for a decoded image, returning the
// cached one when a session cache is attached and has seen the same content.
// Multiple goroutines may call it at once; only ingest and query touch the
// registry.
func (f *Finder) Fingerprint(buf types.PixelBuffer) (*fingerprint.Fingerprint, error) {
	if f.cache == nil {
		return fingerprint.Generate(buf)
	}

	key, err := ContentKey(buf)
	if err != nil {
		return nil, err
	}
	if fp, ok := f.cache.Get(key); ok {
		return fp, nil
	}

	fp, err := fingerprint.Generate(buf)
	if err != nil {
		return nil, err
	}
	f.cache.Put(key, fp)
	return fp, nil
}
