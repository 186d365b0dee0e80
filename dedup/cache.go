package dedup

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	"imagedupe/fingerprint"
	"imagedupe/types"
)

// DefaultCacheSize bounds a session cache when no capacity is given.
const DefaultCacheSize = 128

// SessionCache remembers fingerprints computed during one session, keyed by
// buffer content, so repeated ingests of the same decoded image skip the
// hashing step. It is created and owned by the caller and bounded by
// capacity; the oldest entry is evicted when full. Safe for concurrent use.
type SessionCache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*fingerprint.Fingerprint
	order    []string
}

// NewSessionCache creates a cache holding at most capacity fingerprints.
func NewSessionCache(capacity int) *SessionCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &SessionCache{
		capacity: capacity,
		entries:  make(map[string]*fingerprint.Fingerprint),
	}
}

// Get returns the cached fingerprint for a content key.
func (c *SessionCache) Get(key string) (*fingerprint.Fingerprint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp, ok := c.entries[key]
	return fp, ok
}

// Put stores a fingerprint, evicting the oldest entry at capacity.
func (c *SessionCache) Put(key string, fp *fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = fp
		return
	}

	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = fp
	c.order = append(c.order, key)
}

// Len reports the number of cached fingerprints.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ContentKey derives a stable cache key from a buffer's normalized content
// and dimensions.
func ContentKey(buf types.PixelBuffer) (string, error) {
	pix, err := buf.Normalize8()
	if err != nil {
		return "", &fingerprint.UnsupportedBufferError{Reason: err.Error()}
	}

	digest := sha256.New()
	fmt.Fprintf(digest, "%dx%dx%d:", buf.Width, buf.Height, buf.Channels)
	digest.Write(pix)
	return base64.StdEncoding.EncodeToString(digest.Sum(nil))[:32], nil
}
