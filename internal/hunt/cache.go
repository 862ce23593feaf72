package hunt

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/bearer/tauhunt/internal/document"
)

// CacheWriter is the cache-to-disk backend for cache-to-disk mode
// (spec.md section 4.5 step 3): documents attached to an emitted
// Detections record are serialised (JSON, no separators) into one
// append-only side file instead of carried inline, and the Detections
// record keeps only (kind, path, offset, size). Grounded on
// SPEC_FULL.md section 4.5: plain stdlib os.File plus a mutex, since no
// pack repo ships an append-only record-cache writer to prefer instead.
type CacheWriter struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	offset int64
}

// NewCacheWriter opens (creating if necessary) an append-only cache file
// at path.
func NewCacheWriter(path string) (*CacheWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &CacheWriter{f: f, path: path, offset: info.Size()}, nil
}

// Write appends doc's payload as JSON and returns the slice it landed
// at.
func (c *CacheWriter) Write(doc document.Document) (document.Kind, string, int64, int64, error) {
	b, err := json.Marshal(doc.Payload)
	if err != nil {
		return document.KindUnknown, "", 0, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.f.Write(b)
	if err != nil {
		return document.KindUnknown, "", 0, 0, err
	}
	offset := c.offset
	c.offset += int64(n)
	return doc.Kind, c.path, offset, int64(n), nil
}

// Close flushes and releases the underlying file.
func (c *CacheWriter) Close() error {
	return c.f.Close()
}
