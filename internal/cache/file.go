// Package cache stores fetched storage responses on disk so repeated runs
// against the same coverage reports don't refetch unchanged documents.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Kind partitions entries by what they hold. Branch listings churn as new
// reports land and honor the TTL; report objects live under immutable
// timestamp directories and stay fresh for as long as they are cached.
type Kind string

const (
	KindListing Kind = "listing"
	KindReport  Kind = "report"
)

// Entry is one cached HTTP response.
type Entry struct {
	Body       []byte    `json:"body"`
	ETag       string    `json:"etag,omitempty"`
	LastMod    string    `json:"last_modified,omitempty"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// FileCache provides file caching keyed by entry kind and URL.
type FileCache struct {
	dir string
	ttl time.Duration
}

// New creates the cache directory if needed.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl}, nil
}

// Get retrieves an entry. The second return value reports freshness: an
// expired listing is still returned so the caller can attempt a conditional
// refetch with its ETag or Last-Modified stamp. Report entries never expire.
func (c *FileCache) Get(kind Kind, key string) (*Entry, bool) {
	path := c.path(kind, key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry, drop it.
		os.Remove(path)
		return nil, false
	}

	if kind != KindReport && time.Since(entry.CachedAt) > c.ttl {
		return &entry, false
	}
	return &entry, true
}

// Set stores an entry and stamps it with the current time.
func (c *FileCache) Set(kind Kind, key string, entry *Entry) error {
	entry.CachedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return os.WriteFile(c.path(kind, key), data, 0o644)
}

func (c *FileCache) path(kind Kind, key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, string(kind)+"-"+hex.EncodeToString(h[:]))
}
