package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache stores entries as JSON files under a directory
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache. Entries set with ttl 0 live for ttl.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
	}
}

type diskEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get reads an entry, removing it when expired
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry diskEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		_ = os.Remove(path)
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// Set writes an entry through a temp file so readers never see partial JSON
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	entry := diskEntry{Data: value}
	if ttl != 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Delete removes an entry. Missing entries are not an error.
func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes the cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path maps a key to a file name safe on every platform
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(key, ":", "_")+".json")
}
