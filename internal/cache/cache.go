// Package cache provides byte caches keyed by namespaced hashes, used for
// knowledge lookups and remote entity recognition results.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/ppiankov/symptra/internal/model"
)

const keyPrefix = "symptra:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key for namespace from the hashed parts
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}

// GetJSON decodes a cached value into v. Undecodable entries count as misses.
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it under key
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(key, data, ttl)
}

// New builds the cache described by cfg: memory only when no directory is
// set, memory in front of disk otherwise, and a no-op cache when disabled.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return NopCache{}
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.Dir, cfg.DiskTTL)
}

// NopCache never stores anything
type NopCache struct{}

// Get always misses
func (NopCache) Get(string) ([]byte, bool) { return nil, false }

// Set discards the value
func (NopCache) Set(string, []byte, time.Duration) error { return nil }

// Delete does nothing
func (NopCache) Delete(string) error { return nil }

// Clear does nothing
func (NopCache) Clear() error { return nil }
