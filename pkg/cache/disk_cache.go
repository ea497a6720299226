package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// cacheRetentionPeriod is how long cache files are kept before cleanup.
	cacheRetentionPeriod = 30 * 24 * time.Hour
	cacheDirPerms        = 0o700
	cacheFilePerms       = 0o600
)

// HitType indicates where a cache value was found.
type HitType string

// Cache lookup outcomes.
const (
	CacheHitMemory HitType = "memory"
	CacheHitDisk   HitType = "disk"
	CacheMiss      HitType = "miss"
)

// diskEntry represents a cache entry on disk with TTL.
type diskEntry[V any] struct {
	Expiration time.Time `json:"expiration"`
	CachedAt   time.Time `json:"cached_at"`
	Value      V         `json:"value"`
}

// DiskCache provides two-tier caching: in-memory + disk persistence.
type DiskCache[V any] struct {
	*Cache[V]

	cacheDir string
	// namespace keeps caches of different value types apart inside one directory.
	namespace string
	enabled   bool
}

// NewDiskCache creates a new cache with disk persistence.
// If cacheDir is empty, falls back to memory-only cache.
func NewDiskCache[V any](ttl time.Duration, cacheDir, namespace string) (*DiskCache[V], error) {
	dc := &DiskCache[V]{
		Cache:     New[V](ttl),
		cacheDir:  cacheDir,
		namespace: namespace,
		enabled:   cacheDir != "",
	}

	if !dc.enabled {
		return dc, nil
	}

	cleanPath := filepath.Clean(cacheDir)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("cache directory must be absolute path")
	}

	if err := os.MkdirAll(cleanPath, cacheDirPerms); err != nil {
		slog.Warn("Failed to create cache directory, falling back to memory-only", "error", err, "path", cleanPath)
		dc.enabled = false
		return dc, nil
	}
	dc.cacheDir = cleanPath
	go dc.cleanOldCaches()

	return dc, nil
}

// Get retrieves a value from cache (memory first, then disk).
func (c *DiskCache[V]) Get(key string) (V, bool) {
	value, hit := c.Lookup(key)
	return value, hit != CacheMiss
}

// Lookup retrieves a value from cache and indicates where it was found.
func (c *DiskCache[V]) Lookup(key string) (V, HitType) {
	if value, found := c.Cache.Get(key); found {
		return value, CacheHitMemory
	}

	var zero V
	if !c.enabled {
		return zero, CacheMiss
	}

	var e diskEntry[V]
	if !c.loadFromDisk(key, &e) {
		return zero, CacheMiss
	}

	if time.Now().After(e.Expiration) {
		slog.Debug("Disk cache entry expired", "key", key, "expired_at", e.Expiration)
		c.removeFromDisk(key)
		return zero, CacheMiss
	}

	slog.Debug("Disk cache hit", "key", key, "cached_at", e.CachedAt, "ttl_remaining", time.Until(e.Expiration))

	// Promote to memory for the remainder of its lifetime.
	if ttl := time.Until(e.Expiration); ttl > 0 {
		c.Cache.SetWithTTL(key, e.Value, ttl)
	}

	return e.Value, CacheHitDisk
}

// Set stores a value in both tiers with the default TTL.
func (c *DiskCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in both memory and disk cache.
func (c *DiskCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.Cache.SetWithTTL(key, value, ttl)

	if !c.enabled {
		return
	}

	now := time.Now()
	e := diskEntry[V]{
		Value:      value,
		Expiration: now.Add(ttl),
		CachedAt:   now,
	}

	if err := c.saveToDisk(key, e); err != nil {
		slog.Debug("Failed to save to disk cache", "key", key, "error", err)
	}
}

// cacheKey generates a SHA256 hash of the namespaced key for the filename.
func (c *DiskCache[V]) cacheKey(key string) string {
	hash := sha256.Sum256([]byte(c.namespace + ":" + key))
	return hex.EncodeToString(hash[:])
}

func (c *DiskCache[V]) path(key string) string {
	return filepath.Join(c.cacheDir, c.cacheKey(key)+".json")
}

// loadFromDisk loads a cache entry from disk.
func (c *DiskCache[V]) loadFromDisk(key string, v any) bool {
	path := c.path(key)

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("Failed to open disk cache file", "error", err, "path", path)
		}
		return false
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Debug("Failed to close disk cache file", "error", err, "path", path)
		}
	}()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		slog.Debug("Failed to decode disk cache file", "error", err, "path", path)
		return false
	}

	return true
}

// saveToDisk saves a cache entry to disk atomically.
func (c *DiskCache[V]) saveToDisk(key string, v any) error {
	path := c.path(key)
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, cacheFilePerms)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	if err := json.NewEncoder(file).Encode(v); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encoding cache data: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return nil
}

// removeFromDisk removes a cache entry from disk.
func (c *DiskCache[V]) removeFromDisk(key string) {
	path := c.path(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove disk cache file", "error", err, "path", path)
	}
}

// cleanOldCaches periodically removes cache files older than the retention period.
func (c *DiskCache[V]) cleanOldCaches() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		entries, err := os.ReadDir(c.cacheDir)
		if err != nil {
			slog.Error("Failed to read cache directory", "error", err)
			continue
		}

		cutoff := time.Now().Add(-cacheRetentionPeriod)
		removed := 0

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(c.cacheDir, e.Name())
				if err := os.Remove(path); err != nil {
					slog.Debug("Failed to remove old cache file", "path", path, "error", err)
				} else {
					removed++
				}
			}
		}

		if removed > 0 {
			slog.Info("Cleaned old cache files", "removed", removed)
		}
	}
}
