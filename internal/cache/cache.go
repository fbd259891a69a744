// Package cache stores parsed corpora on disk so repeated runs over the same
// benchmark log skip decoding.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/spboyer/portsel/internal/corpus"
	"github.com/spboyer/portsel/internal/models"
)

// entryExt is the suffix of every cache entry.
const entryExt = ".json.zst"

// Cache provides caching for parsed corpora
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a new cache instance with the specified directory
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Cacheable reports whether location can be keyed by content. Stdin and
// remote blobs are never cached.
func Cacheable(location string) bool {
	return location != corpus.Stdin && !corpus.IsBlobURL(location)
}

// CacheKey generates a unique cache key for a corpus load.
// The key is based on:
// - the content of the input file
// - the decoding options (format, cut, variant, baselines, descriptors)
func CacheKey(location string, opts corpus.Options) (string, error) {
	h := sha256.New()

	if err := hashFile(h, location); err != nil {
		return "", fmt.Errorf("hashing %s: %w", location, err)
	}
	// the extension drives decompression and format detection
	if err := writeString(h, filepath.Ext(location)); err != nil {
		return "", err
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("marshaling options: %w", err)
	}
	if _, err := h.Write(optsJSON); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached corpus if it exists
func (c *Cache) Get(key string) (*models.Corpus, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}
	defer f.Close() //nolint:errcheck

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, false
	}
	defer dec.Close()

	var out models.Corpus
	if err := json.NewDecoder(dec).Decode(&out); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}
	return &out, true
}

// Put stores a corpus in the cache
func (c *Cache) Put(key string, cp *models.Corpus) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Ensure cache directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(cp); err != nil {
		_ = enc.Close()
		return fmt.Errorf("marshaling corpus: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("compressing corpus: %w", err)
	}

	// atomic replace
	path := c.cachePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Clear removes all cached corpora
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if directory exists
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: verify this is a portsel cache directory before removing
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if strings.HasSuffix(entry.Name(), entryExt) {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

func writeString(w io.Writer, s string) error {
	// null byte delimiter prevents hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	return nil
}
