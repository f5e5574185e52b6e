// Package webcache is the worker's versioned on-disk response cache. Each
// cache version owns a directory; activating a new worker version prunes the
// others. Entries are keyed by URL hash and a corrupt entry reads as a miss.
package webcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one cached response.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt int64       `json:"stored_at"`
}

// Cache stores responses under <root>/<name>-v<version>/.
type Cache struct {
	root    string
	name    string
	version int
	dir     string
}

// Open creates (if needed) and returns the cache for one version.
func Open(root, name string, version int) (*Cache, error) {
	dir := filepath.Join(root, fmt.Sprintf("%s-v%d", name, version))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{root: root, name: name, version: version, dir: dir}, nil
}

// Dir returns the cache's directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Put stores a response for url.
func (c *Cache) Put(url string, e *Entry) error {
	if e.StoredAt == 0 {
		e.StoredAt = time.Now().Unix()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	path := c.entryPath(url)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return os.Rename(tmp, path)
}

// Get returns the cached response for url, if any.
func (c *Cache) Get(url string) (*Entry, bool) {
	data, err := os.ReadFile(c.entryPath(url))
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt entry; drop it and report a miss.
		os.Remove(c.entryPath(url))
		return nil, false
	}
	return &e, true
}

// Delete removes the cached response for url, if any.
func (c *Cache) Delete(url string) {
	os.Remove(c.entryPath(url))
}

// Len counts stored entries.
func (c *Cache) Len() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n
}

// PruneOtherVersions deletes every sibling cache directory belonging to a
// different version of the same cache name.
func (c *Cache) PruneOtherVersions() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return err
	}
	current := filepath.Base(c.dir)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == current {
			continue
		}
		if strings.HasPrefix(e.Name(), c.name+"-v") {
			if err := os.RemoveAll(filepath.Join(c.root, e.Name())); err != nil {
				return fmt.Errorf("prune %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

func (c *Cache) entryPath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
