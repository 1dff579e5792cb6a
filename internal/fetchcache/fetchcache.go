// Package fetchcache is an on-disk dedup cache for sitemap document bodies
// fetched during a single tree build. It does not implement any
// cross-sitemap *page* deduplication (spec's Non-goals are explicit that
// page dedup is out of scope) -- it only avoids issuing the same HTTP GET
// twice when two different parent sitemaps reference the same child URL.
package fetchcache

import (
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
)

// Cache wraps a temp-directory LevelDB instance keyed by final (post-
// redirect) URL.
type Cache struct {
	db  *leveldb.DB
	dir string
}

// Open creates a fresh LevelDB directory under parent (os.TempDir() if
// empty) and returns a Cache backed by it.
func Open(parent string) (*Cache, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	dir, err := os.MkdirTemp(parent, "sitemapgraph-fetchcache-*")
	if err != nil {
		return nil, fmt.Errorf("fetchcache: creating temp dir: %w", err)
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("fetchcache: opening leveldb at %s: %w", dir, err)
	}
	return &Cache{db: db, dir: dir}, nil
}

// Get returns the cached body for key and true, or (nil, false) on a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	value, err := c.db.Get([]byte(key), nil)
	if err != nil {
		return nil, false
	}
	// Copy out: leveldb may reuse the backing array on the next Get.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

// Put stores body under key, overwriting any previous value.
func (c *Cache) Put(key string, body []byte) error {
	if c == nil {
		return nil
	}
	return c.db.Put([]byte(key), body, nil)
}

// Close closes the LevelDB handle and removes its temp directory.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	closeErr := c.db.Close()
	if err := os.RemoveAll(c.dir); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}
