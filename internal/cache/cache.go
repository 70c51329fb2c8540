// Package cache keeps downloaded files on local disk, bounded by size.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
)

// Entry is one cached file.
type Entry struct {
	Key        string
	LocalPath  string
	Size       int64
	LastAccess time.Time
}

// Cache manages locally cached files. The least recently used entries are
// evicted once the total size would exceed maxSize.
type Cache struct {
	dir     string
	maxSize int64 // Maximum cache size in bytes

	mu      sync.Mutex
	entries map[string]*Entry
	size    int64
}

// indexFile maps local file names back to keys across runs.
const indexFile = "index.json"

// New opens the cache rooted at dir, restoring the files a previous run
// left there.
func New(dir string, maxSize int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		entries: make(map[string]*Entry),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// load rebuilds the index from disk. Size comes from the file and last
// access from its mtime. Leftover temp files and cache files the index no
// longer names are removed; anything else in dir is left alone.
func (c *Cache) load() error {
	index := make(map[string]string)
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &index); err != nil {
			logging.Warn("cache index unreadable, starting empty", logging.Err(err))
			index = make(map[string]string)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("read cache index: %w", err)
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !isCacheFile(name) {
			continue
		}
		localPath := filepath.Join(c.dir, name)
		key, ok := index[name]
		if !ok || strings.HasSuffix(name, ".tmp") || localName(key) != name {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				logging.Warn("remove stray cache file", logging.String("path", localPath), logging.Err(err))
			}
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		c.entries[key] = &Entry{
			Key:        key,
			LocalPath:  localPath,
			Size:       info.Size(),
			LastAccess: info.ModTime(),
		}
		c.size += info.Size()
	}

	logging.Debug("cache opened",
		logging.String("dir", c.dir),
		logging.Int("entries", len(c.entries)),
		logging.Int64("bytes", c.size),
	)
	c.makeRoom(0)
	c.saveIndex()
	return nil
}

// saveIndex persists the local name to key mapping.
// Must be called with lock held.
func (c *Cache) saveIndex() {
	index := make(map[string]string, len(c.entries))
	for key, entry := range c.entries {
		index[filepath.Base(entry.LocalPath)] = key
	}
	data, err := json.Marshal(index)
	if err == nil {
		tempPath := filepath.Join(c.dir, indexFile+".tmp")
		if err = os.WriteFile(tempPath, data, 0644); err == nil {
			err = os.Rename(tempPath, filepath.Join(c.dir, indexFile))
		}
	}
	if err != nil {
		logging.Warn("save cache index", logging.Err(err))
	}
}

// isCacheFile reports whether name has the shape localName produces,
// optionally with the temp suffix.
func isCacheFile(name string) bool {
	const prefix = 12
	if len(name) <= prefix+1 || name[prefix] != '-' {
		return false
	}
	_, err := hex.DecodeString(name[:prefix])
	return err == nil
}

// Key identifies a remote file.
func Key(folder, name string) string {
	return path.Join("/", folder, name)
}

// localName keeps the base name so the file opens with the right program.
func localName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6]) + "-" + path.Base(key)
}

// Get returns the local path if the file is cached.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	now := time.Now()
	entry.LastAccess = now
	// mtime carries the access time into the next run.
	os.Chtimes(entry.LocalPath, now, now)
	return entry.LocalPath, true
}

// Put stores r under key and returns the local path. size is a hint used
// to make room before writing; -1 means unknown.
// Content is written atomically (temp file then rename).
func (c *Cache) Put(key string, r io.Reader, size int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}
	if size > 0 {
		c.makeRoom(size)
	}

	localPath := filepath.Join(c.dir, localName(key))
	tempPath := localPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write content: %w", err)
	}

	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	c.entries[key] = &Entry{
		Key:        key,
		LocalPath:  localPath,
		Size:       written,
		LastAccess: time.Now(),
	}
	c.size += written
	c.makeRoom(0)
	c.saveIndex()

	return localPath, nil
}

// makeRoom evicts until extra more bytes fit. The newest entry is kept even
// if it alone exceeds the limit.
// Must be called with lock held.
func (c *Cache) makeRoom(extra int64) {
	for c.size+extra > c.maxSize && len(c.entries) > 0 {
		if extra == 0 && len(c.entries) == 1 {
			return
		}
		c.evictOldest()
	}
}

// Evict removes a file from the cache.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		c.remove(entry)
		c.saveIndex()
	}
}

func (c *Cache) remove(entry *Entry) {
	if err := os.Remove(entry.LocalPath); err != nil && !os.IsNotExist(err) {
		logging.Warn("remove cached file", logging.String("path", entry.LocalPath), logging.Err(err))
	}
	c.size -= entry.Size
	delete(c.entries, entry.Key)
}

// evictOldest removes the least recently used file.
func (c *Cache) evictOldest() {
	var oldest *Entry
	for _, entry := range c.entries {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest != nil {
		logging.Debug("evicting cached file", logging.String("key", oldest.Key))
		c.remove(oldest)
	}
}

// Stats returns cache statistics.
func (c *Cache) Stats() (size, maxSize int64, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size, c.maxSize, len(c.entries)
}

// List returns all cached entries, most recently used first.
func (c *Cache) List() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.After(entries[j].LastAccess)
	})
	return entries
}

// Clear removes all files from the cache and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.entries)
	for _, entry := range c.entries {
		c.remove(entry)
	}
	c.saveIndex()
	return count
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}
