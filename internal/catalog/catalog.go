// Package catalog holds the classified listing of the current folder.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
	"github.com/ayxkaddd/FilesBoard/pkg/models"
)

// ErrStale is returned when a listing response was outranked by a newer
// navigation and has been discarded.
var ErrStale = errors.New("stale listing discarded")

// Lister fetches the raw entry names of a folder.
type Lister interface {
	ListFiles(ctx context.Context, folder string) ([]string, error)
}

// Catalog is the listing of one folder. It is replaced wholesale on every
// applied load and never patched in place.
type Catalog struct {
	lister Lister

	mu      sync.RWMutex
	latest  uint64
	folder  string
	entries []models.FileEntry
}

// New creates an empty catalog.
func New(l Lister) *Catalog {
	return &Catalog{lister: l}
}

// Load fetches folder under generation gen. The response is applied only
// if no newer generation was issued while it was in flight.
func (c *Catalog) Load(ctx context.Context, folder string, gen uint64) error {
	c.mu.Lock()
	if gen < c.latest {
		c.mu.Unlock()
		c.stale(folder, gen)
		return ErrStale
	}
	c.latest = gen
	c.mu.Unlock()

	names, err := c.lister.ListFiles(ctx, folder)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.latest {
		c.stale(folder, gen)
		return ErrStale
	}

	c.folder = folder
	if err != nil {
		c.entries = nil
		metrics.SetListingEntries(0)
		return err
	}

	c.entries = classify(names)
	metrics.SetListingEntries(len(c.entries))
	logging.Debug("listing loaded",
		logging.String("folder", folder),
		logging.Int("entries", len(c.entries)),
	)
	return nil
}

func (c *Catalog) stale(folder string, gen uint64) {
	metrics.RecordStaleListing()
	logging.Debug("discarding stale listing",
		logging.String("folder", folder),
		logging.Any("generation", gen),
	)
}

// classify sorts folders first, then by name.
func classify(names []string) []models.FileEntry {
	entries := make([]models.FileEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, models.Classify(name))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		fi, fj := entries[i].IsFolder(), entries[j].IsFolder()
		if fi != fj {
			return fi
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Entries returns a copy of the held listing.
func (c *Catalog) Entries() []models.FileEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.FileEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup returns the entry called name, if listed.
func (c *Catalog) Lookup(name string) (models.FileEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Name == name {
			return e, true
		}
	}
	return models.FileEntry{}, false
}

// Folder returns the folder of the last applied load.
func (c *Catalog) Folder() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.folder
}
