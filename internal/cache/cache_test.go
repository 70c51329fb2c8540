package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
)

func newCache(t *testing.T, max int64) *Cache {
	t.Helper()
	logging.InitNop()
	c, err := New(t.TempDir(), max)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCache_PutAndGet(t *testing.T) {
	c := newCache(t, 1<<20)

	content := []byte("hello world")
	key := Key("docs", "notes.txt")
	path, err := c.Put(key, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasSuffix(path, "-notes.txt") || filepath.Dir(path) != c.Dir() {
		t.Errorf("unexpected local path %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("content mismatch: got %q, want %q", data, content)
	}

	gotPath, ok := c.Get(key)
	if !ok || gotPath != path {
		t.Errorf("Get = %q, %v; want %q", gotPath, ok, path)
	}
	if _, ok := c.Get(Key("", "notes.txt")); ok {
		t.Error("same name in another folder must be a different key")
	}
}

func TestCache_Replace(t *testing.T) {
	c := newCache(t, 1<<20)
	key := Key("", "a.txt")
	c.Put(key, strings.NewReader("first"), 5)
	path, _ := c.Put(key, strings.NewReader("second!"), 7)

	size, _, count := c.Stats()
	if size != 7 || count != 1 {
		t.Errorf("Stats = %d bytes, %d entries", size, count)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second!" {
		t.Errorf("expected replaced content, got %q", data)
	}
}

func TestCache_Evict(t *testing.T) {
	c := newCache(t, 1<<20)
	path, _ := c.Put("evictme", strings.NewReader("test"), 4)

	c.Evict("evictme")
	c.Evict("evictme")

	if _, ok := c.Get("evictme"); ok {
		t.Error("file still cached after Evict")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cached file not removed from disk")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := newCache(t, 10)

	c.Put("a", strings.NewReader("aaaa"), 4)
	time.Sleep(5 * time.Millisecond)
	c.Put("b", strings.NewReader("bbbb"), 4)
	time.Sleep(5 * time.Millisecond)
	c.Get("a")
	time.Sleep(5 * time.Millisecond)
	c.Put("c", strings.NewReader("cccc"), 4)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestCache_UnknownSizeOverLimit(t *testing.T) {
	c := newCache(t, 4)
	c.Put("a", strings.NewReader("aa"), -1)
	c.Put("big", strings.NewReader("0123456789"), -1)

	size, _, count := c.Stats()
	if count != 1 || size != 10 {
		t.Errorf("expected only the newest oversized entry, got %d entries / %d bytes", count, size)
	}
	if _, ok := c.Get("big"); !ok {
		t.Error("newest entry should be kept")
	}
}

func TestCache_ListAndClear(t *testing.T) {
	c := newCache(t, 1<<20)
	c.Put("x", strings.NewReader("1"), 1)
	time.Sleep(5 * time.Millisecond)
	c.Put("y", strings.NewReader("2"), 1)

	list := c.List()
	if len(list) != 2 || list[0].Key != "y" {
		t.Errorf("unexpected list %+v", list)
	}
	if n := c.Clear(); n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
	if size, _, count := c.Stats(); size != 0 || count != 0 {
		t.Errorf("cache not empty after Clear: %d/%d", size, count)
	}
}

func TestKey(t *testing.T) {
	if Key("", "a.txt") != "/a.txt" || Key("docs/2024", "b.md") != "/docs/2024/b.md" {
		t.Errorf("unexpected keys %q %q", Key("", "a.txt"), Key("docs/2024", "b.md"))
	}
}

func TestCache_ReopenRestoresEntries(t *testing.T) {
	logging.InitNop()
	dir := t.TempDir()

	c, err := New(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	first, _ := c.Put(Key("docs", "a.txt"), strings.NewReader("aaaaaaaa"), 8)

	reopened, err := New(dir, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if size, _, count := reopened.Stats(); size != 8 || count != 1 {
		t.Fatalf("reopened cache = %d bytes, %d entries; want 8, 1", size, count)
	}
	if path, ok := reopened.Get(Key("docs", "a.txt")); !ok || path != first {
		t.Errorf("Get after reopen = %q, %v", path, ok)
	}

	reopened.Put(Key("docs", "b.txt"), strings.NewReader("bbbbbbbb"), 8)
	if size, _, count := reopened.Stats(); size != 8 || count != 1 {
		t.Errorf("limit not enforced across runs: %d bytes, %d entries", size, count)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Error("entry from the previous run should have been evicted from disk")
	}
}

func TestCache_OpenRemovesStrayCacheFiles(t *testing.T) {
	logging.InitNop()
	dir := t.TempDir()

	c, err := New(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	kept, _ := c.Put("kept", strings.NewReader("k"), 1)

	partial := filepath.Join(dir, localName("partial")+".tmp")
	unindexed := filepath.Join(dir, localName("gone"))
	foreign := filepath.Join(dir, "notes.txt")
	for _, p := range []string{partial, unindexed, foreign} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	reopened, err := New(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, count := reopened.Stats(); count != 1 {
		t.Errorf("expected only the indexed entry, got %d", count)
	}
	for _, p := range []string{partial, unindexed} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", filepath.Base(p))
		}
	}
	for _, p := range []string{kept, foreign} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be left alone: %v", filepath.Base(p), err)
		}
	}
}
