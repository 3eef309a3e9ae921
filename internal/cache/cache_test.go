package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func writeSource(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, size), 0o644))
	return path
}

func TestPutThenGetReturnsIdenticalBytes(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "clip.mp4")
	payload := []byte("not really a video")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	url := "https://drive.google.com/file/d/abc123/view"
	stored, err := c.Put(url, src, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Key(url)+".mp4"), stored)

	ok, err := c.Has(url)
	require.NoError(t, err)
	assert.True(t, ok)

	path, ok, err := c.Get(url)
	require.NoError(t, err)
	require.True(t, ok)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPutSameURLKeepsSingleEntry(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	url := "https://example.com/a"
	_, err = c.Put(url, writeSource(t, "a.jpg", 10), "a.jpg")
	require.NoError(t, err)
	first := filepath.Join(c.Dir(), Key(url)+".jpg")

	_, err = c.Put(url, writeSource(t, "a.png", 20), "a.png")
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Key(url)+".png", entries[0].StoredFileName)
	assert.EqualValues(t, 20, entries[0].SizeBytes)
	assert.NoFileExists(t, first)
}

func TestFailedReplaceKeepsPreviousFile(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	url := "https://example.com/clip"
	stored, err := c.Put(url, writeSource(t, "clip.mp4", 64), "clip.mp4")
	require.NoError(t, err)

	// Reading a directory fails after the destination has been opened.
	_, err = c.Put(url, t.TempDir(), "clip.mp4")
	require.Error(t, err)

	path, ok, err := c.Get(url)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'x'}, 64), data)
	assert.NoFileExists(t, stored+".tmp")
}

func TestHasPurgesEntryWhenFileDeletedExternally(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	url := "https://example.com/audio"
	stored, err := c.Put(url, writeSource(t, "a.mp3", 5), "a.mp3")
	require.NoError(t, err)
	require.NoError(t, os.Remove(stored))

	ok, err := c.Has(url)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, c.Entries())

	_, ok, err = c.Get(url)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredEntriesAreAbsent(t *testing.T) {
	clock := newClock()
	c, err := New(t.TempDir(), WithTTL(24*time.Hour), WithClock(clock.Now))
	require.NoError(t, err)

	url := "https://example.com/v"
	stored, err := c.Put(url, writeSource(t, "v.mp4", 5), "v.mp4")
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	_, ok, err := c.Get(url)
	require.NoError(t, err)
	require.True(t, ok, "access does not extend lifetime but entry is still young")

	clock.Advance(2 * time.Hour)
	ok, err = c.Has(url)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoFileExists(t, stored)
}

func TestCleanupExpired(t *testing.T) {
	clock := newClock()
	c, err := New(t.TempDir(), WithTTL(time.Hour), WithClock(clock.Now))
	require.NoError(t, err)

	_, err = c.Put("https://example.com/old1", writeSource(t, "1.jpg", 3), "1.jpg")
	require.NoError(t, err)
	_, err = c.Put("https://example.com/old2", writeSource(t, "2.jpg", 3), "2.jpg")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = c.Put("https://example.com/new", writeSource(t, "3.jpg", 3), "3.jpg")
	require.NoError(t, err)

	removed, err := c.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/new", entries[0].URL)

	removed, err = c.CleanupExpired()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEvictionDrainsToEightyPercent(t *testing.T) {
	clock := newClock()
	c, err := New(t.TempDir(), WithMaxBytes(100), WithClock(clock.Now))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		_, err := c.Put(fmt.Sprintf("https://example.com/%d", i), writeSource(t, "f.bin", 40), "f.bin")
		require.NoError(t, err)
	}

	stats := c.Stats()
	assert.EqualValues(t, 80, stats.TotalSizeBytes)
	assert.Equal(t, 2, stats.FileCount)
	assert.InDelta(t, 0.8, stats.UsageFraction, 1e-9)

	ok, err := c.Has("https://example.com/0")
	require.NoError(t, err)
	assert.False(t, ok, "least recently accessed entry is evicted first")
}

func TestEvictionPrefersLeastRecentlyAccessed(t *testing.T) {
	clock := newClock()
	c, err := New(t.TempDir(), WithMaxBytes(100), WithClock(clock.Now))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = c.Put("https://example.com/a", writeSource(t, "a.bin", 40), "a.bin")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = c.Put("https://example.com/b", writeSource(t, "b.bin", 40), "b.bin")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, ok, err := c.Get("https://example.com/a")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Minute)
	_, err = c.Put("https://example.com/c", writeSource(t, "c.bin", 40), "c.bin")
	require.NoError(t, err)

	okA, err := c.Has("https://example.com/a")
	require.NoError(t, err)
	okB, err := c.Has("https://example.com/b")
	require.NoError(t, err)
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestEvictionTieBreaksByInsertionOrder(t *testing.T) {
	clock := newClock()
	c, err := New(t.TempDir(), WithMaxBytes(100), WithClock(clock.Now))
	require.NoError(t, err)

	// Identical timestamps for every entry.
	for _, name := range []string{"first", "second", "third", "fourth"} {
		_, err := c.Put("https://example.com/"+name, writeSource(t, name, 30), name+".bin")
		require.NoError(t, err)
	}

	var urls []string
	for _, entry := range c.Entries() {
		urls = append(urls, entry.URL)
	}
	assert.Equal(t, []string{"https://example.com/third", "https://example.com/fourth"}, urls)
}

func TestSizeNeverExceedsCeiling(t *testing.T) {
	clock := newClock()
	c, err := New(t.TempDir(), WithMaxBytes(1000), WithClock(clock.Now))
	require.NoError(t, err)

	sizes := []int{120, 350, 90, 410, 15, 600, 230, 77, 999, 5, 310}
	for i, size := range sizes {
		clock.Advance(time.Second)
		_, err := c.Put(fmt.Sprintf("https://example.com/item/%d", i), writeSource(t, "x", size), "x.bin")
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Stats().TotalSizeBytes, int64(1000))
	}
}

func TestIndexPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	url := "https://example.com/persisted"
	_, err = c.Put(url, writeSource(t, "p.png", 8), "p.png")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, IndexFileName))

	reopened, err := New(dir)
	require.NoError(t, err)
	ok, err := reopened.Has(url)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, reopened.Stats().FileCount)
}

func TestCorruptIndexStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("{not json"), 0o644))

	c, err := New(dir)
	require.NoError(t, err)
	assert.Zero(t, c.Stats().FileCount)

	_, err = c.Put("https://example.com/x", writeSource(t, "x.jpg", 4), "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Stats().FileCount)
}

func TestRemoveIsIdempotent(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	url := "https://example.com/r"
	stored, err := c.Put(url, writeSource(t, "r.gif", 4), "r.gif")
	require.NoError(t, err)

	require.NoError(t, c.Remove(url))
	assert.NoFileExists(t, stored)
	require.NoError(t, c.Remove(url))
	require.NoError(t, c.Remove("https://example.com/never-cached"))
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
