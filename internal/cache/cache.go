package cache

import (
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/ZacxDev/reelbatch/internal/config"
	"github.com/ZacxDev/reelbatch/internal/fileutil"
	"github.com/ZacxDev/reelbatch/internal/logging"
)

const (
	// IndexFileName is the index file kept inside the cache directory.
	IndexFileName = "cache-index.json"

	DefaultMaxBytes int64 = 5 * 1024 * 1024 * 1024
	DefaultTTL            = 24 * time.Hour

	lockFileName = ".cache-index.lock"
)

// Entry describes one cached file.
type Entry struct {
	URL              string    `json:"url"`
	StoredFileName   string    `json:"stored_file_name"`
	OriginalFileName string    `json:"original_file_name"`
	SizeBytes        int64     `json:"size_bytes"`
	CreatedAt        time.Time `json:"created_at"`
	LastAccessedAt   time.Time `json:"last_accessed_at"`
	// Seq orders entries by insertion; it breaks LastAccessedAt ties during eviction.
	Seq uint64 `json:"seq"`
}

// Stats describes current cache usage.
type Stats struct {
	FileCount      int     `json:"file_count"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	MaxSizeBytes   int64   `json:"max_size_bytes"`
	UsageFraction  float64 `json:"usage_fraction"`
}

// Option customizes a Cache.
type Option func(*Cache)

// WithMaxBytes sets the resident size ceiling.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithTTL sets the maximum entry age.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, "cache")
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is a content-addressed (by URL hash) store of remote media files.
type Cache struct {
	dir       string
	indexPath string
	fileLock  *flock.Flock
	maxBytes  int64
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry // keyed by Key(url)
	seq     uint64
}

// New opens the cache rooted at dir, creating the directory if needed. A
// missing or corrupt index yields an empty cache; only a failure to create
// the directory is returned.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache: directory is required")
	}
	c := &Cache{
		dir:       dir,
		indexPath: filepath.Join(dir, IndexFileName),
		fileLock:  flock.New(filepath.Join(dir, lockFileName)),
		maxBytes:  DefaultMaxBytes,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    logging.NewComponentLogger(nil, "cache"),
		entries:   make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cache: create directory %q", dir)
	}

	if err := c.load(); err != nil {
		logging.WarnWithContext(c.logger, "failed to load cache index",
			"cache_index_load_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, c.indexPath),
			logging.String(logging.FieldErrorHint, "the index will be rebuilt as assets are fetched"),
			logging.String(logging.FieldImpact, "previously cached assets will be downloaded again"))
		c.entries = make(map[string]Entry)
		c.seq = 0
	}
	return c, nil
}

// Key returns the stable cache key for url.
func Key(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Has reports whether url is cached, its file exists and it has not expired.
// Stale or expired entries are purged as a side effect.
func (c *Cache) Has(url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok, err := c.lookupLocked(Key(url))
	return ok, err
}

// Get returns the cached file path for url and bumps its access time.
func (c *Cache) Get(url string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(url)
	entry, ok, err := c.lookupLocked(key)
	if err != nil || !ok {
		return "", false, err
	}

	entry.LastAccessedAt = c.now()
	c.entries[key] = entry
	if err := c.save(); err != nil {
		return "", false, err
	}
	return c.pathFor(entry), true, nil
}

// Put copies sourcePath into the cache under the hash of url plus the
// extension of originalFileName, replacing any previous entry for url, and
// then evicts if the ceiling is exceeded. The returned path is where the copy
// was stored.
func (c *Cache) Put(url, sourcePath, originalFileName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(url)
	storedName := key + filepath.Ext(originalFileName)
	dst := filepath.Join(c.dir, storedName)

	size, err := fileutil.CopyFileAtomic(sourcePath, dst)
	if err != nil {
		return "", errors.Wrap(err, "cache: copy into cache")
	}

	if prev, exists := c.entries[key]; exists && prev.StoredFileName != storedName {
		if err := fileutil.RemoveIfExists(c.pathFor(prev)); err != nil {
			return "", errors.Wrap(err, "cache: remove replaced file")
		}
	}

	now := c.now()
	c.seq++
	c.entries[key] = Entry{
		URL:              url,
		StoredFileName:   storedName,
		OriginalFileName: originalFileName,
		SizeBytes:        size,
		CreatedAt:        now,
		LastAccessedAt:   now,
		Seq:              c.seq,
	}

	if err := c.save(); err != nil {
		return "", err
	}
	if err := c.evictLocked(); err != nil {
		return "", err
	}

	c.logger.Debug("stored asset in cache",
		logging.String(logging.FieldURL, url),
		logging.String(logging.FieldPath, dst),
		logging.Int64("size_bytes", size))
	return dst, nil
}

// Remove deletes the cached file and entry for url. Removing an absent url
// is not an error.
func (c *Cache) Remove(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(url)
	if _, ok := c.entries[key]; !ok {
		return nil
	}
	if err := c.removeLocked(key); err != nil {
		return err
	}
	return c.save()
}

// CleanupExpired removes every entry older than the TTL and returns how many
// were removed.
func (c *Cache) CleanupExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make([]Entry, 0)
	for _, entry := range c.entries {
		if c.expired(entry) {
			expired = append(expired, entry)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	slices.SortFunc(expired, func(a, b Entry) int { return compareSeq(a.Seq, b.Seq) })

	for _, entry := range expired {
		if err := c.removeLocked(Key(entry.URL)); err != nil {
			return 0, err
		}
	}
	if err := c.save(); err != nil {
		return 0, err
	}
	c.logger.Info("removed expired cache entries", logging.Int("count", len(expired)))
	return len(expired), nil
}

// Stats returns the current file count and resident size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, entry := range c.entries {
		total += entry.SizeBytes
	}
	return Stats{
		FileCount:      len(c.entries),
		TotalSizeBytes: total,
		MaxSizeBytes:   c.maxBytes,
		UsageFraction:  float64(total) / float64(c.maxBytes),
	}
}

// Entries returns a snapshot of the index in insertion order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

func (c *Cache) lookupLocked(key string) (Entry, bool, error) {
	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}

	if !fileutil.Exists(c.pathFor(entry)) {
		delete(c.entries, key)
		c.logger.Debug("purged cache entry with missing file", logging.String(logging.FieldURL, entry.URL))
		return Entry{}, false, c.save()
	}

	if c.expired(entry) {
		if err := c.removeLocked(key); err != nil {
			return Entry{}, false, err
		}
		c.logger.Debug("purged expired cache entry", logging.String(logging.FieldURL, entry.URL))
		return Entry{}, false, c.save()
	}

	return entry, true, nil
}

// evictLocked drops least recently accessed entries until the resident size
// is at most CacheEvictionTarget of the ceiling. It is a no-op while the total
// is within the ceiling.
func (c *Cache) evictLocked() error {
	var total int64
	for _, entry := range c.entries {
		total += entry.SizeBytes
	}
	if total <= c.maxBytes {
		return nil
	}

	target := int64(float64(c.maxBytes) * config.CacheEvictionTarget)
	candidates := c.snapshotLocked()
	slices.SortStableFunc(candidates, func(a, b Entry) int {
		return a.LastAccessedAt.Compare(b.LastAccessedAt)
	})

	evicted := 0
	for _, entry := range candidates {
		if total <= target {
			break
		}
		if err := c.removeLocked(Key(entry.URL)); err != nil {
			return err
		}
		total -= entry.SizeBytes
		evicted++
	}

	c.logger.Info("evicted cache entries",
		logging.Int("evicted", evicted),
		logging.Int64("total_bytes", total),
		logging.Int64("max_bytes", c.maxBytes))
	return c.save()
}

func (c *Cache) removeLocked(key string) error {
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if err := fileutil.RemoveIfExists(c.pathFor(entry)); err != nil {
		return errors.Wrap(err, "cache: remove file")
	}
	delete(c.entries, key)
	return nil
}

func (c *Cache) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b Entry) int { return compareSeq(a.Seq, b.Seq) })
	return out
}

func (c *Cache) expired(entry Entry) bool {
	return c.now().Sub(entry.CreatedAt) > c.ttl
}

func (c *Cache) pathFor(entry Entry) string {
	return filepath.Join(c.dir, entry.StoredFileName)
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
