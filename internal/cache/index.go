package cache

import (
	"encoding/json"
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/ZacxDev/reelbatch/internal/fileutil"
	"github.com/ZacxDev/reelbatch/internal/logging"
)

// load reads the index from disk into memory.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "read cache index")
	}
	if len(data) == 0 {
		return nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(err, "parse cache index")
	}

	loaded := make([]Entry, 0, len(entries))
	for key, entry := range entries {
		if entry.URL == "" || entry.StoredFileName == "" || Key(entry.URL) != key {
			continue
		}
		loaded = append(loaded, entry)
	}

	// Older indexes carry no sequence numbers; fall back to creation order.
	slices.SortStableFunc(loaded, func(a, b Entry) int {
		if a.Seq != b.Seq {
			return compareSeq(a.Seq, b.Seq)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	c.entries = make(map[string]Entry, len(loaded))
	c.seq = 0
	for _, entry := range loaded {
		c.seq++
		entry.Seq = c.seq
		c.entries[Key(entry.URL)] = entry
	}

	c.logger.Debug("loaded cache index",
		logging.Int("entry_count", len(c.entries)),
		logging.String(logging.FieldPath, c.indexPath))
	return nil
}

// save rewrites the whole index under the advisory file lock.
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal cache index")
	}

	if err := c.fileLock.Lock(); err != nil {
		return errors.Wrap(err, "lock cache index")
	}
	defer func() {
		_ = c.fileLock.Unlock()
	}()

	if err := fileutil.WriteFileAtomic(c.indexPath, data); err != nil {
		return errors.Wrap(err, "persist cache index")
	}
	return nil
}
