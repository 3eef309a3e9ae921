// Package cache keeps downloaded remote media on local disk, keyed by a hash
// of the source URL.
//
// The index (URL key -> Entry) lives in cache-index.json next to the cached
// files and is rewritten whole after every mutation. Writes are serialized
// with an advisory file lock, but two processes mutating the same cache can
// still lose each other's updates because each keeps its own in-memory copy.
//
// Resident size is bounded: after every Put the least recently accessed
// entries are evicted until the total drops to 80% of the ceiling. Entries
// older than the TTL are treated as absent and removed lazily, or eagerly by
// CleanupExpired.
package cache
