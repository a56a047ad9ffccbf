// Package cache provides the key-value stores that memoize per-URL and
// per-artist lookups across requests.
//
// Three backends implement Store:
//   - MemoryStore: an unbounded map, the default
//   - LRUStore: bounded by entry count, least recently used entries are evicted
//   - SQLiteStore: persisted through gorm so the cache survives restarts
//
// Stores are safe for concurrent use. Entries never expire.
package cache
