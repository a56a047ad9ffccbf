package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Backend names accepted by New
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Store memoizes values by key
type Store[V any] interface {
	// Get returns the value for key and whether it was present
	Get(key string) (V, bool, error)
	// Set stores value under key, replacing any previous value
	Set(key string, value V) error
	// Len returns the number of entries
	Len() int
}

// Options selects and sizes a backend
type Options struct {
	Backend    string
	MaxEntries int // > 0 bounds a memory store with LRU eviction
	DB         *DB // required for the sqlite backend
}

// New builds a Store for one namespace (e.g. "details", "artist_images").
// Namespaces keep stores that share a database apart.
func New[V any](opts Options, namespace string) (Store[V], error) {
	switch opts.Backend {
	case "", BackendMemory:
		if opts.MaxEntries > 0 {
			return NewLRUStore[V](opts.MaxEntries)
		}
		return NewMemoryStore[V](), nil
	case BackendSQLite:
		if opts.DB == nil {
			return nil, fmt.Errorf("cache backend 'sqlite' requires an open database")
		}
		return NewSQLiteStore[V](opts.DB, namespace), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.Backend)
	}
}

// MemoryStore is an unbounded in-process Store
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{entries: make(map[string]V)}
}

func (s *MemoryStore[V]) Get(key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemoryStore[V]) Set(key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LRUStore is a Store holding at most a fixed number of entries
type LRUStore[V any] struct {
	cache *lru.Cache[string, V]
}

// NewLRUStore creates an LRUStore holding up to size entries
func NewLRUStore[V any](size int) (*LRUStore[V], error) {
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache of size %d: %w", size, err)
	}
	return &LRUStore[V]{cache: c}, nil
}

func (s *LRUStore[V]) Get(key string) (V, bool, error) {
	v, ok := s.cache.Get(key)
	return v, ok, nil
}

func (s *LRUStore[V]) Set(key string, value V) error {
	s.cache.Add(key, value)
	return nil
}

func (s *LRUStore[V]) Len() int {
	return s.cache.Len()
}
