package cache

import "time"

const (
	// DefaultTTL is used when Options.TTL is not set.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxSize is used when Options.MaxSize is not set.
	DefaultMaxSize = 100
)

// Cache defines the string-keyed cache API shared by Store, DurableStore and Coalescer.
// All implementations in this package are safe for concurrent use.
type Cache[V any] interface {
	// Get returns the value and whether it was present and live.
	// Expired entries are removed and counted as a miss.
	Get(key string) (V, bool)

	// Set stores the value. If ttl <= 0, the store default TTL is used.
	Set(key string, value V, ttl time.Duration)

	// Has reports whether a key is present and live without touching hit/miss counters.
	Has(key string) bool

	// Delete removes a key and reports whether it was present.
	Delete(key string) bool

	// Invalidate removes every key matching pattern and returns how many were removed.
	Invalidate(pattern string) int

	// Clear removes all entries and resets the counters.
	Clear()

	// Stats returns a point-in-time snapshot.
	Stats() Stats

	// Prune scans and removes expired entries.
	Prune() int
}

// Pruner is anything the Housekeeper can sweep.
type Pruner interface {
	Prune() int
}

// Stats is a snapshot of a cache's size and hit accounting.
type Stats struct {
	Size    int      `json:"size"`
	MaxSize int      `json:"maxSize"`
	Hits    int64    `json:"hits"`
	Misses  int64    `json:"misses"`
	HitRate float64  `json:"hitRate"` // percent, 0 when there were no lookups
	Keys    []string `json:"keys"`
}

// Options controls construction of a Store.
type Options struct {
	// TTL is the default lifetime of an entry. Zero means DefaultTTL.
	TTL time.Duration

	// MaxSize bounds the number of entries. Zero means DefaultMaxSize.
	MaxSize int
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	return o
}

// Ensure the implementations satisfy Cache at compile time.
var (
	_ Cache[any] = (*Store[any])(nil)
	_ Cache[any] = (*DurableStore[any])(nil)
	_ Cache[any] = (*Coalescer[any])(nil)
)
