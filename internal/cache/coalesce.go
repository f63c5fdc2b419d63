package cache

import (
	"fmt"
	"sync"
	"time"
)

// Coalescer wraps a Cache so that concurrent misses for the same key share one computation.
//
// At most one compute call is in flight per key. Callers arriving while it runs wait for it
// and receive the same value or error. Failures are never written to the store.
type Coalescer[V any] struct {
	mu      sync.Mutex // taken before any lock inside store
	store   Cache[V]
	pending map[string]*call[V]
}

// call is a pending marker. Its identity doubles as a generation stamp: a computation only
// writes its result if its own marker is still registered when it finishes.
type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// NewCoalescer returns a Coalescer in front of store.
//
// Results are written to store while the coalescer lock is held, so a finished computation
// cannot land after a concurrent Invalidate or Clear. When store is a DurableStore that write
// includes the full snapshot to its Medium, and lookups for every other key on this
// coalescer wait for it.
func NewCoalescer[V any](store Cache[V]) *Coalescer[V] {
	return &Coalescer[V]{
		store:   store,
		pending: make(map[string]*call[V]),
	}
}

// GetOrCompute returns the live value for key, or runs compute to produce it.
//
// The store lookup, the pending check and marker registration happen in one critical
// section; compute itself runs without the lock held. The cache puts no deadline on compute:
// a slow compute blocks every caller waiting on its key. Errors from compute are returned
// unchanged to the initiating caller and every waiter.
func (c *Coalescer[V]) GetOrCompute(key string, compute func() (V, error), ttl time.Duration) (V, error) {
	c.mu.Lock()
	if v, ok := c.store.Get(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	if cl, ok := c.pending[key]; ok {
		c.mu.Unlock()
		<-cl.done
		return cl.val, cl.err
	}
	cl := &call[V]{done: make(chan struct{})}
	c.pending[key] = cl
	c.mu.Unlock()

	cl.val, cl.err = run(key, compute)

	c.mu.Lock()
	if c.pending[key] == cl {
		delete(c.pending, key)
		if cl.err == nil {
			c.store.Set(key, cl.val, ttl)
		}
	}
	c.mu.Unlock()
	close(cl.done)

	return cl.val, cl.err
}

// run calls compute, turning a panic into an error so waiters are always released.
func run[V any](key string, compute func() (V, error)) (val V, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			val = zero
			if e, ok := r.(error); ok {
				err = fmt.Errorf("cache: compute for key %q panicked: %w", key, e)
			} else {
				err = fmt.Errorf("cache: compute for key %q panicked: %v", key, r)
			}
		}
	}()
	val, err = compute()
	if err != nil {
		var zero V
		val = zero
	}
	return val, err
}

// Invalidate removes matching entries and matching pending markers.
//
// Computations already running are not cancelled. Their callers still get the result, but
// it is not written to the store because the marker is gone.
func (c *Coalescer[V]) Invalidate(pattern string) int {
	match := compilePattern(pattern)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.pending {
		if match(key) {
			delete(c.pending, key)
		}
	}
	return c.store.Invalidate(pattern)
}

// Clear empties the store and drops every pending marker.
func (c *Coalescer[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[string]*call[V])
	c.store.Clear()
}

// InFlight returns the number of keys with a computation in progress.
func (c *Coalescer[V]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Get implements Cache.Get.
func (c *Coalescer[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(key)
}

// Set implements Cache.Set.
func (c *Coalescer[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Set(key, value, ttl)
}

// Has implements Cache.Has.
func (c *Coalescer[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Has(key)
}

// Delete implements Cache.Delete.
func (c *Coalescer[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(key)
}

// Stats implements Cache.Stats.
func (c *Coalescer[V]) Stats() Stats {
	return c.store.Stats()
}

// Prune implements Cache.Prune.
func (c *Coalescer[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Prune()
}
