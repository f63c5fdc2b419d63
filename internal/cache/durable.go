package cache

import (
	"log"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// DurableOptions controls construction of a DurableStore.
type DurableOptions struct {
	Options

	// StorageKey names the snapshot inside the medium.
	StorageKey string

	// Logger receives load and save failures. Nil means log.Default().
	Logger *log.Logger
}

// snapshot is the serialized form of a whole store.
type snapshot[V any] struct {
	Entries []Entry[V] `json:"entries"`
	SavedAt time.Time  `json:"savedAt"`
}

// DurableStore is a Store whose contents are mirrored to a Medium.
//
// The snapshot is loaded once at construction and rewritten in full after every mutation.
// Medium failures never reach callers: a failed load leaves the store empty and a failed
// write turns persistence off for the rest of the instance's life.
type DurableStore[V any] struct {
	store *Store[V]

	medium     Medium
	storageKey string
	logger     *log.Logger

	persistMu  sync.Mutex // orders snapshot writes
	persistent bool
}

// NewDurableStore builds a store from medium's snapshot under opts.StorageKey.
// Entries that expired while the process was down are pruned before it is returned.
func NewDurableStore[V any](medium Medium, opts DurableOptions) *DurableStore[V] {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	d := &DurableStore[V]{
		store:      NewStore[V](opts.Options),
		medium:     medium,
		storageKey: opts.StorageKey,
		logger:     logger,
		persistent: medium != nil,
	}
	d.load()
	return d
}

func (d *DurableStore[V]) load() {
	if d.medium == nil {
		return
	}
	raw, ok, err := d.medium.Read(d.storageKey)
	if err != nil {
		d.logger.Printf("cache: load %q failed, starting empty: %v", d.storageKey, err)
		return
	}
	if !ok {
		return
	}

	var snap snapshot[V]
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		d.logger.Printf("cache: snapshot %q is corrupt, discarding: %v", d.storageKey, err)
		if err := d.medium.Remove(d.storageKey); err != nil {
			d.logger.Printf("cache: remove corrupt snapshot %q: %v", d.storageKey, err)
		}
		return
	}

	d.store.restore(snap.Entries)
	if n := d.store.Prune(); n > 0 {
		d.logger.Printf("cache: dropped %d stale entries from %q", n, d.storageKey)
		d.persist()
	}
}

// persist writes the full store to the medium.
func (d *DurableStore[V]) persist() {
	d.persistMu.Lock()
	defer d.persistMu.Unlock()
	if !d.persistent {
		return
	}

	data, err := json.Marshal(snapshot[V]{
		Entries: d.store.entries(),
		SavedAt: now(),
	})
	if err == nil {
		err = d.medium.Write(d.storageKey, string(data))
	}
	if err != nil {
		d.persistent = false
		d.logger.Printf("cache: save %q failed, continuing in memory only: %v", d.storageKey, err)
	}
}

// Persistent reports whether mutations are still being written to the medium.
func (d *DurableStore[V]) Persistent() bool {
	d.persistMu.Lock()
	defer d.persistMu.Unlock()
	return d.persistent
}

// Get implements Cache.Get.
func (d *DurableStore[V]) Get(key string) (V, bool) {
	return d.store.Get(key)
}

// Set implements Cache.Set.
func (d *DurableStore[V]) Set(key string, value V, ttl time.Duration) {
	d.store.Set(key, value, ttl)
	d.persist()
}

// Has implements Cache.Has.
func (d *DurableStore[V]) Has(key string) bool {
	return d.store.Has(key)
}

// Delete implements Cache.Delete.
func (d *DurableStore[V]) Delete(key string) bool {
	removed := d.store.Delete(key)
	d.persist()
	return removed
}

// Invalidate implements Cache.Invalidate.
func (d *DurableStore[V]) Invalidate(pattern string) int {
	n := d.store.Invalidate(pattern)
	if n > 0 {
		d.persist()
	}
	return n
}

// Clear implements Cache.Clear.
func (d *DurableStore[V]) Clear() {
	d.store.Clear()
	d.persist()
}

// Stats implements Cache.Stats.
func (d *DurableStore[V]) Stats() Stats {
	return d.store.Stats()
}

// Prune implements Cache.Prune.
func (d *DurableStore[V]) Prune() int {
	n := d.store.Prune()
	if n > 0 {
		d.persist()
	}
	return n
}
