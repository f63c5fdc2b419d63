package cache

import (
	"container/list"
	"math"
	"sync"
	"time"
)

// Entry is one cached value with its insertion and expiry timestamps.
type Entry[V any] struct {
	Key       string    `json:"key"`
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// live reports whether the entry is still fresh at t.
func (e *Entry[V]) live(t time.Time) bool {
	return t.Before(e.ExpiresAt)
}

// Store is a map-backed TTL cache bounded by MaxSize.
//
// Entries are kept in insertion order. When a new key arrives at capacity the oldest entry
// is evicted; reads never change the order. Expired entries are removed lazily by Get/Has
// or eagerly by Prune.
type Store[V any] struct {
	mu sync.Mutex

	ttl     time.Duration
	maxSize int

	items map[string]*list.Element // values are *Entry[V]
	order *list.List               // front is the oldest insertion

	hits   int64
	misses int64
}

// now is a small indirection to allow test stubbing if needed.
var now = time.Now

// NewStore constructs a new Store with the given options.
func NewStore[V any](opts Options) *Store[V] {
	opts = opts.withDefaults()
	return &Store[V]{
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
		items:   make(map[string]*list.Element, opts.MaxSize),
		order:   list.New(),
	}
}

// Get implements Cache.Get.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, ok := s.liveLocked(key)
	if !ok {
		s.misses++
		return zero, false
	}
	s.hits++
	return e.Value, true
}

// Set implements Cache.Set.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	created := now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(&Entry[V]{
		Key:       key,
		Value:     value,
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	})
}

// Has implements Cache.Has.
func (s *Store[V]) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liveLocked(key)
	return ok
}

// Delete implements Cache.Delete.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(key)
}

// Invalidate implements Cache.Invalidate.
func (s *Store[V]) Invalidate(pattern string) int {
	match := compilePattern(pattern)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*Entry[V])
		if match(e.Key) {
			s.order.Remove(el)
			delete(s.items, e.Key)
			removed++
		}
		el = next
	}
	return removed
}

// Clear implements Cache.Clear.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element, s.maxSize)
	s.order.Init()
	s.hits, s.misses = 0, 0
}

// Stats implements Cache.Stats.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry[V]).Key)
	}

	return Stats{
		Size:    s.order.Len(),
		MaxSize: s.maxSize,
		Hits:    s.hits,
		Misses:  s.misses,
		HitRate: hitRate(s.hits, s.misses),
		Keys:    keys,
	}
}

// Prune implements Cache.Prune.
func (s *Store[V]) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order.Len() == 0 {
		return 0
	}

	nowTs := now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*Entry[V])
		if !e.live(nowTs) {
			s.order.Remove(el)
			delete(s.items, e.Key)
			removed++
		}
		el = next
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// entries copies the stored entries, oldest first.
func (s *Store[V]) entries() []Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry[V], 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Entry[V]))
	}
	return out
}

// restore inserts previously saved entries in order, keeping their timestamps.
func (s *Store[V]) restore(saved []Entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range saved {
		e := saved[i]
		s.insertLocked(&e)
	}
}

// liveLocked returns the entry for key if it is live, deleting it if it has expired.
// Must be called with mu held.
func (s *Store[V]) liveLocked(key string) (*Entry[V], bool) {
	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*Entry[V])
	if !e.live(now()) {
		s.order.Remove(el)
		delete(s.items, key)
		return nil, false
	}
	return e, true
}

// insertLocked places e at the newest position, evicting the oldest entry first if a new
// key would exceed maxSize. Must be called with mu held.
func (s *Store[V]) insertLocked(e *Entry[V]) {
	if el, ok := s.items[e.Key]; ok {
		s.order.Remove(el)
		delete(s.items, e.Key)
	} else if s.order.Len() >= s.maxSize {
		if oldest := s.order.Front(); oldest != nil {
			s.order.Remove(oldest)
			delete(s.items, oldest.Value.(*Entry[V]).Key)
		}
	}
	s.items[e.Key] = s.order.PushBack(e)
}

func (s *Store[V]) removeLocked(key string) bool {
	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.items, key)
	return true
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(total)*10000) / 100
}
