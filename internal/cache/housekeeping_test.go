package cache

import (
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncBuffer guards a strings.Builder shared between the sweep loop and the test.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestHousekeeper_RunOnce(t *testing.T) {
	advance := freezeTime(t)
	var logs syncBuffer
	h := NewHousekeeper(time.Hour, log.New(&logs, "", 0))

	pages := NewStore[int](Options{})
	pages.Set("tasks:list:1", 1, time.Second)
	pages.Set("tasks:list:2", 2, time.Hour)
	users := NewCoalescer[string](NewStore[string](Options{}))
	users.Set("users:all", "x", time.Second)
	stats := NewDurableStore[int](newMemMedium(), quietOpts("stats"))
	stats.Set("stats:u-1", 3, time.Second)

	h.Register("pages", pages)
	h.Register("users", users)
	h.Register("stats", stats)

	require.Zero(t, h.RunOnce())
	advance(2 * time.Second)
	require.Equal(t, 3, h.RunOnce())
	require.Equal(t, []string{"tasks:list:2"}, pages.Stats().Keys)
	require.Contains(t, logs.String(), "pruned 1 expired entries from pages")
	require.Contains(t, logs.String(), "from stats")
}

func TestHousekeeper_LoopPrunesInBackground(t *testing.T) {
	h := NewHousekeeper(10*time.Millisecond, log.New(io.Discard, "", 0))
	s := NewStore[int](Options{})
	s.Set("short", 1, 20*time.Millisecond)
	s.Set("long", 2, time.Hour)
	h.Register("s", s)

	h.Start()
	h.Start()
	defer h.Stop()

	require.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, s.Has("long"))
}

func TestHousekeeper_StopIsIdempotent(t *testing.T) {
	h := NewHousekeeper(0, nil)
	require.Equal(t, DefaultPruneInterval, h.interval)

	h.Stop()
	h.Start()
	h.Stop()
	h.Stop()

	h.Start()
	h.Stop()
}
