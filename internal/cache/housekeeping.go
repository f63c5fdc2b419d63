package cache

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultPruneInterval is the sweep period used when none is configured.
const DefaultPruneInterval = time.Minute

type namedPruner struct {
	name string
	p    Pruner
}

// Housekeeper periodically prunes expired entries from every registered store.
type Housekeeper struct {
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	pruners []namedPruner
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewHousekeeper returns a stopped Housekeeper. interval <= 0 means DefaultPruneInterval.
func NewHousekeeper(interval time.Duration, logger *log.Logger) *Housekeeper {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Housekeeper{interval: interval, logger: logger}
}

// Register adds p to the set swept on each tick.
func (h *Housekeeper) Register(name string, p Pruner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruners = append(h.pruners, namedPruner{name: name, p: p})
}

// Start launches the sweep loop. Calling Start on a running Housekeeper is a no-op.
func (h *Housekeeper) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return
	}
	h.stop = make(chan struct{})
	h.wg.Add(1)
	go h.loop(h.stop)
}

// Stop ends the sweep loop and waits for it to exit. Safe to call more than once.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	h.wg.Wait()
}

func (h *Housekeeper) loop(stop <-chan struct{}) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.RunOnce()
		}
	}
}

// RunOnce prunes every registered store once and returns the total removed.
func (h *Housekeeper) RunOnce() int {
	h.mu.Lock()
	pruners := append([]namedPruner(nil), h.pruners...)
	h.mu.Unlock()

	var (
		g     errgroup.Group
		total atomic.Int64
	)
	g.SetLimit(4)
	for _, np := range pruners {
		np := np
		g.Go(func() error {
			n := np.p.Prune()
			if n > 0 {
				h.logger.Printf("cache: pruned %d expired entries from %s", n, np.name)
			}
			total.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()
	return int(total.Load())
}
