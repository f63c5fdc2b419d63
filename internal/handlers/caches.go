package handlers

import (
	"log"
	"strconv"
	"time"

	"cached-task-api/internal/cache"
	"cached-task-api/internal/models"
)

// Cache names, as reported by the admin endpoints and metrics.
const (
	CacheTaskPages = "task_pages"
	CacheTasks     = "tasks"
	CacheStats     = "stats"
	CacheUsers     = "users"
)

// ManagedCache is the type-independent part of a cache that admin endpoints,
// the housekeeper and metrics work with.
type ManagedCache interface {
	Invalidate(pattern string) int
	Clear()
	Stats() cache.Stats
	Prune() int
	InFlight() int
}

// NamedCache pairs a cache with its public name.
type NamedCache struct {
	Name  string
	Cache ManagedCache
}

// CacheConfig configures the query caches.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int

	// StatsMedium backs the stats cache. Nil keeps it in memory only.
	StatsMedium cache.Medium
	StatsKey    string

	Logger *log.Logger
}

// Caches holds one coalescing cache per kind of expensive read.
type Caches struct {
	TaskPages *cache.Coalescer[models.TaskPage]
	Tasks     *cache.Coalescer[models.Task]
	Stats     *cache.Coalescer[models.StatusCounts]
	Users     *cache.Coalescer[[]models.UserResponse]
}

// NewCaches builds the query caches. Only the stats cache is durable.
func NewCaches(cfg CacheConfig) *Caches {
	opts := cache.Options{TTL: cfg.TTL, MaxSize: cfg.MaxSize}

	var stats cache.Cache[models.StatusCounts]
	if cfg.StatsMedium != nil {
		stats = cache.NewDurableStore[models.StatusCounts](cfg.StatsMedium, cache.DurableOptions{
			Options:    opts,
			StorageKey: cfg.StatsKey,
			Logger:     cfg.Logger,
		})
	} else {
		stats = cache.NewStore[models.StatusCounts](opts)
	}

	return &Caches{
		TaskPages: cache.NewCoalescer[models.TaskPage](cache.NewStore[models.TaskPage](opts)),
		Tasks:     cache.NewCoalescer[models.Task](cache.NewStore[models.Task](opts)),
		Stats:     cache.NewCoalescer[models.StatusCounts](stats),
		Users:     cache.NewCoalescer[[]models.UserResponse](cache.NewStore[[]models.UserResponse](opts)),
	}
}

// All lists every cache in a stable order.
func (c *Caches) All() []NamedCache {
	return []NamedCache{
		{Name: CacheTaskPages, Cache: c.TaskPages},
		{Name: CacheTasks, Cache: c.Tasks},
		{Name: CacheStats, Cache: c.Stats},
		{Name: CacheUsers, Cache: c.Users},
	}
}

// InvalidateTask drops everything a write to taskID can make stale:
// every list page, every cached view of that task and every status tally.
func (c *Caches) InvalidateTask(taskID string) {
	c.TaskPages.Invalidate("tasks:*")
	c.Tasks.Invalidate(taskKeyPattern(taskID))
	c.Stats.Invalidate("stats:*")
}

// InvalidateUsers drops the cached user list.
func (c *Caches) InvalidateUsers() {
	c.Users.Invalidate("users:*")
}

// Invalidate applies pattern to every cache and returns the removed count per cache.
func (c *Caches) Invalidate(pattern string) map[string]int {
	removed := make(map[string]int, 4)
	for _, nc := range c.All() {
		removed[nc.Name] = nc.Cache.Invalidate(pattern)
	}
	return removed
}

// Clear empties every cache.
func (c *Caches) Clear() {
	for _, nc := range c.All() {
		nc.Cache.Clear()
	}
}

// Key builders for each namespace.

func taskPageKey(creator string, page, limit int, sort string) string {
	return "tasks:list:" + creator + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(limit) + ":" + sort
}

func taskKey(taskID, ownerID string) string {
	return "task:" + taskID + ":" + ownerID
}

func taskKeyPattern(taskID string) string {
	return "task:" + taskID + ":*"
}

func statsKey(assigneeID string) string {
	return "stats:" + assigneeID
}

const usersKey = "users:all"
