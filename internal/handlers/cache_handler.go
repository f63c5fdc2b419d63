package handlers

import (
	"net/http"

	"cached-task-api/internal/cache"

	"github.com/gin-gonic/gin"
)

// InvalidateCacheRequest names the keys to drop. A pattern without * is a prefix.
type InvalidateCacheRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// CacheStatsResponse describes one cache.
type CacheStatsResponse struct {
	cache.Stats
	InFlight int `json:"inFlight"`
}

// GetCacheStats handles GET /api/cache/stats
func (h *Handler) GetCacheStats(c *gin.Context) {
	resp := make(map[string]CacheStatsResponse, 4)
	for _, nc := range h.caches.All() {
		resp[nc.Name] = CacheStatsResponse{
			Stats:    nc.Cache.Stats(),
			InFlight: nc.Cache.InFlight(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"caches": resp})
}

// InvalidateCache handles POST /api/cache/invalidate
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req InvalidateCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}

	removed := h.caches.Invalidate(req.Pattern)
	total := 0
	for _, n := range removed {
		total += n
	}
	h.logger.Printf("cache: invalidated %d entries matching %q by %s", total, req.Pattern, c.GetString("username"))

	c.JSON(http.StatusOK, gin.H{
		"pattern": req.Pattern,
		"removed": removed,
		"total":   total,
	})
}

// ClearCaches handles DELETE /api/cache
func (h *Handler) ClearCaches(c *gin.Context) {
	h.caches.Clear()
	h.logger.Printf("cache: all caches cleared by %s", c.GetString("username"))
	c.JSON(http.StatusOK, gin.H{"message": "Caches cleared"})
}
