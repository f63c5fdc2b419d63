package handlers

import (
	"errors"
	"log"
	"net/http"

	"cached-task-api/internal/auth"
	"cached-task-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler serves the HTTP API. It reads through the query caches and
// invalidates them on every write.
type Handler struct {
	db     *gorm.DB
	tokens *auth.TokenManager
	hub    *realtime.Hub
	caches *Caches
	logger *log.Logger
}

// New returns a Handler. A nil logger means log.Default().
func New(db *gorm.DB, tokens *auth.TokenManager, hub *realtime.Hub, caches *Caches, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		db:     db,
		tokens: tokens,
		hub:    hub,
		caches: caches,
		logger: logger,
	}
}

// Caches returns the query caches the handler reads through.
func (h *Handler) Caches() *Caches {
	return h.caches
}

// requireUser returns the authenticated user ID or writes 401.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return "", false
	}
	return userID, true
}

// lookupFailed maps a failed cached lookup to 404 or 500.
func (h *Handler) lookupFailed(c *gin.Context, err error, notFound, failed string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	h.logger.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": failed})
}

// publish pushes evt to the user's websocket clients.
func (h *Handler) publish(userID string, evt realtime.Event) {
	if err := h.hub.Publish(userID, evt); err != nil {
		h.logger.Printf("publish %s for %s: %v", evt.Type, evt.TaskID, err)
	}
}
