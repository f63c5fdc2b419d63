package routes

import (
	"log"
	"net/http"

	"cached-task-api/internal/auth"
	"cached-task-api/internal/handlers"
	"cached-task-api/internal/metrics"
	"cached-task-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Deps is everything the router needs.
type Deps struct {
	Handler     *handlers.Handler
	Tokens      *auth.TokenManager
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Logger      *log.Logger
}

// cors allows the frontend to call the API from another origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRoutes builds the gin router with public, protected and cache admin routes.
func SetupRoutes(d Deps) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), cors())
	if d.Metrics != nil {
		ginRouter.Use(middleware.Metrics(d.Metrics))
		ginRouter.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Server Task Management API is running in Health Check Endpoint",
		})
	})

	h := d.Handler
	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.RateLimiter != nil {
		limit = middleware.RateLimit(d.RateLimiter)
	}

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", limit, h.Login)
	}

	// Protected routes (authentication required); rate limited per user
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(d.Tokens), limit)
	{
		// Task endpoints
		protectedRoutes.GET("/tasks", h.GetTasks)
		protectedRoutes.GET("/tasks/:id", h.GetTaskByID)
		protectedRoutes.POST("/tasks", h.CreateTask)
		protectedRoutes.PUT("/tasks/:id", h.UpdateTask)
		protectedRoutes.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
		protectedRoutes.DELETE("/tasks/:id", h.DeleteTask)
		protectedRoutes.GET("/stats/:userid", h.GetStatsByUser)
		// Users endpoint
		protectedRoutes.GET("/users", h.GetAllUsers)
		// Realtime events
		protectedRoutes.GET("/ws", h.WebSocketHandler)
		// Cache administration
		protectedRoutes.GET("/cache/stats", h.GetCacheStats)
		protectedRoutes.POST("/cache/invalidate", h.InvalidateCache)
		protectedRoutes.DELETE("/cache", h.ClearCaches)
	}

	return ginRouter
}
