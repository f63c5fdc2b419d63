package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cached-task-api/internal/auth"
	"cached-task-api/internal/cache"
	"cached-task-api/internal/config"
	"cached-task-api/internal/database"
	"cached-task-api/internal/handlers"
	"cached-task-api/internal/metrics"
	"cached-task-api/internal/middleware"
	"cached-task-api/internal/realtime"
	"cached-task-api/internal/routes"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	logger := log.Default()

	db, err := database.Open(cfg.DBPath, cfg.DBLogLevel)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}

	medium, err := statsMedium(cfg, db)
	if err != nil {
		log.Fatal("Failed to prepare cache medium: ", err)
	}

	caches := handlers.NewCaches(handlers.CacheConfig{
		TTL:         cfg.CacheTTL,
		MaxSize:     cfg.CacheMaxSize,
		StatsMedium: medium,
		StatsKey:    cfg.CacheStatsKey,
		Logger:      logger,
	})
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute, 10000)
	m := metrics.NewMetrics("task_api")

	housekeeper := cache.NewHousekeeper(cfg.CachePruneInterval, logger)
	for _, nc := range caches.All() {
		housekeeper.Register(nc.Name, nc.Cache)
		m.Caches.Watch(nc.Name, nc.Cache)
	}
	housekeeper.Register("rate_limiter", limiter)
	m.Caches.Watch("rate_limiter", limiter)
	housekeeper.Start()
	defer housekeeper.Stop()

	router := routes.SetupRoutes(routes.Deps{
		Handler:     handlers.New(db, tokens, realtime.NewHub(), caches, logger),
		Tokens:      tokens,
		Metrics:     m,
		RateLimiter: limiter,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s (cache medium: %s, ttl: %s, max entries: %d)",
			cfg.Addr(), cfg.CacheMedium, cfg.CacheTTL, cfg.CacheMaxSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// statsMedium picks the backing medium for the durable stats cache.
func statsMedium(cfg config.Config, db *gorm.DB) (cache.Medium, error) {
	switch cfg.CacheMedium {
	case config.MediumFile:
		return cache.NewFileMedium(cfg.CacheDir)
	case config.MediumNone:
		return nil, nil
	default:
		return database.NewKVMedium(db), nil
	}
}
