package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-outbreak-globe/internal/api"
	"github.com/mr1hm/go-outbreak-globe/internal/config"
	"github.com/mr1hm/go-outbreak-globe/internal/fetch"
	"github.com/mr1hm/go-outbreak-globe/internal/logging"
	"github.com/mr1hm/go-outbreak-globe/internal/prefs"
	"github.com/mr1hm/go-outbreak-globe/internal/scene"
	"github.com/mr1hm/go-outbreak-globe/internal/timeaxis"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "upstream", cfg.Upstream.BaseURL)

	store, err := prefs.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize preferences store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := fetch.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	svc := fetch.NewService(client, fetch.TTLs{
		Locations:  cfg.TTL.Locations,
		Arcs:       cfg.TTL.Arcs,
		Detections: cfg.TTL.Detections,
		Waves:      cfg.TTL.Waves,
		Variants:   cfg.TTL.Variants,
	}, cfg.Upstream.PageSize)

	ctrl, err := timeaxis.NewController(time.Now(), cfg.Window.HistoryDays, cfg.Window.ForecastDays)
	if err != nil {
		logging.Fatalf("Failed to build time axis: %v", err)
	}

	pool := fetch.NewPrefetchPool(cfg.Prefetch.Workers, cfg.Prefetch.BufferSize, svc)

	engine := scene.NewEngine(scene.Config{
		FPS:              cfg.Engine.FPS,
		MinPax:           cfg.Engine.MinPax,
		SpreadWindowDays: cfg.Engine.SpreadWindowDays,
		PrefetchRadius:   cfg.Engine.PrefetchRadius,
	}, ctrl, svc, pool)

	if err := engine.Start(ctx); err != nil {
		logging.Fatalf("Failed to start scene engine: %v", err)
	}

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))

	handler := api.NewHandler(engine, store)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
