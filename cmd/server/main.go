// Package main is the entry point for the Sign Tools API server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/Shimizu-Technology/sign-tools-api/internal/config"
	"github.com/Shimizu-Technology/sign-tools-api/internal/database"
	"github.com/Shimizu-Technology/sign-tools-api/internal/handlers"
	"github.com/Shimizu-Technology/sign-tools-api/internal/middleware"
	"github.com/Shimizu-Technology/sign-tools-api/internal/router"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/blob"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/render"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/rendercache"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/stamper"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/webhook"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/worker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 Sign Tools API %s starting...", Version)

	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	log.Printf("📋 Config loaded: port=%s, workers=%d, gin_mode=%s, max_upload=%dMB", cfg.Port, cfg.WorkerCount, cfg.GinMode, cfg.MaxUploadMB)

	os.Setenv("GIN_MODE", cfg.GinMode)

	// Step 2: Connect to Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✅ Database connected")

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Step 3: Blob storage for template PDFs
	blobs, err := blob.New(afero.NewOsFs(), cfg.BlobDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to open blob storage: %v", err)
	}
	log.Printf("✅ Blob storage at %s", cfg.BlobDir)

	// Step 4: Insert notifications for second-device signatures
	inserts, err := database.NewInsertListener(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to listen for inserts: %v", err)
	}
	defer inserts.Close()

	// Step 5: Render cache (optional)
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	cache, err := rendercache.New(startCtx, cfg.RedisURL, cfg.RenderCacheTTL)
	cancelStart()
	if err != nil {
		log.Printf("⚠️  Render cache disabled: %v", err)
		cache = nil
	} else if cache == nil {
		log.Println("⚠️  No render cache configured (set REDIS_URL to cache stamped PDFs)")
	}
	defer cache.Close()

	// Step 6: Webhooks, then the worker pool that renders and notifies
	hooks := webhook.New(db)
	defer hooks.Shutdown()

	renderer := render.New(db, blobs, stamper.New(), cache)
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, renderer, hooks)
	wp.Start()
	defer wp.Stop()

	// Step 7: Setup HTTP Router
	h := handlers.NewHandler(handlers.Deps{
		Store:          db,
		Blobs:          blobs,
		Renderer:       renderer,
		Worker:         wp,
		Cache:          cache,
		Inserts:        inserts,
		Webhooks:       hooks,
		JWTSecret:      cfg.JWTSecret,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		SessionTTL:     cfg.SessionTTL,
	})
	defer h.Close()

	rateLimiter := middleware.NewRateLimiter(cfg.DefaultRateLimit)
	defer rateLimiter.Stop()

	r := router.Setup(h, db, rateLimiter, cfg.JWTSecret, cfg.AllowedOrigins)

	// Step 8: Start the HTTP Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads up to MAX_UPLOAD_MB
		// No WriteTimeout: signing event streams stay open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://localhost:%s", cfg.Port)
		log.Printf("📖 Health check: http://localhost:%s/api/v1/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Step 9: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("🛑 Received signal %v, shutting down gracefully...", sig)

	// End interactive sessions first so open event streams return.
	h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("👋 Server stopped. Goodbye!")
}
