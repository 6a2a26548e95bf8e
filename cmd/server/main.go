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

	"github.com/cristal-orion/superagente/internal/cache"
	"github.com/cristal-orion/superagente/internal/config"
	"github.com/cristal-orion/superagente/internal/httpapi"
	"github.com/cristal-orion/superagente/internal/pricing"
	"github.com/cristal-orion/superagente/internal/quote"
	"github.com/cristal-orion/superagente/internal/store"
	"github.com/cristal-orion/superagente/internal/store/memory"
	pgstore "github.com/cristal-orion/superagente/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	loadCatalog(ctx, repo, cfg.CatalogPath)

	cacheStore := cache.ProjectionCache(cache.NoopProjectionCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisProjectionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	var calc pricing.Calculator
	if cfg.PricingURL != "" {
		calc = pricing.NewClient(cfg.PricingURL)
		log.Printf("calculator: remote (%s)", cfg.PricingURL)
	} else {
		calc = pricing.NewEngine()
		log.Println("calculator: embedded")
	}

	computer := quote.NewComputer(calc, cacheStore, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	sessions := quote.NewManager(computer, time.Duration(cfg.DebounceMillis)*time.Millisecond)
	svc := quote.New(repo, computer, sessions)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("quoting backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// loadCatalog replaces the seeded catalog with the contents of the configured
// catalog file. A missing or malformed file is logged and ignored so the
// server still starts with the built-in offers.
func loadCatalog(ctx context.Context, repo store.Repository, path string) {
	if path == "" {
		return
	}
	items, err := store.LoadCatalogFile(path)
	if err != nil {
		log.Printf("catalog file %s unusable (%v), keeping existing catalog", path, err)
		return
	}
	if err := repo.ReplaceCatalog(ctx, items); err != nil {
		log.Printf("catalog replace failed (%v), keeping existing catalog", err)
		return
	}
	log.Printf("catalog: %d offers loaded from %s", len(items), path)
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
