package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront-sync/config"
	"github.com/ikkim/storefront-sync/internal/app/controller"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/app/repository"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/db"
	"github.com/ikkim/storefront-sync/internal/events"
	"github.com/ikkim/storefront-sync/internal/middleware"
	"github.com/ikkim/storefront-sync/internal/router"
	"github.com/ikkim/storefront-sync/internal/scheduler"
	"github.com/ikkim/storefront-sync/internal/websocket"
	redispkg "github.com/ikkim/storefront-sync/pkg/redis"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"github.com/ikkim/storefront-sync/pkg/storeapi"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.LogLevel(),
		Format:      cfg.Log.Format,
		EnableColor: true,
	})

	logger.Info("Starting storefront sync", map[string]interface{}{
		"environment":  cfg.Server.Environment,
		"port":         cfg.Server.Port,
		"cache_driver": cfg.Cache.Driver,
		"api_base_url": cfg.API.BaseURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local cache
	cache, closeCache := openCache(cfg)
	defer closeCache()

	// Remote store
	client, err := storeapi.NewClient(storeapi.Config{
		BaseURL:              cfg.API.BaseURL,
		Timeout:              cfg.API.Timeout,
		MaxRetries:           cfg.API.MaxRetries,
		RetryInitialInterval: cfg.API.RetryInitialInterval,
	})
	if err != nil {
		logger.Fatal("Failed to create storefront client", err)
	}

	// Change bus and cross-tab relays
	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("Failed to close change relays", err)
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redispkg.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, cross-process relay and token revocation disabled", map[string]interface{}{
				"error": err.Error(),
			})
			redisClient = nil
		} else {
			defer redisClient.Close()
			bus.AttachRelay(ctx, events.NewRedisRelay(redisClient, cfg.Redis.Channel))
		}
	}

	if cfg.Cache.Driver == config.CacheDriverFile {
		relay, err := events.NewFileWatchRelay(cfg.Cache.Path, map[string]events.Topic{
			repository.CacheFileName(model.CacheKeyCart):     events.CartChanged,
			repository.CacheFileName(model.CacheKeyWishlist): events.WishlistChanged,
			repository.CacheFileName(model.CacheKeySession):  events.SessionChanged,
		})
		if err != nil {
			logger.Warn("File watcher unavailable, cross-process relay disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			bus.AttachRelay(ctx, relay)
		}
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(cache)
	sessionRepo := repository.NewSessionRepository(cache)
	cartRepo := repository.NewCartRepository(cache)
	wishlistRepo := repository.NewWishlistRepository(cache)

	// Initialize services
	var revoker service.TokenRevoker
	if redisClient != nil {
		revoker = redispkg.NewTokenBlacklist(redisClient)
	}
	admin := service.LocalAdmin{
		Email:        cfg.Session.AdminEmail,
		PasswordHash: cfg.Session.AdminPasswordHash,
		TokenSecret:  cfg.Session.TokenSecret,
		TokenExpiry:  cfg.Session.TokenExpiry,
	}

	catalogService := service.NewCatalogService(productRepo, client, cfg.Sync.Timeout)
	sessionService := service.NewSessionService(sessionRepo, client, bus, admin, revoker, cfg.Sync.Timeout)
	cartService := service.NewCartService(cartRepo, catalogService, client, sessionService, bus, cfg.Sync.Timeout)
	wishlistService := service.NewWishlistService(wishlistRepo, catalogService, client, sessionService, bus, cfg.Sync.Timeout)

	// View clients
	hub := websocket.NewHub()
	go hub.Run(ctx)
	detach := hub.Attach(bus)
	defer detach()

	// Periodic refresh
	refreshScheduler := scheduler.NewRefreshScheduler(cfg.Sync.RefreshSchedule, 2*cfg.Sync.Timeout,
		scheduler.RefreshJob{Name: "cart", Refresher: cartService},
		scheduler.RefreshJob{Name: "wishlist", Refresher: wishlistService},
	)
	if err := refreshScheduler.Start(); err != nil {
		logger.Fatal("Failed to start refresh scheduler", err)
	}
	defer refreshScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		controller.NewAuthController(sessionService),
		controller.NewCartController(cartService),
		controller.NewWishlistController(wishlistService),
		controller.NewProductController(catalogService),
		controller.NewEventsController(hub, cfg.CORS.AllowedOrigins),
		middleware.NewSessionMiddleware(sessionService),
		cfg,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": server.Addr,
			"pid":     os.Getpid(),
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
	hub.Wait()

	logger.Info("Server stopped successfully")
}

// openCache returns the configured cache backend and its close func.
func openCache(cfg *config.Config) (repository.CacheRepository, func()) {
	if cfg.Cache.Driver == config.CacheDriverFile {
		cache, err := repository.NewFileCacheRepository(cfg.Cache.Path)
		if err != nil {
			logger.Fatal("Failed to open file cache", err, map[string]interface{}{
				"path": cfg.Cache.Path,
			})
		}
		return cache, func() {}
	}

	database, err := db.Open(&cfg.Cache, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open cache database", err)
	}
	if err := db.Migrate(database); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	return repository.NewCacheRepository(database), func() {
		if err := db.Close(database); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}
}
