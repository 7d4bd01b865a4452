package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/api/handlers"
	"github.com/sentinelle/backend/internal/cache"
	"github.com/sentinelle/backend/internal/metrics"
	"github.com/sentinelle/backend/internal/service"
	"github.com/sentinelle/backend/internal/storage/sqlite"
	"github.com/sentinelle/backend/pkg/config"
	appLogger "github.com/sentinelle/backend/pkg/logger"
	"github.com/sentinelle/backend/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Sentinelle analysis API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	cacheStore, err := buildCacheStore(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize judgment cache", zap.Error(err))
	}

	// One limiter for the whole process: concurrent batches share the same
	// outbound call budget.
	limiter := ratelimit.New(
		cfg.Engine.RateLimitCalls,
		time.Duration(cfg.Engine.RateLimitWindow)*time.Second,
	)

	batchService := service.NewBatchService(sqliteClient, cacheStore, limiter, cfg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	batchHandler := handlers.NewBatchHandler(batchService)
	statsHandler := handlers.NewStatsHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(batchService)

	api := app.Group("/api/v1")

	api.Post("/batches", batchHandler.StartBatch)
	api.Get("/batches/:id", batchHandler.GetBatch)
	api.Get("/batches/:id/results", batchHandler.GetBatchResults)
	api.Delete("/batches/:id", batchHandler.CancelBatch)

	api.Get("/stats", statsHandler.GetKPIs)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/batches/:id", websocket.New(wsHandler.HandleProgress))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func buildCacheStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisStore(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		)
	}
	return cache.NewMemoryStore(cfg.Cache.MaxEntries), nil
}
