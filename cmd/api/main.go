package main

import (
	"fmt"
	"math/rand"
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

	"github.com/rainfeed/backend/internal/accuracy"
	"github.com/rainfeed/backend/internal/api/handlers"
	"github.com/rainfeed/backend/internal/auth"
	cache "github.com/rainfeed/backend/internal/cache/redis"
	"github.com/rainfeed/backend/internal/feed"
	"github.com/rainfeed/backend/internal/fetcher"
	"github.com/rainfeed/backend/internal/images"
	"github.com/rainfeed/backend/internal/ingestion"
	"github.com/rainfeed/backend/internal/metrics"
	"github.com/rainfeed/backend/internal/middleware/ratelimit"
	"github.com/rainfeed/backend/internal/middleware/security"
	"github.com/rainfeed/backend/internal/middleware/validation"
	"github.com/rainfeed/backend/internal/scoring"
	"github.com/rainfeed/backend/internal/storage/sqlite"
	"github.com/rainfeed/backend/pkg/config"
	appLogger "github.com/rainfeed/backend/pkg/logger"
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

	appLogger.Info("Starting rainfeed API server")

	metrics.Init()

	store, err := sqlite.NewStore(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to open SQLite store", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *cache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = cache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	scorer := scoring.NewClient(
		cfg.Scoring.BaseURL,
		cfg.Scoring.APIKey,
		time.Duration(cfg.Scoring.TimeoutSec)*time.Second,
		cfg.Scoring.Parallelism,
		rng,
	)

	fetcherClient := fetcher.NewClient(
		cfg.Fetcher.ReaderBaseURL,
		time.Duration(cfg.Fetcher.TimeoutSec)*time.Second,
		cacheClient,
	)

	var imageClient *images.Client
	if cfg.Images.APIKey != "" {
		imageClient = images.NewClient(
			cfg.Images.Endpoint,
			cfg.Images.APIKey,
			cfg.Images.Model,
			time.Duration(cfg.Images.TimeoutSec)*time.Second,
		)
	}

	var imageGen ingestion.ImageGenerator
	if imageClient != nil {
		imageGen = imageClient
	}
	processor := ingestion.NewProcessor(store, fetcherClient, imageGen)

	selector := feed.NewSelector(store, rng)
	replenisher := feed.NewReplenisher(store, scorer, selector, rng)
	reader := feed.NewReader(store)
	reporter := accuracy.NewReporter(store)

	if cfg.Auth.SessionSecret == "" {
		appLogger.Fatal("auth.sessionSecret must be set")
	}
	signer := auth.NewSigner(cfg.Auth.SessionSecret)
	authService := auth.NewService(store, signer, cfg.Auth.SessionSecret)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
	app.Use(validation.Middleware(validation.Config{}))

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	authHandler := handlers.NewAuthHandler(authService, signer, cfg.Auth.CookieName)
	articleHandler := handlers.NewArticleHandler(store, processor)
	feedHandler := handlers.NewFeedHandler(reader, replenisher)
	ratingHandler := handlers.NewRatingHandler(store)
	settingsHandler := handlers.NewSettingsHandler(store)
	accuracyHandler := handlers.NewAccuracyHandler(reporter)
	contextHandler := handlers.NewContextHandler(store, scorer, cacheClient)
	imageHandler := handlers.NewImageHandler(imageClient)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Post("/auth", authHandler.HandleAuth)
	api.Get("/auth", authHandler.HandleStatus)
	api.Delete("/auth", authHandler.HandleLogout)

	protected := api.Group("", auth.Middleware(signer, cfg.Auth.CookieName))

	protected.Post("/articles", articleHandler.HandleSave)
	protected.Get("/articles", articleHandler.HandleList)
	protected.Get("/articles/:id", articleHandler.HandleGet)
	protected.Get("/articles/:id/text", articleHandler.HandleText)
	protected.Put("/articles/:id/status", articleHandler.HandleStatus)
	protected.Put("/articles/:id/progress", articleHandler.HandleProgress)
	protected.Delete("/articles/:id", articleHandler.HandleDelete)

	protected.Get("/feed", feedHandler.HandleRead)
	protected.Get("/feed/history", feedHandler.HandleHistory)
	protected.Post("/feed/replenish", feedHandler.HandleReplenish)
	protected.Post("/feed/reroll", feedHandler.HandleReroll)
	protected.Put("/feed/position", feedHandler.HandlePosition)

	protected.Post("/chunks/:id/rate", ratingHandler.HandleRate)
	protected.Get("/chunks/:id/rating", ratingHandler.HandleGet)
	protected.Post("/chunks/:id/context", contextHandler.HandleGenerate)

	protected.Get("/settings", settingsHandler.HandleGet)
	protected.Put("/settings", settingsHandler.HandleUpdate)

	protected.Get("/accuracy", accuracyHandler.HandleReport)

	protected.Post("/images/generate", imageHandler.HandleGenerate)

	protected.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	protected.Get("/ws/context", websocket.New(contextHandler.HandleStream))

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
