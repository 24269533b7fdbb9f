package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/cache"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/config"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/database"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/feed"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/queue"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/routes"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	chatws "github.com/AyeshaaMaalik/WhatsappChatApp/internal/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := config.NewLogger(cfg)
	if !cfg.EnvFileLoaded {
		log.Debug().Msg("no .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := config.WatchLogLevel(ctx, cfg.ConfigFile, log); err != nil {
			log.Warn().Err(err).Msg("config file watch disabled")
		}
	}()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal().Msg("DB_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DBUrl, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// 3. Feed, realtime hub and optional backends
	notifier := feed.NewNotifier(feed.NewPgListener(pool), repository.FeedChannel, log)
	go notifier.Run(ctx)
	store := feed.NewStore(pool, notifier)

	hub := chatws.NewHub()
	go hub.Run(ctx)

	var appCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, lookups are uncached and verification is disabled")
		} else {
			appCache = redisCache
			defer redisCache.Close()
		}
	}

	var storage services.StorageService
	if cfg.StorageEnabled() {
		storage = services.NewSupabaseStorageService(
			cfg.SupabaseURL,
			cfg.SupabaseBucket,
			cfg.SupabaseServiceKey,
			cfg.DownloadCacheDir,
		)
	} else {
		log.Warn().Msg("supabase storage is not configured, attachments and avatars are disabled")
	}

	var janitor chatsync.BlobJanitor
	if cfg.RedisURL != "" && storage != nil {
		client, err := queue.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create task client")
		}
		defer client.Close()
		janitor = client

		worker, err := queue.NewWorker(cfg.RedisURL, cfg.WorkerConcurrency, storage, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create task worker")
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error().Err(err).Msg("task worker stopped")
			}
		}()
	}

	// 4. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if err := routes.RegisterRoutes(app, routes.Dependencies{
		Config:  cfg,
		DB:      pool,
		Feed:    store,
		Hub:     hub,
		Cache:   appCache,
		Storage: storage,
		Janitor: janitor,
		Log:     log,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to register routes")
	}

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	// 5. Start Server
	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("server failed")
	}
}
