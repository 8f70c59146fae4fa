package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
	"github.com/josangl08/Ballers-V3-sub002/internal/config"
	"github.com/josangl08/Ballers-V3-sub002/internal/database"
	"github.com/josangl08/Ballers-V3-sub002/internal/metrics"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
	"github.com/josangl08/Ballers-V3-sub002/internal/repository"
	"github.com/josangl08/Ballers-V3-sub002/internal/routes"
	"github.com/josangl08/Ballers-V3-sub002/internal/services"
	"github.com/josangl08/Ballers-V3-sub002/internal/syncws"
	"github.com/josangl08/Ballers-V3-sub002/pkg/utils"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Connect to Database
	ctx := context.Background()
	pool := database.PoolSettings{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	}
	if err := database.ConnectDB(ctx, cfg.DBUrl, pool); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	if err := ensureAdminUser(ctx, cfg); err != nil {
		log.Printf("Admin provisioning failed: %v", err)
	}

	// 3. Calendar client. Without credentials the server still serves
	// session CRUD; sync endpoints answer 503.
	var client *calendar.Client
	if cfg.CredentialsFile != "" {
		client, err = calendar.NewClient(ctx, cfg.CredentialsFile, cfg.CalendarID)
		if err != nil {
			log.Printf("Calendar unavailable, sync disabled: %v", err)
			client = nil
		}
	} else {
		log.Println("GOOGLE_CREDENTIALS_FILE not set, sync disabled")
	}

	// 4. Sync stack
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Invalid TIMEZONE %q, using UTC", cfg.Timezone)
		loc = time.UTC
	}
	gate := calsync.NewGate(cfg.WorkDayStart, cfg.WorkDayEnd, loc)
	appLogger := log.Default()

	var locker calsync.Locker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		locker = calsync.NewRedisLocker(rdb, "", 0)
	}

	var auto *services.AutoSyncService
	if client != nil {
		store := repository.NewSyncStore(database.DB)
		engine := calsync.NewEngine(
			store,
			client,
			gate,
			calsync.Window{PastDays: cfg.SyncPastDays, FutureDays: cfg.SyncFutureDays},
			cfg.SyncBatchSize,
			appLogger,
		)
		auto = services.NewAutoSyncService(engine, locker, cfg.SyncInterval, appLogger)
	} else {
		auto = services.NewAutoSyncService(nil, locker, cfg.SyncInterval, appLogger)
	}

	sessionRepo := repository.NewSessionRepository(database.DB)
	rosterRepo := repository.NewRosterRepository(database.DB)
	sessionService := services.NewSessionService(
		database.DB, sessionRepo, rosterRepo, gate, client, appLogger,
	)

	hub := syncws.NewHub()
	go hub.Run()
	auto.OnStart = hub.PublishStarted
	auto.OnComplete = func(trigger string, report *calsync.Report, runErr error) {
		metrics.ObserveRun(trigger, report, runErr)
		hub.PublishReport(trigger, report, runErr)
	}

	// 5. Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"database": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":       "ok",
			"sync_enabled": client != nil,
		})
	})
	if err := routes.RegisterRoutes(app, cfg, database.DB, routes.Dependencies{
		Calendar: client,
		Sessions: sessionService,
		Auto:     auto,
		Hub:      hub,
	}); err != nil {
		log.Fatalf("Failed to register routes: %v", err)
	}

	// 6. Start auto-sync and serve
	if auto.Start() {
		log.Printf("Auto-sync running every %s", cfg.SyncInterval)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		auto.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// ensureAdminUser provisions the first account on an empty users table
// so a fresh deployment can log in without manual SQL.
func ensureAdminUser(ctx context.Context, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	userRepo := repository.NewUserRepository(database.DB)
	count, err := userRepo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	user := &models.User{
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := userRepo.CreateUser(ctx, user); err != nil {
		return err
	}
	log.Printf("Provisioned admin account %s", user.Email)
	return nil
}
