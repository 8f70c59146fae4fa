package routes

import (
	"errors"
	"log"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/config"
	"github.com/josangl08/Ballers-V3-sub002/internal/handlers"
	"github.com/josangl08/Ballers-V3-sub002/internal/middleware"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
	"github.com/josangl08/Ballers-V3-sub002/internal/repository"
	"github.com/josangl08/Ballers-V3-sub002/internal/services"
	"github.com/josangl08/Ballers-V3-sub002/internal/syncws"
)

// Dependencies carries the long-lived components main owns: their
// lifecycle (auto-sync loop, hub goroutine, calendar client) outlasts
// any single request.
type Dependencies struct {
	Calendar *calendar.Client
	Sessions *services.SessionService
	Auto     *services.AutoSyncService
	Hub      *syncws.Hub
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, deps Dependencies) error {
	if deps.Sessions == nil || deps.Auto == nil || deps.Hub == nil {
		return errors.New("routes: session service, auto-sync service and hub are required")
	}

	userRepo := repository.NewUserRepository(db)
	rosterRepo := repository.NewRosterRepository(db)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	rosterHandler := handlers.NewRosterHandler(rosterRepo)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	syncHandler := handlers.NewSyncHandler(deps.Auto, deps.Calendar, cfg.WebhookBaseURL, cfg.WebhookToken)
	webhookHandler := handlers.NewWebhookHandler(deps.Auto, cfg.WebhookToken, log.Default())
	wsHandler := handlers.NewWSHandler(deps.Hub, cfg.JWTSecret)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if err := registerDocsRoutes(app, cfg); err != nil {
		return err
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	authProtected.Get("/coaches", rosterHandler.ListCoaches)
	authProtected.Get("/players", rosterHandler.ListPlayers)

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Post("/complete-elapsed", sessionHandler.CompleteElapsed)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id", sessionHandler.UpdateSession)
	sessions.Delete("/:id", sessionHandler.DeleteSession)

	syncGroup := authProtected.Group("/sync", middleware.RoleRequired(models.RoleAdmin))
	syncGroup.Post("/run", syncHandler.RunSync)
	syncGroup.Get("/status", syncHandler.SyncStatus)
	syncGroup.Post("/auto/start", syncHandler.StartAutoSync)
	syncGroup.Post("/auto/stop", syncHandler.StopAutoSync)
	syncGroup.Post("/watch", syncHandler.StartWatch)
	syncGroup.Delete("/watch", syncHandler.StopWatch)

	// Google delivers push notifications without bearer auth; the
	// channel token guards this route instead.
	app.Post("/webhooks/calendar", webhookHandler.HandleCalendarNotification)

	app.Use("/ws/sync", wsHandler.WebSocketAuth)
	app.Get("/ws/sync", websocket.New(wsHandler.HandleWebSocket))

	return nil
}
