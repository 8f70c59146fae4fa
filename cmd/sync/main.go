package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
	"github.com/josangl08/Ballers-V3-sub002/internal/config"
	"github.com/josangl08/Ballers-V3-sub002/internal/database"
	"github.com/josangl08/Ballers-V3-sub002/internal/repository"
)

// One-shot sync runner for cron jobs and manual operation:
//
//	sync        full cycle (pull, complete elapsed, push)
//	sync push   local changes out only
//	sync pull   calendar changes in only
func main() {
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool := database.PoolSettings{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	}
	if err := database.ConnectDB(ctx, cfg.DBUrl, pool); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	client, err := calendar.NewClient(ctx, cfg.CredentialsFile, cfg.CalendarID)
	if err != nil {
		log.Fatalf("Calendar client: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Invalid TIMEZONE %q, using UTC", cfg.Timezone)
		loc = time.UTC
	}

	engine := calsync.NewEngine(
		repository.NewSyncStore(database.DB),
		client,
		calsync.NewGate(cfg.WorkDayStart, cfg.WorkDayEnd, loc),
		calsync.Window{PastDays: cfg.SyncPastDays, FutureDays: cfg.SyncFutureDays},
		cfg.SyncBatchSize,
		log.Default(),
	)

	var report *calsync.Report
	switch cmd {
	case "run":
		report, err = engine.Run(ctx)
	case "push":
		report, err = engine.Push(ctx)
	case "pull":
		report, err = engine.Pull(ctx)
	default:
		log.Fatalf("Unknown command %q (want run, push or pull)", cmd)
	}
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	log.Println(report.Summary())
	for _, rejection := range report.Rejected {
		log.Printf("rejected %q on %s %s: %s", rejection.Title, rejection.Date, rejection.Time, rejection.Reason)
	}
	for _, warning := range report.Warnings {
		log.Printf("warning %q on %s %s: %v", warning.Title, warning.Date, warning.Time, warning.Warnings)
	}
}
