package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtwatch-ingest/api"
	"github.com/linesmerrill/courtwatch-ingest/api/handlers"
	"github.com/linesmerrill/courtwatch-ingest/config"
	"github.com/linesmerrill/courtwatch-ingest/databases"
	"github.com/linesmerrill/courtwatch-ingest/ingest"
	"github.com/linesmerrill/courtwatch-ingest/scheduler"
)

func main() {
	_ = godotenv.Load()
	cfg := config.New()

	client, err := databases.NewClient(cfg)
	if err != nil {
		zap.S().Fatalw("failed to create mongo client", "error", err)
	}
	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		zap.S().Fatalw("failed to connect to mongo", "error", err)
	}
	db := databases.NewDatabase(cfg, client)

	deviceDB := databases.NewDeviceDatabase(db)
	notifyLogDB := databases.NewNotificationLogDatabase(db)
	watchlistDB := databases.NewWatchlistDatabase(db)
	historyDB := databases.NewCaseHistoryDatabase(db)
	statisticsDB := databases.NewCaseStatisticsDatabase(db)
	currentCourtDB := databases.NewCurrentCourtDatabase(db)
	snapshotDB := databases.NewCourtSnapshotDatabase(db)
	lockDB := databases.NewSchedulerLockDatabase(db)

	var cache ingest.ConditionalCache
	if cfg.RedisURL != "" {
		cache = ingest.NewRedisCache(cfg.RedisURL)
	} else {
		cache = ingest.NewMemoryCache()
	}

	photoMirror, err := ingest.NewPhotoMirror(cfg.CloudinaryURL)
	if err != nil {
		zap.S().Errorw("photo mirroring disabled: failed to init cloudinary client", "error", err)
	}

	var gateway ingest.PushGateway
	if cfg.Push.Mode == "fcm" {
		fcm, err := ingest.NewFCMGateway(cfg.Push)
		if err != nil {
			zap.S().Fatalw("failed to init fcm push gateway", "error", err)
		}
		gateway = fcm
	} else {
		gateway = ingest.NewExpoGateway()
	}

	socketServer := handlers.InitializeSocketIO()
	broadcaster := ingest.NewSocketIOBroadcaster(socketServer)

	delta := ingest.NewDeltaEngine(currentCourtDB)
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := delta.Seed(seedCtx); err != nil {
		zap.S().Errorw("failed to seed delta engine from durable state", "error", err)
	}
	seedCancel()

	pipeline := &ingest.Pipeline{
		Fetcher:     ingest.NewFetcher(cfg.CourtBaseURL, cfg.CourtXHRURL, cache),
		Parser:      ingest.NewParser(cfg.CourtBaseURL),
		Delta:       delta,
		Historian:   ingest.NewHistorian(historyDB, statisticsDB),
		Watchlist:   ingest.NewWatchlistProcessor(watchlistDB),
		Gateway:     gateway,
		Broadcaster: broadcaster,
		PhotoMirror: photoMirror,
		DeviceDB:    deviceDB,
		NotifyLogDB: notifyLogDB,
	}

	if cfg.EnableScraper {
		sched := scheduler.New(pipeline, lockDB, snapshotDB, currentCourtDB, cfg)
		sched.Start()
		defer sched.Stop()
	} else {
		zap.S().Info("scraper disabled via ENABLE_SCRAPER=false")
	}

	app := &handlers.App{
		Pipeline: pipeline,
		LockDB:   lockDB,
		CourtDB:  currentCourtDB,
		SnapDB:   snapshotDB,
	}
	app.Router = app.New()
	app.Router.Use(api.TimeoutMiddleware(20 * time.Second))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: app.Router,
	}

	go func() {
		zap.S().Infow("courtwatch-ingest is up and running", "port", cfg.Port, "baseUrl", cfg.BaseUrl)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalw("http server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zap.S().Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("error during http server shutdown", "error", err)
	}
}
