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
	_ "time/tzdata"

	"github.com/bananalabs-oss/powkie/internal/config"
	"github.com/bananalabs-oss/powkie/internal/database"
	"github.com/bananalabs-oss/powkie/internal/directory"
	"github.com/bananalabs-oss/powkie/internal/editor"
	"github.com/bananalabs-oss/powkie/internal/games"
	"github.com/bananalabs-oss/powkie/internal/geocode"
	"github.com/bananalabs-oss/powkie/internal/lifecycle"
	"github.com/bananalabs-oss/powkie/internal/markers"
	"github.com/bananalabs-oss/powkie/internal/membership"
	"github.com/bananalabs-oss/powkie/internal/metrics"
	"github.com/bananalabs-oss/powkie/internal/profiles"
	"github.com/bananalabs-oss/powkie/internal/router"
	"github.com/bananalabs-oss/powkie/internal/session"
	"github.com/google/uuid"
)

func main() {
	log.Printf("Starting Powkie")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Powkie Configuration:")
	log.Printf("  Host:      %s", cfg.Host)
	log.Printf("  Port:      %s", cfg.Port)
	log.Printf("  Database:  %s", cfg.DatabaseURL)
	log.Printf("  Time zone: %s", cfg.Location)
	log.Printf("  Archive:   every %s", cfg.ArchiveInterval)
	log.Printf("  Capacity:  enforced=%t", cfg.EnforceMaxPlayers)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	m := metrics.New()

	if cfg.MapboxToken == "" {
		log.Printf("MAPBOX_TOKEN not set; creating or moving games will fail")
	}
	var geocoder geocode.Geocoder = geocode.NewMapbox(cfg.MapboxToken, cfg.MapboxBaseURL, m)
	if cfg.RedisURL != "" {
		rdb, err := geocode.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		geocoder = geocode.NewCache(geocoder, rdb, cfg.GeocodeCacheTTL, m)
	}

	profileStore := profiles.NewStore(db)
	dir := directory.New(db, cfg.Location)
	ledger := membership.NewLedger(db, profileStore, cfg.EnforceMaxPlayers, m)
	archiver := lifecycle.NewArchiver(db, cfg.Location, m)
	layer := markers.NewLayer()
	markerSync := markers.NewSynchronizer(layer, m)
	markerSync.OnSelect(func(id uuid.UUID) {
		log.Printf("[Markers] Selected game %s", id)
	})

	refresher := lifecycle.NewRefresher(archiver, dir, markerSync, cfg.ArchiveInterval)
	go refresher.Start(ctx)

	sessCfg := session.Config{
		Secret:        []byte(cfg.JWTSecret),
		CookieName:    cfg.SessionCookie,
		AllowedDomain: cfg.AllowedEmailDomain,
	}

	r := router.Setup(db, sessCfg, cfg.ServiceToken, router.Handlers{
		Games: games.NewHandler(games.Deps{
			Directory:  dir,
			Ledger:     ledger,
			Archiver:   archiver,
			Editor:     editor.New(db, geocoder),
			Markers:    markerSync,
			Layer:      layer,
			RosterPoll: cfg.RosterPollInterval,
		}),
		Profiles: profiles.NewHandler(profileStore),
	}, m)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("Powkie listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down Powkie...")

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Printf("Powkie stopped")
}
