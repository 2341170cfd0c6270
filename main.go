package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opencirc/libconsole/internal/activity"
	"github.com/opencirc/libconsole/internal/api"
	"github.com/opencirc/libconsole/internal/config"
	"github.com/opencirc/libconsole/internal/database"
	"github.com/opencirc/libconsole/internal/dispatch"
	"github.com/opencirc/libconsole/internal/gateway"
	"github.com/opencirc/libconsole/internal/logger"
	"github.com/opencirc/libconsole/internal/monitoring"
	"github.com/opencirc/libconsole/internal/session"
	"github.com/opencirc/libconsole/internal/state"
	"github.com/opencirc/libconsole/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Application state: one controller owns the identity, the caches and
	// the derived views. State changes fan out to connected browsers.
	sessions := session.NewStore(db)
	controller := state.NewController(nil, func(event string) {
		hub.Notify(event, "")
	})

	// The gateway pulls the credential from the controller and tears the
	// session down when the catalog API rejects it.
	gw := gateway.New(cfg.LibraryAPIURL, controller.Credential, func() {
		if err := sessions.Clear(); err != nil {
			log.Error().Err(err).Msg("Failed to clear session after credential rejection")
		}
		controller.ResetAll()
	})
	controller.SetGateway(gw)

	// Restore a persisted session from a previous run
	if identity, credential := sessions.Restore(); identity != nil {
		log.Info().Str("username", identity.Username).Str("role", identity.Role).Msg("Restored operator session")
		controller.SetSession(identity, credential)
	}

	recorder := activity.NewRecorder(db)
	dispatcher := dispatch.New(gw, controller, recorder, db)

	// Background janitor: confirmation expiry and activity retention
	janitor, err := monitoring.NewJanitor(dispatcher, recorder, cfg.JanitorSchedule,
		time.Duration(cfg.ActivityMaxAge)*24*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid janitor schedule")
	}
	go janitor.Run()

	// Set up router
	router := api.NewRouter([]byte(cfg.SessionSecret), sessions, controller, dispatcher, recorder, hub)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("api", cfg.LibraryAPIURL).Msg("Console starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down console...")

	janitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Console forced to shutdown")
	}

	log.Info().Msg("Console exiting")
}
