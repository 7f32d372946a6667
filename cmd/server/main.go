// Command server runs the geochat HTTP API.
//
//	@title			GeoChat API
//	@version		1.0
//	@description	Location-aware chat backend: nearby users, general and private rooms, invitations and blocking.
//	@BasePath		/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-geochat-backend/internal/auth"
	"github.com/tbourn/go-geochat-backend/internal/config"
	"github.com/tbourn/go-geochat-backend/internal/events"
	httpapi "github.com/tbourn/go-geochat-backend/internal/http"
	"github.com/tbourn/go-geochat-backend/internal/http/handlers"
	"github.com/tbourn/go-geochat-backend/internal/observability"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/services"
	"github.com/tbourn/go-geochat-backend/internal/store"
	"github.com/tbourn/go-geochat-backend/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "go-geochat-backend"))
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("db open")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	if _, err := repo.EnsureGeneralChat(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("general chat")
	}

	stores, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("store open")
	}
	pub := events.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)

	hasher := auth.NewHasher(cfg.Auth.PasswordHasher, cfg.Auth.BcryptCost)
	users := services.NewUserService(db, stores.Sessions, hasher, pub)
	users.RadiusKm = cfg.NearbyRadiusKm

	if !cfg.APIKeyConfigured() {
		log.Warn().Msg("API_KEY is not set; key-protected endpoints will answer AUTH_007")
	}

	h := handlers.New(handlers.Deps{
		Auth:        services.NewAuthService(db, stores.Sessions, hasher, pub),
		Users:       users,
		Chats:       services.NewChatService(db, pub),
		Invitations: services.NewInvitationService(db, stores.Invitations, pub),
		Blocks:      services.NewBlockService(db, pub),
		Poll:        services.NewPollService(db),
		APIKey:      cfg.Auth.APIKey,
	})

	r := gin.New()
	httpapi.RegisterRoutes(r, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("db", cfg.DB.Driver).
			Str("store", cfg.Store.Backend).
			Str("events", events.PublisherMode(pub)).
			Str("events_noop_reason", events.PublisherNoopReason(pub)).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := pub.Close(); err != nil {
		log.Error().Err(err).Msg("events close")
	}
	if err := stores.Close(); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}
