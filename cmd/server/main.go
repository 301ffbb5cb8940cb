package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"chatflow/internal/config"
	"chatflow/internal/httpserver"
	"chatflow/internal/logging"
	"chatflow/internal/presence"
	"chatflow/internal/realtime"
	"chatflow/internal/security"
	"chatflow/internal/service"
	"chatflow/internal/store"
	"chatflow/internal/ws"
)

// @title           ChatFlow API
// @version         1.0
// @description     Direct messaging with live presence over websockets.

// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	db, repos, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open database")
	}
	defer db.Close()

	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(0)
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyKeys())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryptor")
	}

	registry := presence.NewRegistry()

	authSvc := service.NewAuthService(repos.Users, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(repos.Users, registry)
	msgSvc := service.NewMessageService(repos.Users, repos.Messages, repos.Conversations, encryptor, registry, log)
	convSvc := service.NewConversationService(repos.Conversations, repos.Users, encryptor, registry)

	lifecycle := realtime.NewManager(registry, authSvc, userSvc, log)
	dispatcher := realtime.NewDispatcher(msgSvc, realtime.NewRelay(registry), log)
	wsHandler := ws.MakeHandler(lifecycle, dispatcher, ws.Options{
		AllowedOrigins:  cfg.AllowedOrigins(),
		SendBuffer:      cfg.WSSendBuffer,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
		PingInterval:    cfg.WSPingInterval,
	}, log)

	router := httpserver.NewRouter(cfg, httpserver.Services{
		Auth:          authSvc,
		Users:         userSvc,
		Messages:      msgSvc,
		Conversations: convSvc,
		WS:            wsHandler,
	}, log)

	// No write timeout: it would cut long-lived websocket connections.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Str("driver", cfg.DBDriver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
