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
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/forum-service/internal/config"
	"github.com/vasiliy-maslov/forum-service/internal/db"
	"github.com/vasiliy-maslov/forum-service/internal/handler"
	"github.com/vasiliy-maslov/forum-service/internal/transport"
	"github.com/vasiliy-maslov/forum-service/internal/user"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Msg("Forum service starting...")

	if cfg.Postgres.MigrationsPath != "" {
		if err := db.ApplyMigrations(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := db.New(connectCtx, cfg.Postgres)
	connectCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	forumHandler := handler.NewForumHandler(pg, handler.NewServicesFactory(user.Options{
		VerifyPassword: cfg.Auth.VerifyPassword,
	}))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      transport.NewRouter(forumHandler, pg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return
	}

	log.Info().Msg("Forum service stopped gracefully")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.Name).Logger()
}
