package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realty-backend/internal/config"
	"realty-backend/internal/infrastructure/database"
	"realty-backend/internal/infrastructure/logging"
	"realty-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	migrate := flag.Bool("migrate", false, "run database migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create failed")
	}

	// Verify connections before serving
	if db != nil {
		if err := (&database.Pinger{DB: db}).Ping(); err != nil {
			log.Fatal().Err(err).Msg("Postgres connection failed")
		}
		log.Info().Msg("Postgres connected")
		if *migrate {
			if err := database.AutoMigrate(db); err != nil {
				log.Fatal().Err(err).Msg("migration failed")
			}
			log.Info().Msg("migrations applied")
		}
	}
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	log.Info().Msg("Redis connected")

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	_ = rdb.Close()
}
