// Command create-agent registers a back-office account.
//
//	go run ./cmd/create-agent -name "Ada Agent" -email ada@example.com -password '...' [-role admin]
package main

import (
	"context"
	"flag"
	"os"

	"realty-backend/internal/application/auth"
	"realty-backend/internal/config"
	"realty-backend/internal/infrastructure/database"
	"realty-backend/internal/infrastructure/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	name := flag.String("name", "", "full name")
	email := flag.String("email", "", "login email")
	password := flag.String("password", os.Getenv("AGENT_PASSWORD"), "password (or AGENT_PASSWORD)")
	role := flag.String("role", "", "agent or admin (default agent)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logging.Setup(cfg.LogLevel, false)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("no database URL configured")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	u, err := auth.CreateUser(context.Background(), db, auth.CreateUserInput{
		Fullname: *name,
		Email:    *email,
		Password: *password,
		Role:     *role,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create agent failed")
	}
	log.Info().Str("user_id", u.ID.String()).Str("email", u.Email).Str("role", u.Role).Msg("agent created")
}
