package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/teleconsult/internal/adapters/memory"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	"github.com/zatekoja/teleconsult/migrations"
	"github.com/zatekoja/teleconsult/pkg/config"
	"github.com/zatekoja/teleconsult/pkg/secrets"
)

func main() {
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.App.Env)

	if vaultErr != nil {
		log.Fatal().Err(vaultErr).Str("path", vaultResult.Path).Msg("failed to load secrets from Vault")
	}
	if vaultResult.Enabled {
		log.Info().Str("path", vaultResult.Path).Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("loaded secrets from Vault")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := pgClient.Migrate(ctx, migrations.Files); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Warn().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				notifications,
				consultations,
				appointments,
				doctors,
				patients
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	dialect := goqu.Dialect("postgres")
	now := time.Now().UTC()

	for _, d := range memory.DemoDoctors() {
		query, args, err := dialect.Insert("doctors").
			Rows(goqu.Record{
				"user_id":        d.UserID,
				"first_name":     d.FirstName,
				"last_name":      d.LastName,
				"email":          d.Email,
				"specialization": d.Specialization,
				"created_at":     now,
			}).
			OnConflict(goqu.DoNothing()).
			ToSQL()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build doctor insert")
		}
		if _, err := pgClient.DB().ExecContext(ctx, query, args...); err != nil {
			log.Error().Err(err).Str("doctor", d.FullName()).Msg("failed to seed doctor")
		}
	}

	for _, p := range memory.DemoPatients() {
		query, args, err := dialect.Insert("patients").
			Rows(goqu.Record{
				"user_id":    p.UserID,
				"first_name": p.FirstName,
				"last_name":  p.LastName,
				"email":      p.Email,
				"created_at": now,
			}).
			OnConflict(goqu.DoNothing()).
			ToSQL()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build patient insert")
		}
		if _, err := pgClient.DB().ExecContext(ctx, query, args...); err != nil {
			log.Error().Err(err).Str("patient", p.FullName()).Msg("failed to seed patient")
		}
	}

	log.Info().
		Int("doctors", len(memory.DemoDoctors())).
		Int("patients", len(memory.DemoPatients())).
		Msg("seeding completed")
}
