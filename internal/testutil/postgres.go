//go:build integration

// Package testutil starts disposable PostgreSQL instances for integration
// tests. Build with -tags integration; Docker must be available.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/amora/dating-service/internal/config"
	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/migrations"
)

const (
	postgresImage = "postgres:16-alpine"
	dbName        = "dating_test"
	dbUser        = "dating"
	dbPassword    = "dating"
)

// StartPostgres runs a PostgreSQL container, applies every migration and
// returns a connected pool. The container is removed when t finishes.
func StartPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:              host,
		Port:              port.Int(),
		User:              dbUser,
		Password:          dbPassword,
		Name:              dbName,
		SSLMode:           config.SSLModeDisable,
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}

	logger := zerolog.Nop()
	db, err := database.New(ctx, cfg, logger)
	require.NoError(t, err, "failed to connect to PostgreSQL container")
	t.Cleanup(db.Close)

	migrator, err := database.NewMigratorFS(db, migrations.FS, logger)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	return db
}
