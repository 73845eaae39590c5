// Package testutil provides test helpers for container-backed integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/tactics/internal/config"
	"github.com/cory-johannsen/tactics/internal/storage/postgres"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresCreds = "tactics_test"
)

// PostgresContainer is a throwaway PostgreSQL server for one test.
type PostgresContainer struct {
	Pool    *postgres.Pool
	RawPool *pgxpool.Pool
	Config  config.DatabaseConfig
}

// NewPostgresContainer starts PostgreSQL in Docker and connects to it. The
// container and pool are released by t.Cleanup. Tests are skipped in -short
// mode.
//
// Precondition: Docker must be available.
// Postcondition: Returns a connected container, or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	ctx := context.Background()
	start := time.Now()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresCreds,
				"POSTGRES_PASSWORD": postgresCreds,
				"POSTGRES_DB":       postgresCreds,
			},
			// The server restarts once after initdb, so the line appears twice.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("testutil: starting %s: %v", postgresImage, err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("testutil: container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("testutil: container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            postgresCreds,
		Password:        postgresCreds,
		Name:            postgresCreds,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("testutil: connecting: %v", err)
	}
	t.Cleanup(pool.Close)
	t.Logf("postgres ready at %s:%d [%s]", host, cfg.Port, time.Since(start))

	return &PostgresContainer{Pool: pool, RawPool: pool.DB(), Config: cfg}
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string { return pc.Config.DSN() }
