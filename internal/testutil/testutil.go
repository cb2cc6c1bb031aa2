// Package testutil runs the llmgate schema in a throwaway postgres for
// repository, service and end to end tests.
package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/llmgate/internal/db"
)

const (
	postgresImage = "postgres:17-alpine"
	testDatabase  = "llmgate-test"
	testUser      = "llmgate"
	testPassword  = "pwd"
)

// RandomPort returns a port on 127.0.0.1 that was free a moment ago.
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	return ln.Addr().(*net.TCPAddr).Port, nil
}

// PostgresContainer is a migrated llmgate database.
// Terminate closes the pool and removes the container.
type PostgresContainer struct {
	DSN       string
	Pool      *pgxpool.Pool
	Terminate func()
}

func requireDocker(t *testing.T) {
	t.Helper()

	out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput()
	if err != nil {
		t.Fatalf("docker daemon is required for llmgate storage tests. Err:%s", out)
	}
}

// StartPostgresContainer fails the test unless the schema is up and the pool
// answers. Callers register Terminate with t.Cleanup.
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()
	requireDocker(t)

	port, err := RandomPort()
	require.NoError(t, err, "no free port for the test database")

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "test database container did not start")

	dsn, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "test database container has no connection string")
	t.Logf("llmgate test database at %v", dsn)

	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "llmgate schema could not be applied")

	return PostgresContainer{
		DSN:  dsn,
		Pool: pool,
		Terminate: func() {
			pool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// WithTx hands testFunc a transaction that is rolled back afterwards, so
// users, prompts and counters created by one subtest never leak into another.
func WithTx(dbtx dbtx, t *testing.T, testFunc func(tx pgx.Tx)) {
	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		require.NoError(t, tx.Rollback(t.Context()))
	}()

	testFunc(tx)
}
