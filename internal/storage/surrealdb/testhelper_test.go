package surrealdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KeshavPeri/tickle/internal/common"
	surreal "github.com/surrealdb/surrealdb.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	surrealOnce    sync.Once
	surrealAddress string
	surrealError   error
)

// startSurrealDB starts one shared SurrealDB container per test process.
// Tests run only with TICKLE_TEST_DOCKER=true.
func startSurrealDB(t *testing.T) string {
	t.Helper()
	if os.Getenv("TICKLE_TEST_DOCKER") != "true" {
		t.Skip("set TICKLE_TEST_DOCKER=true to run SurrealDB container tests")
	}

	surrealOnce.Do(func() {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			surrealError = fmt.Errorf("start SurrealDB container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			surrealError = fmt.Errorf("get SurrealDB host: %w", err)
			return
		}
		mappedPort, err := container.MappedPort(ctx, "8000/tcp")
		if err != nil {
			container.Terminate(ctx)
			surrealError = fmt.Errorf("get SurrealDB port: %w", err)
			return
		}
		surrealAddress = fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port())
	})

	if surrealError != nil {
		t.Skipf("SurrealDB container unavailable: %v", surrealError)
	}
	return surrealAddress
}

// uniqueDatabase sanitises t.Name() since subtests contain "/".
func uniqueDatabase(t *testing.T) string {
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
}

// testManager returns a Manager on a fresh database.
func testManager(t *testing.T) *Manager {
	t.Helper()
	address := startSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(address)
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": "root",
		"pass": "root",
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}
	if err := db.Use(ctx, "tickle_test", uniqueDatabase(t)); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	mgr, err := newManagerWithDB(ctx, db, testLogger())
	if err != nil {
		t.Fatalf("newManagerWithDB: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
