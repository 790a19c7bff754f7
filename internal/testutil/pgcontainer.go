package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// containerImage pins the Postgres version integration tests run against.
const containerImage = "postgres:16-alpine"

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// containerDSN starts a throwaway Postgres container and returns its
// connection string. The container is shared by all tests in the binary
// and reaped by the testcontainers resource reaper after the run.
//
// Tests are skipped when no container runtime is available.
func containerDSN(t *testing.T) string {
	t.Helper()

	containerOnce.Do(func() {
		// testcontainers panics (rather than returning an error) when no
		// container runtime can be detected; convert that into the error
		// path so the skip below fires as documented.
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("start postgres container: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		pg, err := tcpostgres.Run(ctx, containerImage,
			tcpostgres.WithDatabase("fraudshield_test"),
			tcpostgres.WithUsername("fraudshield"),
			tcpostgres.WithPassword("fraudshield"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}
		containerURL, containerErr = pg.ConnectionString(ctx, "sslmode=disable")
	})

	if containerErr != nil {
		t.Skipf("postgres unavailable: %v", containerErr)
	}
	return containerURL
}
