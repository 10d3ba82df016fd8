package testutil

import (
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	sharedMu        sync.Mutex
	sharedContainer *PostgresContainer
)

// NewPool returns a pool connected to a process-wide shared PostgreSQL
// container with the schema applied and the skin catalog seeded. Tests
// share the database, so they must use unique usernames.
//
// Precondition: Docker must be available.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedContainer == nil {
		sharedContainer = startPostgresContainer(t)
		sharedContainer.ApplyMigrations(t)
		sharedContainer.SeedSkins(t)
	}
	return sharedContainer.RawPool
}
