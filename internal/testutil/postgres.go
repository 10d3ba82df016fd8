// Package testutil provides test helpers including container management
// and test client utilities.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	pc := startPostgresContainer(t)
	t.Cleanup(func() {
		pc.Pool.Close()
		_ = pc.container.Terminate(context.Background())
	})
	return pc
}

// startPostgresContainer starts a container without registering cleanup.
// Shared containers are reaped by the testcontainers sidecar when the test
// process exits.
func startPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	return &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment. The
// statements mirror the files under migrations/.
//
// Precondition: Pool must be connected.
// Postcondition: All game tables exist in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id            BIGSERIAL    PRIMARY KEY,
			username      VARCHAR(64)  NOT NULL UNIQUE,
			email         VARCHAR(254) NOT NULL DEFAULT '',
			password_hash TEXT         NOT NULL,
			points        INTEGER      NOT NULL DEFAULT 0,
			coins         INTEGER      NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts (username);

		CREATE TABLE IF NOT EXISTS skins (
			id          SERIAL       PRIMARY KEY,
			name        VARCHAR(64)  NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			price       INTEGER      NOT NULL,
			skin_folder VARCHAR(64)  NOT NULL,
			is_default  BOOLEAN      NOT NULL DEFAULT FALSE,
			is_active   BOOLEAN      NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS player_skins (
			id          BIGSERIAL   PRIMARY KEY,
			username    VARCHAR(64) NOT NULL REFERENCES accounts (username) ON DELETE CASCADE,
			skin_id     INTEGER     NOT NULL REFERENCES skins (id),
			is_equipped BOOLEAN     NOT NULL DEFAULT FALSE,
			acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (username, skin_id)
		);

		CREATE TABLE IF NOT EXISTS game_history (
			id              BIGSERIAL   PRIMARY KEY,
			username        VARCHAR(64) NOT NULL,
			game_mode       VARCHAR(16) NOT NULL,
			score           INTEGER     NOT NULL DEFAULT 0,
			kills           INTEGER     NOT NULL DEFAULT 0,
			coins_collected INTEGER     NOT NULL DEFAULT 0,
			won             BOOLEAN     NOT NULL DEFAULT FALSE,
			points_earned   INTEGER     NOT NULL DEFAULT 0,
			played_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS player_stats (
			username              VARCHAR(64) PRIMARY KEY,
			total_battle_games    INTEGER     NOT NULL DEFAULT 0,
			total_battle_gold     INTEGER     NOT NULL DEFAULT 0,
			total_battle_kills    INTEGER     NOT NULL DEFAULT 0,
			highest_battle_gold   INTEGER     NOT NULL DEFAULT 0,
			total_maze_games      INTEGER     NOT NULL DEFAULT 0,
			total_maze_wins       INTEGER     NOT NULL DEFAULT 0,
			total_maze_score      INTEGER     NOT NULL DEFAULT 0,
			highest_maze_score    INTEGER     NOT NULL DEFAULT 0,
			total_coins_collected INTEGER     NOT NULL DEFAULT 0,
			last_played           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	_, err := pc.RawPool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// SeedSkins inserts the default skin catalog used by shop tests.
func (pc *PostgresContainer) SeedSkins(t *testing.T) {
	t.Helper()
	_, err := pc.RawPool.Exec(context.Background(), `
		INSERT INTO skins (name, description, price, skin_folder, is_default) VALUES
			('Islander',     'The classic island look.',           0,   'default', TRUE),
			('Forest Scout', 'Green hood, blends into the trees.', 100, 'scout',   FALSE),
			('Knight',       'Polished plate armor.',              500, 'knight',  FALSE)
	`)
	if err != nil {
		t.Fatalf("seeding skins: %v", err)
	}
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
