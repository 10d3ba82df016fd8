package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniisland/island/internal/storage/postgres"
	"github.com/miniisland/island/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestAccountRepository_CreateAndAuthenticate(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()
	name := uniqueName("user")

	created, err := repo.Create(ctx, name, name+"@example.com", "password123")
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(0))
	assert.Equal(t, name, created.Username)
	assert.Zero(t, created.Points)
	assert.Zero(t, created.Coins)

	authed, err := repo.Authenticate(ctx, name, "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)
}

func TestAccountRepository_CreateDuplicate(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()
	name := uniqueName("user")

	_, err := repo.Create(ctx, name, "", "password123")
	require.NoError(t, err)

	_, err = repo.Create(ctx, name, "", "otherpassword")
	assert.ErrorIs(t, err, postgres.ErrAccountExists)
}

func TestAccountRepository_AuthenticateWrongPassword(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()
	name := uniqueName("user")

	_, err := repo.Create(ctx, name, "", "password123")
	require.NoError(t, err)

	_, err = repo.Authenticate(ctx, name, "wrong")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)
}

func TestAccountRepository_AuthenticateUnknownUser(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))

	_, err := repo.Authenticate(context.Background(), uniqueName("ghost"), "password")
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)
}

func TestAccountRepository_Exists(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()
	name := uniqueName("user")

	exists, err := repo.Exists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Create(ctx, name, "", "password123")
	require.NoError(t, err)

	exists, err = repo.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountRepository_AddPoints(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()
	name := uniqueName("user")
	_, err := repo.Create(ctx, name, "", "password123")
	require.NoError(t, err)

	points, err := repo.AddPoints(ctx, name, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, points)

	points, err = repo.AddPoints(ctx, name, -10)
	require.NoError(t, err)
	assert.Equal(t, 40, points)

	// Points clamp at zero rather than going negative.
	points, err = repo.AddPoints(ctx, name, -100)
	require.NoError(t, err)
	assert.Zero(t, points)

	_, err = repo.AddPoints(ctx, uniqueName("ghost"), 10)
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)
}

func TestAccountRepository_LeaderboardOrdersByPoints(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()

	low := uniqueName("low")
	high := uniqueName("high")
	for _, name := range []string{low, high} {
		_, err := repo.Create(ctx, name, "", "password123")
		require.NoError(t, err)
	}
	_, err := repo.AddPoints(ctx, low, 10)
	require.NoError(t, err)
	_, err = repo.AddPoints(ctx, high, 10000)
	require.NoError(t, err)

	entries, err := repo.Leaderboard(ctx, 100)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, high, entries[0].Username)
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i].Points, entries[i-1].Points)
	}
}
