package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniisland/island/internal/storage/postgres"
	"github.com/miniisland/island/internal/testutil"
)

func TestHistoryRepository_SaveBattleResultAggregatesStats(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewHistoryRepository(pool)
	ctx := context.Background()
	name := uniqueName("fighter")

	require.NoError(t, repo.SaveBattleResult(ctx, name, 120, 3, 12))
	require.NoError(t, repo.SaveBattleResult(ctx, name, 80, 1, 8))

	var games, gold, kills, highest int
	err := pool.QueryRow(ctx,
		`SELECT total_battle_games, total_battle_gold, total_battle_kills, highest_battle_gold
		 FROM player_stats WHERE username = $1`, name,
	).Scan(&games, &gold, &kills, &highest)
	require.NoError(t, err)
	assert.Equal(t, 2, games)
	assert.Equal(t, 200, gold)
	assert.Equal(t, 4, kills)
	assert.Equal(t, 120, highest)
}

func TestHistoryRepository_SaveMazeResultAggregatesStats(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewHistoryRepository(pool)
	ctx := context.Background()
	name := uniqueName("runner")

	require.NoError(t, repo.SaveMazeResult(ctx, name, 500, 30, true, 75))
	require.NoError(t, repo.SaveMazeResult(ctx, name, 200, 10, false, 10))

	var games, wins, score, highest, coins int
	err := pool.QueryRow(ctx,
		`SELECT total_maze_games, total_maze_wins, total_maze_score, highest_maze_score, total_coins_collected
		 FROM player_stats WHERE username = $1`, name,
	).Scan(&games, &wins, &score, &highest, &coins)
	require.NoError(t, err)
	assert.Equal(t, 2, games)
	assert.Equal(t, 1, wins)
	assert.Equal(t, 700, score)
	assert.Equal(t, 500, highest)
	assert.Equal(t, 40, coins)
}

func TestHistoryRepository_TopScoresBestPerPlayer(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewHistoryRepository(pool)
	ctx := context.Background()
	ace := uniqueName("ace")
	rookie := uniqueName("rookie")

	require.NoError(t, repo.SaveHuntResult(ctx, ace, 900, 90))
	require.NoError(t, repo.SaveHuntResult(ctx, ace, 400, 40))
	require.NoError(t, repo.SaveHuntResult(ctx, rookie, 100, 10))

	scores, err := repo.TopScores(ctx, postgres.ModeHunt, 50)
	require.NoError(t, err)

	byName := make(map[string]int, len(scores))
	for i, s := range scores {
		byName[s.Username] = s.Score
		if i > 0 {
			assert.LessOrEqual(t, s.Score, scores[i-1].Score)
		}
	}
	assert.Equal(t, 900, byName[ace], "only the best score per player is listed")
	assert.Equal(t, 100, byName[rookie])
}
