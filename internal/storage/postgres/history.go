package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Game mode identifiers recorded in the history table.
const (
	ModeBattle = "battle"
	ModeMaze   = "maze"
	ModeHunt   = "hunt"
)

// TopScore is one row of a per-mode best-score listing.
type TopScore struct {
	Username string
	Score    int
}

// HistoryRepository records finished matches and aggregates player stats.
type HistoryRepository struct {
	db *pgxpool.Pool
}

// NewHistoryRepository creates a HistoryRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// SaveBattleResult records one finished score-battle round and folds it
// into the player's aggregate stats.
func (r *HistoryRepository) SaveBattleResult(ctx context.Context, username string, goldEarned, kills, pointsEarned int) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO game_history (username, game_mode, score, kills, points_earned)
		 VALUES ($1, $2, $3, $4, $5)`,
		username, ModeBattle, goldEarned, kills, pointsEarned,
	); err != nil {
		return fmt.Errorf("inserting battle result: %w", err)
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO player_stats (username, total_battle_games, total_battle_gold, total_battle_kills, highest_battle_gold)
		 VALUES ($1, 1, $2, $3, $2)
		 ON CONFLICT (username) DO UPDATE SET
		   total_battle_games  = player_stats.total_battle_games + 1,
		   total_battle_gold   = player_stats.total_battle_gold + EXCLUDED.total_battle_gold,
		   total_battle_kills  = player_stats.total_battle_kills + EXCLUDED.total_battle_kills,
		   highest_battle_gold = GREATEST(player_stats.highest_battle_gold, EXCLUDED.highest_battle_gold),
		   last_played         = now()`,
		username, goldEarned, kills,
	); err != nil {
		return fmt.Errorf("updating battle stats: %w", err)
	}
	return nil
}

// SaveMazeResult records one finished maze round and folds it into the
// player's aggregate stats.
func (r *HistoryRepository) SaveMazeResult(ctx context.Context, username string, score, coinsCollected int, won bool, pointsEarned int) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO game_history (username, game_mode, score, coins_collected, won, points_earned)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		username, ModeMaze, score, coinsCollected, won, pointsEarned,
	); err != nil {
		return fmt.Errorf("inserting maze result: %w", err)
	}

	win := 0
	if won {
		win = 1
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO player_stats (username, total_maze_games, total_maze_wins, total_maze_score, highest_maze_score, total_coins_collected)
		 VALUES ($1, 1, $2, $3, $3, $4)
		 ON CONFLICT (username) DO UPDATE SET
		   total_maze_games      = player_stats.total_maze_games + 1,
		   total_maze_wins       = player_stats.total_maze_wins + EXCLUDED.total_maze_wins,
		   total_maze_score      = player_stats.total_maze_score + EXCLUDED.total_maze_score,
		   highest_maze_score    = GREATEST(player_stats.highest_maze_score, EXCLUDED.highest_maze_score),
		   total_coins_collected = player_stats.total_coins_collected + EXCLUDED.total_coins_collected,
		   last_played           = now()`,
		username, win, score, coinsCollected,
	); err != nil {
		return fmt.Errorf("updating maze stats: %w", err)
	}
	return nil
}

// SaveHuntResult records one player's final hunt score.
func (r *HistoryRepository) SaveHuntResult(ctx context.Context, username string, score, pointsEarned int) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO game_history (username, game_mode, score, points_earned)
		 VALUES ($1, $2, $3, $4)`,
		username, ModeHunt, score, pointsEarned,
	); err != nil {
		return fmt.Errorf("inserting hunt result: %w", err)
	}
	return nil
}

// TopScores returns the best score per player for one game mode, highest
// first, limited to limit rows.
func (r *HistoryRepository) TopScores(ctx context.Context, gameMode string, limit int) ([]TopScore, error) {
	rows, err := r.db.Query(ctx,
		`SELECT username, MAX(score) AS best_score
		 FROM game_history
		 WHERE game_mode = $1
		 GROUP BY username
		 ORDER BY best_score DESC
		 LIMIT $2`,
		gameMode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top scores: %w", err)
	}
	defer rows.Close()

	var scores []TopScore
	for rows.Next() {
		var s TopScore
		if err := rows.Scan(&s.Username, &s.Score); err != nil {
			return nil, fmt.Errorf("scanning top score row: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading top score rows: %w", err)
	}
	return scores, nil
}
