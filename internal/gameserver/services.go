package gameserver

import (
	"context"

	"github.com/miniisland/island/internal/storage/postgres"
)

// AccountStore provides the account operations the server needs. Implemented
// by postgres.AccountRepository.
type AccountStore interface {
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
	Create(ctx context.Context, username, email, password string) (postgres.Account, error)
	AddPoints(ctx context.Context, username string, delta int) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]postgres.LeaderboardEntry, error)
}

// ShopStore provides the skin catalog, inventory, and coin operations.
// Implemented by postgres.ShopRepository.
type ShopStore interface {
	Skins(ctx context.Context) ([]postgres.Skin, error)
	Coins(ctx context.Context, username string) (int, error)
	AddCoins(ctx context.Context, username string, amount int) (int, error)
	Buy(ctx context.Context, username string, skinID int) (int, error)
	Owned(ctx context.Context, username string) ([]postgres.OwnedSkin, error)
	Equip(ctx context.Context, username string, skinID int) (string, error)
	Equipped(ctx context.Context, username string) (string, error)
	GrantDefault(ctx context.Context, username string) error
}

// HistoryStore records finished matches. Implemented by
// postgres.HistoryRepository.
type HistoryStore interface {
	SaveBattleResult(ctx context.Context, username string, goldEarned, kills, pointsEarned int) error
	SaveMazeResult(ctx context.Context, username string, score, coinsCollected int, won bool, pointsEarned int) error
	SaveHuntResult(ctx context.Context, username string, score, pointsEarned int) error
}
