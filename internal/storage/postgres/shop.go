package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSkinFolder is the sprite folder used when a player has no skin
// equipped yet.
const DefaultSkinFolder = "default"

// Skin is one purchasable catalog entry.
type Skin struct {
	ID          int
	Name        string
	Description string
	Price       int
	Folder      string
	Default     bool
}

// OwnedSkin is a skin in a player's inventory.
type OwnedSkin struct {
	ID          int
	Name        string
	Description string
	Folder      string
	Equipped    bool
}

// ErrSkinNotFound is returned when the requested skin is not in the catalog.
var ErrSkinNotFound = errors.New("skin not found")

// ErrSkinOwned is returned when buying a skin the player already owns.
var ErrSkinOwned = errors.New("skin already owned")

// ErrSkinNotOwned is returned when equipping a skin the player does not own.
var ErrSkinNotOwned = errors.New("skin not owned")

// ErrInsufficientCoins is returned when the player cannot afford a purchase.
var ErrInsufficientCoins = errors.New("insufficient coins")

// ShopRepository provides skin catalog, inventory and coin operations.
type ShopRepository struct {
	db *pgxpool.Pool
}

// NewShopRepository creates a ShopRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewShopRepository(db *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{db: db}
}

// Skins returns the active catalog ordered by price ascending.
func (r *ShopRepository) Skins(ctx context.Context) ([]Skin, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, price, skin_folder, is_default
		 FROM skins WHERE is_active ORDER BY price`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying skins: %w", err)
	}
	defer rows.Close()

	var skins []Skin
	for rows.Next() {
		var s Skin
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Folder, &s.Default); err != nil {
			return nil, fmt.Errorf("scanning skin row: %w", err)
		}
		skins = append(skins, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading skin rows: %w", err)
	}
	return skins, nil
}

// Coins returns the player's coin balance.
//
// Postcondition: Returns the balance or ErrAccountNotFound.
func (r *ShopRepository) Coins(ctx context.Context, username string) (int, error) {
	var coins int
	err := r.db.QueryRow(ctx,
		`SELECT coins FROM accounts WHERE username = $1`,
		username,
	).Scan(&coins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("querying coins: %w", err)
	}
	return coins, nil
}

// AddCoins credits amount to the player's balance. Negative amounts debit,
// but the balance never drops below zero.
//
// Postcondition: Returns the new balance, or ErrAccountNotFound.
func (r *ShopRepository) AddCoins(ctx context.Context, username string, amount int) (int, error) {
	var coins int
	err := r.db.QueryRow(ctx,
		`UPDATE accounts SET coins = GREATEST(coins + $1, 0)
		 WHERE username = $2
		 RETURNING coins`,
		amount, username,
	).Scan(&coins)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("updating coins: %w", err)
	}
	return coins, nil
}

// Buy purchases a skin for the player inside a single transaction: the
// price is deducted and the skin added to the inventory atomically.
//
// Postcondition: Returns the new coin balance, or one of ErrSkinNotFound,
// ErrSkinOwned, ErrInsufficientCoins with no state change.
func (r *ShopRepository) Buy(ctx context.Context, username string, skinID int) (int, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("beginning purchase: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var price int
	err = tx.QueryRow(ctx,
		`SELECT price FROM skins WHERE id = $1 AND is_active`,
		skinID,
	).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSkinNotFound
		}
		return 0, fmt.Errorf("querying skin price: %w", err)
	}

	var owned bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM player_skins WHERE username = $1 AND skin_id = $2)`,
		username, skinID,
	).Scan(&owned)
	if err != nil {
		return 0, fmt.Errorf("checking ownership: %w", err)
	}
	if owned {
		return 0, ErrSkinOwned
	}

	var balance int
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET coins = coins - $1
		 WHERE username = $2 AND coins >= $1
		 RETURNING coins`,
		price, username,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientCoins
		}
		return 0, fmt.Errorf("deducting coins: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO player_skins (username, skin_id) VALUES ($1, $2)`,
		username, skinID,
	); err != nil {
		return 0, fmt.Errorf("inserting inventory row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing purchase: %w", err)
	}
	return balance, nil
}

// Owned returns the player's skin inventory.
func (r *ShopRepository) Owned(ctx context.Context, username string) ([]OwnedSkin, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.name, s.description, s.skin_folder, ps.is_equipped
		 FROM player_skins ps
		 JOIN skins s ON s.id = ps.skin_id
		 WHERE ps.username = $1
		 ORDER BY s.id`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("querying player skins: %w", err)
	}
	defer rows.Close()

	var skins []OwnedSkin
	for rows.Next() {
		var s OwnedSkin
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Folder, &s.Equipped); err != nil {
			return nil, fmt.Errorf("scanning player skin row: %w", err)
		}
		skins = append(skins, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading player skin rows: %w", err)
	}
	return skins, nil
}

// Equip marks the given owned skin as the player's active one, unequipping
// any other, and returns its sprite folder.
//
// Postcondition: Returns the folder of the equipped skin, or ErrSkinNotOwned.
func (r *ShopRepository) Equip(ctx context.Context, username string, skinID int) (string, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("beginning equip: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var folder string
	err = tx.QueryRow(ctx,
		`SELECT s.skin_folder FROM player_skins ps
		 JOIN skins s ON s.id = ps.skin_id
		 WHERE ps.username = $1 AND ps.skin_id = $2`,
		username, skinID,
	).Scan(&folder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSkinNotOwned
		}
		return "", fmt.Errorf("querying owned skin: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE player_skins SET is_equipped = FALSE WHERE username = $1`,
		username,
	); err != nil {
		return "", fmt.Errorf("unequipping skins: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE player_skins SET is_equipped = TRUE WHERE username = $1 AND skin_id = $2`,
		username, skinID,
	); err != nil {
		return "", fmt.Errorf("equipping skin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing equip: %w", err)
	}
	return folder, nil
}

// Equipped returns the sprite folder of the player's active skin, falling
// back to DefaultSkinFolder when none is equipped.
func (r *ShopRepository) Equipped(ctx context.Context, username string) (string, error) {
	var folder string
	err := r.db.QueryRow(ctx,
		`SELECT s.skin_folder FROM player_skins ps
		 JOIN skins s ON s.id = ps.skin_id
		 WHERE ps.username = $1 AND ps.is_equipped`,
		username,
	).Scan(&folder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultSkinFolder, nil
		}
		return "", fmt.Errorf("querying equipped skin: %w", err)
	}
	return folder, nil
}

// GrantDefault gives the player the default catalog skin, equipped, if the
// player owns no skins yet. Idempotent.
func (r *ShopRepository) GrantDefault(ctx context.Context, username string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning grant: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM player_skins WHERE username = $1`,
		username,
	).Scan(&count); err != nil {
		return fmt.Errorf("counting player skins: %w", err)
	}
	if count > 0 {
		return nil
	}

	var skinID int
	err = tx.QueryRow(ctx,
		`SELECT id FROM skins WHERE is_default LIMIT 1`,
	).Scan(&skinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSkinNotFound
		}
		return fmt.Errorf("querying default skin: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO player_skins (username, skin_id, is_equipped)
		 VALUES ($1, $2, TRUE)`,
		username, skinID,
	); err != nil {
		return fmt.Errorf("granting default skin: %w", err)
	}

	return tx.Commit(ctx)
}
