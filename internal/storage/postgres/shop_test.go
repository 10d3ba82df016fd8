package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniisland/island/internal/storage/postgres"
	"github.com/miniisland/island/internal/testutil"
)

func setupShop(t *testing.T) (*postgres.ShopRepository, string) {
	t.Helper()
	pool := testutil.NewPool(t)
	name := uniqueName("shopper")
	_, err := postgres.NewAccountRepository(pool).Create(context.Background(), name, "", "password123")
	require.NoError(t, err)
	return postgres.NewShopRepository(pool), name
}

func TestShopRepository_SkinsOrderedByPrice(t *testing.T) {
	repo, _ := setupShop(t)

	skins, err := repo.Skins(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, skins)

	for i := 1; i < len(skins); i++ {
		assert.GreaterOrEqual(t, skins[i].Price, skins[i-1].Price)
	}
	assert.True(t, skins[0].Default, "the free default skin sorts first")
}

func TestShopRepository_CoinsAndAddCoins(t *testing.T) {
	repo, name := setupShop(t)
	ctx := context.Background()

	coins, err := repo.Coins(ctx, name)
	require.NoError(t, err)
	assert.Zero(t, coins)

	coins, err = repo.AddCoins(ctx, name, 300)
	require.NoError(t, err)
	assert.Equal(t, 300, coins)

	// The balance clamps at zero on over-debit.
	coins, err = repo.AddCoins(ctx, name, -500)
	require.NoError(t, err)
	assert.Zero(t, coins)

	_, err = repo.Coins(ctx, uniqueName("ghost"))
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)
}

func TestShopRepository_BuyDeductsAndAddsToInventory(t *testing.T) {
	repo, name := setupShop(t)
	ctx := context.Background()

	skins, err := repo.Skins(ctx)
	require.NoError(t, err)
	var paid postgres.Skin
	for _, s := range skins {
		if !s.Default {
			paid = s
			break
		}
	}
	require.NotZero(t, paid.ID, "seed catalog must contain a paid skin")

	_, err = repo.AddCoins(ctx, name, paid.Price+50)
	require.NoError(t, err)

	balance, err := repo.Buy(ctx, name, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	owned, err := repo.Owned(ctx, name)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, paid.ID, owned[0].ID)
	assert.False(t, owned[0].Equipped)

	// Buying the same skin again fails without charging.
	_, err = repo.Buy(ctx, name, paid.ID)
	assert.ErrorIs(t, err, postgres.ErrSkinOwned)
	coins, err := repo.Coins(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 50, coins)
}

func TestShopRepository_BuyInsufficientCoins(t *testing.T) {
	repo, name := setupShop(t)
	ctx := context.Background()

	skins, err := repo.Skins(ctx)
	require.NoError(t, err)
	var expensive postgres.Skin
	for _, s := range skins {
		if s.Price > 0 {
			expensive = s
		}
	}
	require.NotZero(t, expensive.ID)

	_, err = repo.Buy(ctx, name, expensive.ID)
	assert.ErrorIs(t, err, postgres.ErrInsufficientCoins)

	owned, err := repo.Owned(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestShopRepository_BuyUnknownSkin(t *testing.T) {
	repo, name := setupShop(t)

	_, err := repo.Buy(context.Background(), name, 999999)
	assert.ErrorIs(t, err, postgres.ErrSkinNotFound)
}

func TestShopRepository_EquipAndEquipped(t *testing.T) {
	repo, name := setupShop(t)
	ctx := context.Background()

	// No skins yet: the fallback folder is reported.
	folder, err := repo.Equipped(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, postgres.DefaultSkinFolder, folder)

	require.NoError(t, repo.GrantDefault(ctx, name))

	folder, err = repo.Equipped(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, postgres.DefaultSkinFolder, folder)

	skins, err := repo.Skins(ctx)
	require.NoError(t, err)
	var paid postgres.Skin
	for _, s := range skins {
		if !s.Default {
			paid = s
			break
		}
	}
	_, err = repo.AddCoins(ctx, name, paid.Price)
	require.NoError(t, err)
	_, err = repo.Buy(ctx, name, paid.ID)
	require.NoError(t, err)

	folder, err = repo.Equip(ctx, name, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, paid.Folder, folder)

	folder, err = repo.Equipped(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, paid.Folder, folder)

	// Exactly one skin stays equipped.
	owned, err := repo.Owned(ctx, name)
	require.NoError(t, err)
	equipped := 0
	for _, s := range owned {
		if s.Equipped {
			equipped++
		}
	}
	assert.Equal(t, 1, equipped)
}

func TestShopRepository_EquipNotOwned(t *testing.T) {
	repo, name := setupShop(t)

	skins, err := repo.Skins(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, skins)

	_, err = repo.Equip(context.Background(), name, skins[len(skins)-1].ID)
	assert.ErrorIs(t, err, postgres.ErrSkinNotOwned)
}

func TestShopRepository_GrantDefaultIsIdempotent(t *testing.T) {
	repo, name := setupShop(t)
	ctx := context.Background()

	require.NoError(t, repo.GrantDefault(ctx, name))
	require.NoError(t, repo.GrantDefault(ctx, name))

	owned, err := repo.Owned(ctx, name)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.True(t, owned[0].Equipped)
}
