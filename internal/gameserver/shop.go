package gameserver

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/game/session"
	"github.com/miniisland/island/internal/protocol"
	"github.com/miniisland/island/internal/storage/postgres"
)

// Shop actions understood by handleShopRequest.
const (
	shopActionGetSkins    = "GetSkins"
	shopActionGetCoins    = "GetCoins"
	shopActionBuy         = "Buy"
	shopActionGetMySkins  = "GetMySkins"
	shopActionEquip       = "Equip"
	shopActionGetEquipped = "GetEquipped"
)

// handleShopRequest serves the in-game skin shop. Every action requires an
// authenticated connection; the catalog actions are reads, Buy and Equip
// mutate inventory, and Equip is additionally announced to everyone so the
// new look shows up immediately.
func (s *Server) handleShopRequest(ctx context.Context, conn session.Conn, msg string) {
	req, err := protocol.ParseShop(msg)
	if err != nil {
		s.logger.Debug("malformed shop request", zap.Error(err))
		return
	}

	username, ok := s.usernameFor(conn)
	if !ok {
		s.sendTo(conn, protocol.ShopError("Not logged in"))
		return
	}

	switch req.Action {
	case shopActionGetSkins:
		s.shopGetSkins(ctx, conn)
	case shopActionGetCoins:
		s.shopGetCoins(ctx, conn, username)
	case shopActionBuy:
		s.shopBuy(ctx, conn, username, req.Arg)
	case shopActionGetMySkins:
		s.shopGetMySkins(ctx, conn, username)
	case shopActionEquip:
		s.shopEquip(ctx, conn, username, req.Arg)
	case shopActionGetEquipped:
		s.shopGetEquipped(ctx, conn, username)
	default:
		s.sendTo(conn, protocol.ShopError("Unknown action"))
	}
}

func (s *Server) shopGetSkins(ctx context.Context, conn session.Conn) {
	skins, err := s.shop.Skins(ctx)
	if err != nil {
		s.logger.Warn("loading skin catalog", zap.Error(err))
		s.sendTo(conn, protocol.ShopError("Server error"))
		return
	}
	items := make([]protocol.SkinItem, 0, len(skins))
	for _, sk := range skins {
		items = append(items, protocol.SkinItem{
			ID:          sk.ID,
			Name:        sk.Name,
			Description: sk.Description,
			Price:       sk.Price,
			Folder:      sk.Folder,
			Default:     sk.Default,
		})
	}
	s.sendTo(conn, protocol.SkinsList(items))
}

func (s *Server) shopGetCoins(ctx context.Context, conn session.Conn, username string) {
	coins, err := s.shop.Coins(ctx, username)
	if err != nil {
		s.logger.Warn("loading coins", zap.String("username", username), zap.Error(err))
		s.sendTo(conn, protocol.ShopError("Server error"))
		return
	}
	s.sendTo(conn, protocol.PlayerCoins(coins))
}

func (s *Server) shopBuy(ctx context.Context, conn session.Conn, username, arg string) {
	skinID, err := strconv.Atoi(arg)
	if err != nil {
		s.sendTo(conn, protocol.ShopError("Unknown skin"))
		return
	}

	balance, err := s.shop.Buy(ctx, username, skinID)
	if err != nil {
		coins, coinsErr := s.shop.Coins(ctx, username)
		if coinsErr != nil {
			coins = 0
		}
		switch {
		case errors.Is(err, postgres.ErrSkinNotFound):
			s.sendTo(conn, protocol.BuyResult(false, "Unknown skin", coins))
		case errors.Is(err, postgres.ErrSkinOwned):
			s.sendTo(conn, protocol.BuyResult(false, "Already owned", coins))
		case errors.Is(err, postgres.ErrInsufficientCoins):
			s.sendTo(conn, protocol.BuyResult(false, "Not enough coins", coins))
		default:
			s.logger.Warn("buying skin", zap.String("username", username), zap.Error(err))
			s.sendTo(conn, protocol.BuyResult(false, "Server error", coins))
		}
		return
	}
	s.sendTo(conn, protocol.BuyResult(true, "Purchased", balance))
	s.shopGetMySkins(ctx, conn, username)
}

func (s *Server) shopGetMySkins(ctx context.Context, conn session.Conn, username string) {
	owned, err := s.shop.Owned(ctx, username)
	if err != nil {
		s.logger.Warn("loading inventory", zap.String("username", username), zap.Error(err))
		s.sendTo(conn, protocol.ShopError("Server error"))
		return
	}
	items := make([]protocol.PlayerSkin, 0, len(owned))
	for _, sk := range owned {
		items = append(items, protocol.PlayerSkin{
			ID:          sk.ID,
			Name:        sk.Name,
			Description: sk.Description,
			Folder:      sk.Folder,
			Equipped:    sk.Equipped,
		})
	}
	s.sendTo(conn, protocol.PlayerSkins(items))
}

func (s *Server) shopEquip(ctx context.Context, conn session.Conn, username, arg string) {
	skinID, err := strconv.Atoi(arg)
	if err != nil {
		s.sendTo(conn, protocol.ShopError("Unknown skin"))
		return
	}

	folder, err := s.shop.Equip(ctx, username, skinID)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrSkinNotOwned):
			s.sendTo(conn, protocol.ShopError("Skin not owned"))
		default:
			s.logger.Warn("equipping skin", zap.String("username", username), zap.Error(err))
			s.sendTo(conn, protocol.ShopError("Server error"))
		}
		return
	}

	s.sendTo(conn, protocol.EquippedSkin(folder))
	s.router.ToAllExcept(username, protocol.ChangeSkin(username, folder))
}

func (s *Server) shopGetEquipped(ctx context.Context, conn session.Conn, username string) {
	folder, err := s.shop.Equipped(ctx, username)
	if err != nil {
		s.logger.Warn("loading equipped skin", zap.String("username", username), zap.Error(err))
		s.sendTo(conn, protocol.ShopError("Server error"))
		return
	}
	s.sendTo(conn, protocol.EquippedSkin(folder))
}

// handleScoreBattleEnd settles a finished battle run: points are a tenth of
// the gold earned, coins are the gold plus five per kill, the result is
// recorded, and the refreshed leaderboard goes to everyone.
func (s *Server) handleScoreBattleEnd(ctx context.Context, conn session.Conn, msg string) {
	result, err := protocol.ParseScoreBattleEnd(msg)
	if err != nil {
		s.logger.Debug("malformed battle result", zap.Error(err))
		return
	}

	points := result.Gold / 10
	coins := result.Gold + result.Kills*5
	s.settleMatch(ctx, conn, result.Username, points, coins, func() error {
		return s.history.SaveBattleResult(ctx, result.Username, result.Gold, result.Kills, points)
	})
}

// handleMazeEnd settles a finished maze run: points are a twentieth of the
// score with a 50-point win bonus, coins are the coins collected with a
// 25-coin win bonus.
func (s *Server) handleMazeEnd(ctx context.Context, conn session.Conn, msg string) {
	result, err := protocol.ParseMazeEnd(msg)
	if err != nil {
		s.logger.Debug("malformed maze result", zap.Error(err))
		return
	}

	points := result.Score / 20
	coins := result.CoinsCollected
	if result.Won {
		points += 50
		coins += 25
	}
	s.settleMatch(ctx, conn, result.Username, points, coins, func() error {
		return s.history.SaveMazeResult(ctx, result.Username, result.Score, result.CoinsCollected, result.Won, points)
	})
}

// settleMatch applies the shared end-of-match tail: record history, credit
// points and coins, refresh the leaderboard for everyone, and report the
// new coin balance to the player who finished.
func (s *Server) settleMatch(ctx context.Context, conn session.Conn, username string, points, coins int, record func() error) {
	if err := record(); err != nil {
		s.logger.Warn("recording match result", zap.String("username", username), zap.Error(err))
	}
	if points != 0 {
		if _, err := s.accounts.AddPoints(ctx, username, points); err != nil {
			s.logger.Warn("crediting points", zap.String("username", username), zap.Error(err))
		}
	}
	balance, err := s.shop.AddCoins(ctx, username, coins)
	if err != nil {
		s.logger.Warn("crediting coins", zap.String("username", username), zap.Error(err))
		balance, _ = s.shop.Coins(ctx, username)
	}

	s.broadcastLeaderboard(ctx)
	s.sendTo(conn, protocol.PlayerCoins(balance))
}
