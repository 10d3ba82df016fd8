// Package gameserver is the message-dispatch core of the island server: it
// authenticates connections, routes every inbound protocol message to its
// handler, and coordinates the session registry, broadcast router, hunt
// controller, and persistence stores.
package gameserver

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/game/broadcast"
	"github.com/miniisland/island/internal/game/hunt"
	"github.com/miniisland/island/internal/game/maze"
	"github.com/miniisland/island/internal/game/rng"
	"github.com/miniisland/island/internal/game/session"
	"github.com/miniisland/island/internal/protocol"
)

// Default spawn point for new arrivals, in lobby pixels.
const (
	DefaultSpawnX   = 1645
	DefaultSpawnY   = 754
	DefaultSpawnDir = -1
	LobbyMap        = "lobby"
	MazeMap         = "maze"

	// loadingMap parks a player while the maze payload downloads.
	loadingMap = "Loading"

	leaderboardLimit = 10

	mazeRows = 10
	mazeCols = 20
)

// Server dispatches inbound protocol messages and owns the per-connection
// authentication state. All methods are safe for concurrent use; the
// transport calls HandleMessage from one goroutine per connection.
type Server struct {
	registry *session.Registry
	router   *broadcast.Router
	hunt     *hunt.Controller
	accounts AccountStore
	shop     ShopStore
	history  HistoryStore
	src      rng.Source
	logger   *zap.Logger

	authMu sync.Mutex
	auth   map[session.Conn]string

	mazeMu      sync.Mutex
	currentMaze *maze.Maze
	mazeWon     bool
}

// NewServer creates a Server wired to the given collaborators.
//
// Precondition: all arguments must be non-nil.
// Postcondition: the hunt controller's end-of-match hook is registered to
// persist final scores.
func NewServer(
	registry *session.Registry,
	router *broadcast.Router,
	huntCtrl *hunt.Controller,
	accounts AccountStore,
	shop ShopStore,
	history HistoryStore,
	src rng.Source,
	logger *zap.Logger,
) *Server {
	s := &Server{
		registry: registry,
		router:   router,
		hunt:     huntCtrl,
		accounts: accounts,
		shop:     shop,
		history:  history,
		src:      src,
		logger:   logger,
		auth:     make(map[session.Conn]string),
		mazeWon:  true,
	}
	huntCtrl.OnMatchEnd(s.recordHuntScores)
	return s
}

// HandleMessage routes one inbound message. Malformed or unrecognized
// messages are logged and dropped; a panicking handler is contained so one
// adversarial message cannot take down the process.
func (s *Server) HandleMessage(ctx context.Context, conn session.Conn, msg string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic",
				zap.Any("panic", r),
				zap.String("message", msg),
			)
		}
	}()

	switch {
	case strings.HasPrefix(msg, protocol.PrefixLogin):
		s.handleLogin(ctx, conn, msg)
	case strings.HasPrefix(msg, protocol.PrefixRegister):
		s.handleRegister(ctx, conn, msg)
	case strings.HasPrefix(msg, protocol.PrefixHello):
		s.handleHello(ctx, conn, msg)
	case strings.HasPrefix(msg, protocol.PrefixUpdate):
		s.handleUpdate(msg)
	case strings.HasPrefix(msg, protocol.PrefixTeleportToMap):
		s.handleTeleportToMap(ctx, msg)
	case strings.HasPrefix(msg, protocol.PrefixEnterMaze):
		s.handleEnterMaze(msg)
	case strings.HasPrefix(msg, protocol.PrefixWinMaze):
		s.handleWinMaze(ctx, msg)
	case strings.HasPrefix(msg, protocol.PrefixBulletCollision):
		s.handleBulletCollision(ctx, msg)
	case strings.HasPrefix(msg, protocol.PrefixRespawn):
		s.handleRespawn(msg)
	case strings.HasPrefix(msg, protocol.PrefixChat):
		s.router.ToAll(msg)
	case strings.HasPrefix(msg, protocol.PrefixShot):
		s.router.ToAll(msg)
	case strings.HasPrefix(msg, protocol.PrefixRemove):
		s.handleRemove(msg)
	// "Exit Auth" shares the "Exit" prefix and must be matched first.
	case strings.HasPrefix(msg, protocol.PrefixExitAuth):
		s.handleExitAuth(conn)
	case strings.HasPrefix(msg, protocol.PrefixExit):
		s.handleExit(msg)
	case strings.HasPrefix(msg, protocol.PrefixScoreBattleEnd):
		s.handleScoreBattleEnd(ctx, conn, msg)
	case strings.HasPrefix(msg, protocol.PrefixMazeEnd):
		s.handleMazeEnd(ctx, conn, msg)
	case strings.HasPrefix(msg, protocol.PrefixShop):
		s.handleShopRequest(ctx, conn, msg)
	case strings.HasPrefix(msg, protocol.PrefixSpawnMonster):
		s.router.ToMap(hunt.MapName, msg)
	case strings.HasPrefix(msg, protocol.PrefixMonsterDead):
		s.router.ToMap(hunt.MapName, msg)
	case strings.HasPrefix(msg, protocol.PrefixMonsterHit):
		s.handleMonsterHit(msg)
	case strings.HasPrefix(msg, protocol.PrefixBulletUpdate):
		s.router.ToMap(hunt.MapName, msg)
	case strings.HasPrefix(msg, protocol.PrefixScoreUpdate):
		s.handleScoreUpdate(msg)
	default:
		s.logger.Debug("unrecognized message", zap.String("message", msg))
	}
}

// HandleDisconnect tears down the session bound to conn, if any, and tells
// everyone else the player left.
func (s *Server) HandleDisconnect(conn session.Conn) {
	s.authMu.Lock()
	username, ok := s.auth[conn]
	delete(s.auth, conn)
	s.authMu.Unlock()
	if !ok {
		return
	}

	snap, err := s.registry.Remove(username)
	if err != nil {
		s.logger.Debug("disconnect for unknown session", zap.String("username", username))
		return
	}

	s.router.ToAll(protocol.Exit(username))
	if snap.Map == hunt.MapName {
		s.hunt.PlayerLeft()
	}
	s.logger.Info("player disconnected", zap.String("username", username))
}

// usernameFor returns the authenticated username bound to conn.
func (s *Server) usernameFor(conn session.Conn) (string, bool) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	username, ok := s.auth[conn]
	return username, ok
}

func (s *Server) bindAuth(conn session.Conn, username string) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.auth[conn] = username
}

func (s *Server) unbindAuth(conn session.Conn) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	delete(s.auth, conn)
}

// recordHuntScores persists every player's final hunt score when a match
// runs to expiry. Leaderboard points are a tenth of the score.
func (s *Server) recordHuntScores(scores map[string]int) {
	ctx := context.Background()
	for username, score := range scores {
		points := score / 10
		if err := s.history.SaveHuntResult(ctx, username, score, points); err != nil {
			s.logger.Warn("saving hunt result",
				zap.String("username", username),
				zap.Error(err),
			)
			continue
		}
		if points > 0 {
			if _, err := s.accounts.AddPoints(ctx, username, points); err != nil {
				s.logger.Warn("crediting hunt points",
					zap.String("username", username),
					zap.Error(err),
				)
			}
		}
	}
	if len(scores) > 0 {
		s.broadcastLeaderboard(ctx)
	}
}

// broadcastLeaderboard sends the persistent points leaderboard to every
// connected player.
func (s *Server) broadcastLeaderboard(ctx context.Context) {
	payload, err := s.leaderboardPayload(ctx)
	if err != nil {
		s.logger.Warn("building leaderboard", zap.Error(err))
		return
	}
	s.router.ToAll(protocol.Leaderboard(payload))
}

// sendLeaderboard sends the persistent points leaderboard to one player.
func (s *Server) sendLeaderboard(ctx context.Context, username string) {
	payload, err := s.leaderboardPayload(ctx)
	if err != nil {
		s.logger.Warn("building leaderboard", zap.Error(err))
		return
	}
	s.router.ToPlayer(username, protocol.Leaderboard(payload))
}

// leaderboardPayload renders the top accounts as ",user:points" pairs.
func (s *Server) leaderboardPayload(ctx context.Context) (string, error) {
	entries, err := s.accounts.Leaderboard(ctx, leaderboardLimit)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(",")
		sb.WriteString(e.Username)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(e.Points))
	}
	return sb.String(), nil
}

// sendRoster sends every session in mapName to the given player as
// NewClient messages, so a map change shows who is already there.
func (s *Server) sendRoster(username, mapName string) {
	for _, snap := range s.registry.InMap(mapName) {
		if snap.Username == username {
			continue
		}
		s.router.ToPlayer(username, protocol.NewClient(
			snap.Username, snap.X, snap.Y, snap.Dir, snap.ID, snap.Map,
		))
	}
}

// syncSkins exchanges equipped-skin messages between the player and the
// other sessions in mapName, in both directions.
func (s *Server) syncSkins(ctx context.Context, username, mapName string) {
	mine, err := s.shop.Equipped(ctx, username)
	if err != nil {
		s.logger.Warn("loading equipped skin", zap.String("username", username), zap.Error(err))
	} else {
		s.router.ToMapExcept(mapName, username, protocol.ChangeSkin(username, mine))
	}

	for _, snap := range s.registry.InMap(mapName) {
		if snap.Username == username {
			continue
		}
		theirs, err := s.shop.Equipped(ctx, snap.Username)
		if err != nil {
			s.logger.Warn("loading equipped skin", zap.String("username", snap.Username), zap.Error(err))
			continue
		}
		s.router.ToPlayer(username, protocol.ChangeSkin(snap.Username, theirs))
	}
}
