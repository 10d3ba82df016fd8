package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/game/maze"
	"github.com/miniisland/island/internal/protocol"
)

// handleEnterMaze parks the player on the loading screen and sends the
// serialized maze. The layout is shared by every runner and only regenerated
// after someone wins, so concurrent runners race through the same maze.
func (s *Server) handleEnterMaze(msg string) {
	username, err := protocol.ParseEnterMaze(msg)
	if err != nil {
		s.logger.Debug("malformed enter maze", zap.Error(err))
		return
	}
	if _, err := s.registry.SetMap(username, loadingMap); err != nil {
		s.logger.Debug("enter maze for unknown session", zap.String("username", username))
		return
	}

	s.mazeMu.Lock()
	if s.mazeWon || s.currentMaze == nil {
		s.currentMaze = maze.Generate(mazeRows, mazeCols, s.src)
		s.mazeWon = false
		s.logger.Info("maze regenerated")
	}
	payload := s.currentMaze.String()
	s.mazeMu.Unlock()

	s.router.ToPlayer(username, protocol.Maze(payload))
}

// handleWinMaze settles a maze victory: the winner returns to the lobby
// with a 50-point bonus, everyone sees the refreshed leaderboard, and all
// remaining runners are pulled out so the next run starts fresh.
func (s *Server) handleWinMaze(ctx context.Context, msg string) {
	username, err := protocol.ParseWinMaze(msg)
	if err != nil {
		s.logger.Debug("malformed win maze", zap.Error(err))
		return
	}

	if _, err := s.registry.SetPositionAndMap(username, LobbyMap, DefaultSpawnX, DefaultSpawnY); err != nil {
		s.logger.Debug("win maze for unknown session", zap.String("username", username))
		return
	}
	snap, _ := s.registry.Find(username)

	s.mazeMu.Lock()
	s.mazeWon = true
	s.mazeMu.Unlock()

	if _, err := s.accounts.AddPoints(ctx, username, 50); err != nil {
		s.logger.Warn("crediting maze win", zap.String("username", username), zap.Error(err))
	}

	s.router.ToAllExcept(username, protocol.NewClient(
		username, snap.X, snap.Y, snap.Dir, snap.ID, snap.Map,
	))
	s.broadcastLeaderboard(ctx)
	s.sendRoster(username, LobbyMap)
	s.syncSkins(ctx, username, LobbyMap)

	// Remaining runners are sent back so nobody finishes a stale maze.
	for _, runner := range s.registry.InMap(MazeMap) {
		s.router.ToPlayer(runner.Username, protocol.TeleportMap(
			runner.Username, LobbyMap, DefaultSpawnX, DefaultSpawnY,
		))
	}

	s.logger.Info("maze won", zap.String("username", username))
}
