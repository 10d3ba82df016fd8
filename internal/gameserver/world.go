package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/game/hunt"
	"github.com/miniisland/island/internal/protocol"
)

// handleUpdate records a movement report and relays it to the other sessions
// in the mover's map. Sessions in other maps never see it.
func (s *Server) handleUpdate(msg string) {
	upd, err := protocol.ParseUpdate(msg)
	if err != nil {
		s.logger.Debug("malformed update", zap.Error(err))
		return
	}
	if err := s.registry.UpdatePosition(upd.Username, upd.X, upd.Y, upd.Dir); err != nil {
		s.logger.Debug("update for unknown session", zap.String("username", upd.Username))
		return
	}
	snap, ok := s.registry.Find(upd.Username)
	if !ok {
		return
	}
	s.router.ToMapExcept(snap.Map, upd.Username, msg)
}

// handleTeleportToMap moves a player between maps: position and map are
// updated, the arrival is announced, the mover receives the destination
// roster and skins, and hunt participation is adjusted on both ends.
func (s *Server) handleTeleportToMap(ctx context.Context, msg string) {
	tp, err := protocol.ParseTeleport(msg)
	if err != nil {
		s.logger.Debug("malformed teleport", zap.Error(err))
		return
	}

	oldMap, err := s.registry.SetPositionAndMap(tp.Username, tp.Map, tp.X, tp.Y)
	if err != nil {
		s.logger.Debug("teleport for unknown session", zap.String("username", tp.Username))
		return
	}

	// Peers in every map get the raw sentence so they can move the sprite
	// across maps; the NewClient broadcast introduces the mover to clients
	// that had not seen it yet.
	s.router.ToAllExcept(tp.Username, msg)

	snap, _ := s.registry.Find(tp.Username)
	s.router.ToAllExcept(tp.Username, protocol.NewClient(
		tp.Username, snap.X, snap.Y, snap.Dir, snap.ID, snap.Map,
	))
	s.sendRoster(tp.Username, tp.Map)
	s.syncSkins(ctx, tp.Username, tp.Map)

	if oldMap == hunt.MapName && tp.Map != hunt.MapName {
		s.hunt.PlayerLeft()
	}
	if tp.Map == hunt.MapName && oldMap != hunt.MapName {
		s.hunt.PlayerEntered(tp.Username)
	}
}

// handleRespawn marks a downed player alive again.
func (s *Server) handleRespawn(msg string) {
	username, err := protocol.ParseRespawn(msg)
	if err != nil {
		s.logger.Debug("malformed respawn", zap.Error(err))
		return
	}
	if err := s.registry.SetAlive(username, true); err != nil {
		s.logger.Debug("respawn for unknown session", zap.String("username", username))
		return
	}
	s.router.ToAllExcept(username, msg)
}

// handleBulletCollision settles a player-versus-player hit: the shooter
// gains points, the victim loses points and is marked dead, and the hit is
// relayed for the clients to animate. A hit on an already-dead victim is
// dropped so one kill cannot be scored twice.
func (s *Server) handleBulletCollision(ctx context.Context, msg string) {
	bc, err := protocol.ParseBulletCollision(msg)
	if err != nil {
		s.logger.Debug("malformed bullet collision", zap.Error(err))
		return
	}

	victim, ok := s.registry.Find(bc.Victim)
	if !ok || !victim.Alive {
		return
	}
	if err := s.registry.SetAlive(bc.Victim, false); err != nil {
		return
	}

	if _, err := s.accounts.AddPoints(ctx, bc.Shooter, 10); err != nil {
		s.logger.Warn("crediting shooter", zap.String("username", bc.Shooter), zap.Error(err))
	}
	if _, err := s.accounts.AddPoints(ctx, bc.Victim, -10); err != nil {
		s.logger.Warn("debiting victim", zap.String("username", bc.Victim), zap.Error(err))
	}

	s.router.ToAll(msg)
	s.broadcastLeaderboard(ctx)
}

// handleRemove announces and removes a session by its numeric id. Sessions
// are resolved to a username first so the wrong player can never be evicted
// when ids shift.
func (s *Server) handleRemove(msg string) {
	id, err := protocol.ParseRemove(msg)
	if err != nil {
		s.logger.Debug("malformed remove", zap.Error(err))
		return
	}
	snap, ok := s.registry.FindByID(id)
	if !ok {
		s.logger.Debug("remove for unknown session id", zap.Int("id", id))
		return
	}

	s.router.ToAll(msg)
	s.removeSession(snap.Username, snap.Map)
}

// handleExit removes a session by username and tells everyone it left.
func (s *Server) handleExit(msg string) {
	username, err := protocol.ParseExit(msg)
	if err != nil {
		s.logger.Debug("malformed exit", zap.Error(err))
		return
	}
	s.removeSession(username, "")
	s.router.ToAll(protocol.Exit(username))
}

// removeSession drops a session from the registry and adjusts hunt
// participation. mapName may be passed when the caller already holds a
// snapshot; empty means look it up.
func (s *Server) removeSession(username, mapName string) {
	snap, err := s.registry.Remove(username)
	if err != nil {
		return
	}
	if mapName == "" {
		mapName = snap.Map
	}

	s.authMu.Lock()
	for conn, bound := range s.auth {
		if bound == username {
			delete(s.auth, conn)
			break
		}
	}
	s.authMu.Unlock()

	if mapName == hunt.MapName {
		s.hunt.PlayerLeft()
	}
}

// handleMonsterHit forwards a damage report to the hunt controller, which
// owns all monster state.
func (s *Server) handleMonsterHit(msg string) {
	hit, err := protocol.ParseMonsterHit(msg)
	if err != nil {
		s.logger.Debug("malformed monster hit", zap.Error(err))
		return
	}
	s.hunt.MonsterHit(hit.MonsterID, hit.Damage, hit.Shooter)
}

// handleScoreUpdate records an absolute hunt score for a player.
func (s *Server) handleScoreUpdate(msg string) {
	report, err := protocol.ParseScoreUpdate(msg)
	if err != nil {
		s.logger.Debug("malformed score update", zap.Error(err))
		return
	}
	s.hunt.SetScore(report.Username, report.Score)
}
