package gameserver

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/game/session"
	"github.com/miniisland/island/internal/protocol"
	"github.com/miniisland/island/internal/storage/postgres"
)

// handleLogin verifies credentials and binds the connection to the account.
// A second login for an already-online account is rejected so one identity
// cannot hold two sessions.
func (s *Server) handleLogin(ctx context.Context, conn session.Conn, msg string) {
	creds, err := protocol.ParseLogin(msg)
	if err != nil {
		s.logger.Debug("malformed login", zap.Error(err))
		return
	}

	if _, online := s.registry.Find(creds.Username); online {
		s.sendTo(conn, protocol.LoginResult(false, "User already logged in"))
		return
	}

	if _, err := s.accounts.Authenticate(ctx, creds.Username, creds.Password); err != nil {
		if errors.Is(err, postgres.ErrInvalidCredentials) || errors.Is(err, postgres.ErrAccountNotFound) {
			s.sendTo(conn, protocol.LoginResult(false, "Invalid username or password"))
			return
		}
		s.logger.Warn("authenticating account", zap.String("username", creds.Username), zap.Error(err))
		s.sendTo(conn, protocol.LoginResult(false, "Server error"))
		return
	}

	s.bindAuth(conn, creds.Username)
	s.sendTo(conn, protocol.LoginResult(true, "Welcome"))
	s.logger.Info("player authenticated", zap.String("username", creds.Username))
}

// handleRegister creates a new account.
func (s *Server) handleRegister(ctx context.Context, conn session.Conn, msg string) {
	reg, err := protocol.ParseRegister(msg)
	if err != nil {
		s.logger.Debug("malformed register", zap.Error(err))
		return
	}

	if _, err := s.accounts.Create(ctx, reg.Username, reg.Email, reg.Password); err != nil {
		if errors.Is(err, postgres.ErrAccountExists) {
			s.sendTo(conn, protocol.RegisterResult(false, "Username already taken"))
			return
		}
		s.logger.Warn("creating account", zap.String("username", reg.Username), zap.Error(err))
		s.sendTo(conn, protocol.RegisterResult(false, "Server error"))
		return
	}

	s.sendTo(conn, protocol.RegisterResult(true, "Account created"))
	s.logger.Info("account created", zap.String("username", reg.Username))
}

// handleHello spawns the player into the lobby and synchronizes state in
// both directions: the newcomer learns who is already online and what they
// wear, everyone else learns about the newcomer.
func (s *Server) handleHello(ctx context.Context, conn session.Conn, msg string) {
	username, err := protocol.ParseHello(msg)
	if err != nil {
		s.logger.Debug("malformed hello", zap.Error(err))
		return
	}

	snap, err := s.registry.Register(username, conn, DefaultSpawnX, DefaultSpawnY, DefaultSpawnDir, LobbyMap)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyConnected) {
			s.sendTo(conn, protocol.LoginResult(false, "User already logged in"))
			return
		}
		s.logger.Warn("registering session", zap.String("username", username), zap.Error(err))
		return
	}
	s.bindAuth(conn, username)

	if err := s.shop.GrantDefault(ctx, username); err != nil {
		s.logger.Warn("granting default skin", zap.String("username", username), zap.Error(err))
	}

	s.sendTo(conn, protocol.AssignedID(snap.ID, username))
	s.router.ToAllExcept(username, protocol.NewClient(
		username, snap.X, snap.Y, snap.Dir, snap.ID, snap.Map,
	))
	s.syncSkins(ctx, username, LobbyMap)
	s.sendLeaderboard(ctx, username)
	s.sendRoster(username, LobbyMap)

	s.logger.Info("player joined",
		zap.String("username", username),
		zap.Int("session_id", snap.ID),
	)
}

// handleExitAuth drops the connection's authentication and closes it. The
// client sends this from the login screen, before any session exists.
func (s *Server) handleExitAuth(conn session.Conn) {
	s.unbindAuth(conn)
	if err := conn.Close(); err != nil {
		s.logger.Debug("closing connection", zap.Error(err))
	}
}

// sendTo writes directly to a connection that may not yet have a session.
func (s *Server) sendTo(conn session.Conn, msg string) {
	if err := conn.Send(msg); err != nil {
		s.logger.Debug("direct send failed", zap.Error(err))
	}
}
