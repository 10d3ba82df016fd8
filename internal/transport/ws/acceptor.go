// Package ws accepts WebSocket game connections and pumps their messages
// into the dispatcher, one read goroutine per client.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/game/session"
)

// MessageHandler consumes the traffic of connected clients.
// Implementations dispatch each message and clean up on disconnect.
type MessageHandler interface {
	HandleMessage(ctx context.Context, conn session.Conn, msg string)
	HandleDisconnect(conn session.Conn)
}

// Acceptor listens for WebSocket connections on an HTTP port and runs a
// read loop for each client, dispatching every message to a MessageHandler.
type Acceptor struct {
	cfg      config.WebSocketConfig
	handler  MessageHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port and path; handler and logger
// must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with Start.
func NewAcceptor(cfg config.WebSocketConfig, handler MessageHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Game clients connect from file:// and itch-style origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// Start opens the HTTP listener and serves upgrade requests until Stop is
// called. This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Path, a.serveWS)
	server := &http.Server{Handler: mux}

	a.mu.Lock()
	a.listener = listener
	a.server = server
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket clients: %w", err)
	}
	return nil
}

// serveWS upgrades one HTTP request and runs its read loop.
func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("upgrading connection",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	a.wg.Add(1)
	go a.readLoop(NewConn(ws, a.cfg.WriteTimeout))
}

// readLoop pumps messages from one client until it disconnects or the
// acceptor stops.
func (a *Acceptor) readLoop(conn *Conn) {
	defer a.wg.Done()
	start := time.Now()
	addr := conn.RemoteAddr()

	a.logger.Info("client connected",
		zap.String("conn_id", conn.ID()),
		zap.String("remote_addr", addr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			conn.Close()
		case <-ctx.Done():
		}
	}()

	defer func() {
		a.handler.HandleDisconnect(conn)
		conn.Close()
		a.logger.Info("client disconnected",
			zap.String("conn_id", conn.ID()),
			zap.String("remote_addr", addr),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	for {
		msg, err := conn.readMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug("read failed",
					zap.String("remote_addr", addr),
					zap.Error(err),
				)
			}
			return
		}
		msg = strings.TrimRight(msg, "\r\n")
		if msg == "" {
			continue
		}
		a.handler.HandleMessage(ctx, conn, msg)
	}
}

// Stop gracefully stops the acceptor, closing the listener and waiting for
// all read loops to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	close(a.quit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("shutting down http server", zap.Error(err))
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet
// listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
