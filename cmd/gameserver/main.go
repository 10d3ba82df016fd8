// Package main provides the game server binary: it serves WebSocket game
// clients and persists accounts, skins, and match history in PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/game/broadcast"
	"github.com/miniisland/island/internal/game/hunt"
	"github.com/miniisland/island/internal/game/monster"
	"github.com/miniisland/island/internal/game/rng"
	"github.com/miniisland/island/internal/game/session"
	"github.com/miniisland/island/internal/gameserver"
	"github.com/miniisland/island/internal/observability"
	"github.com/miniisland/island/internal/server"
	"github.com/miniisland/island/internal/storage/postgres"
	"github.com/miniisland/island/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("ws_addr", cfg.WebSocket.Addr()),
		zap.String("ws_path", cfg.WebSocket.Path),
	)

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	accounts := postgres.NewAccountRepository(pool.DB())
	shop := postgres.NewShopRepository(pool.DB())
	history := postgres.NewHistoryRepository(pool.DB())

	src := rng.NewCryptoSource()
	registry := session.NewRegistry()
	router := broadcast.NewRouter(registry, logger)
	engine := monster.NewEngine(src)
	huntCtrl := hunt.NewController(registry, engine, router, logger, cfg.Hunt)

	srv := gameserver.NewServer(registry, router, huntCtrl, accounts, shop, history, src, logger)
	acceptor := ws.NewAcceptor(cfg.WebSocket, srv, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", acceptor)
	lifecycle.Add("hunt", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  huntCtrl.Stop,
	})

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("running services", zap.Error(err))
	}
}
