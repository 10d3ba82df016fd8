// Package main provides a CLI tool for listing the all-time best scores per
// game mode from the match history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	mode := flag.String("mode", postgres.ModeBattle, "game mode: battle, maze, or hunt")
	limit := flag.Int("limit", 10, "number of rows to list")
	flag.Parse()

	switch *mode {
	case postgres.ModeBattle, postgres.ModeMaze, postgres.ModeHunt:
	default:
		log.Fatalf("invalid mode %q: must be one of battle, maze, hunt", *mode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewHistoryRepository(pool.DB())
	scores, err := repo.TopScores(ctx, *mode, *limit)
	if err != nil {
		log.Fatalf("listing top scores: %v", err)
	}

	if len(scores) == 0 {
		fmt.Fprintf(os.Stdout, "no %s games recorded\n", *mode)
		return
	}
	for i, s := range scores {
		fmt.Fprintf(os.Stdout, "%2d. %-24s %d\n", i+1, s.Username, s.Score)
	}
}
