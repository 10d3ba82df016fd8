// Package hunt drives the monster-hunt match lifecycle: the Idle to Active
// state machine, the two periodic tick schedules, per-player scoring, and
// the broadcasts that keep every session in the hunt map consistent.
package hunt

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/game/broadcast"
	"github.com/miniisland/island/internal/game/monster"
	"github.com/miniisland/island/internal/game/session"
	"github.com/miniisland/island/internal/protocol"
)

// MapName is the map in which hunt matches run.
const MapName = "hunt"

// waveTimeline and waveLength shape the broadcast wave number. The nominal
// timeline is longer than the configured match duration; the formula is
// kept exactly as the game clients expect it.
const (
	waveTimeline = 180
	waveLength   = 45
)

// spawnEverySeconds gates wave spawning to every third coarse tick.
const spawnEverySeconds = 3

// Controller owns the match state. It is safe for concurrent use by
// connection handlers and its own tick goroutines.
type Controller struct {
	registry *session.Registry
	engine   *monster.Engine
	router   *broadcast.Router
	logger   *zap.Logger
	cfg      config.HuntConfig

	// onEnd, when set, receives the final score table after a match runs
	// to time expiry. It is invoked outside the controller lock.
	onEnd func(scores map[string]int)

	mu        sync.Mutex
	active    bool
	remaining int
	scores    map[string]int
	cancel    context.CancelFunc
}

// NewController creates an idle controller.
//
// Precondition: registry, engine, router and logger must be non-nil.
func NewController(registry *session.Registry, engine *monster.Engine, router *broadcast.Router, logger *zap.Logger, cfg config.HuntConfig) *Controller {
	return &Controller{
		registry: registry,
		engine:   engine,
		router:   router,
		logger:   logger,
		cfg:      cfg,
		scores:   make(map[string]int),
	}
}

// OnMatchEnd registers fn to receive the final scores when a match expires.
// Must be called before the first match starts.
func (c *Controller) OnMatchEnd(fn func(scores map[string]int)) {
	c.onEnd = fn
}

// Active reports whether a match is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Remaining returns the seconds left in the current match, or 0 when idle.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0
	}
	return c.remaining
}

// PlayerEntered starts a match if none is running and brings the arriving
// player up to date: the full live monster list, and the current time and
// wave if a match is active. Call after the player's map is already set to
// the hunt map in the registry.
func (c *Controller) PlayerEntered(username string) {
	c.mu.Lock()
	if !c.active {
		c.startLocked()
	}
	remaining := c.remaining
	c.mu.Unlock()

	for _, m := range c.engine.Live() {
		c.router.ToPlayer(username, protocol.SpawnMonster(m.ID, int(m.Type), m.X, m.Y))
	}
	c.router.ToPlayer(username, protocol.HuntTime(remaining))
	c.router.ToPlayer(username, protocol.HuntWave(waveFor(remaining)))
}

// PlayerLeft checks whether any session remains in the hunt map and, if
// none does, tears the match down without an end-of-match broadcast. Call
// after the player's map change or disconnect is already reflected in the
// registry.
func (c *Controller) PlayerLeft() {
	if c.registry.CountInMap(MapName) > 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.stopLocked()
		c.logger.Info("hunt abandoned, match reset")
	}
}

// MonsterHit applies client-reported damage to a monster. Health updates
// are broadcast to the hunt map; a lethal hit additionally broadcasts the
// death, credits the shooter's score, and broadcasts the leaderboard. Hits
// referencing unknown or dead monsters are stale and ignored.
func (c *Controller) MonsterHit(id, damage int, shooter string) {
	after, gold, ok := c.engine.ApplyDamage(id, damage)
	if !ok {
		c.logger.Debug("stale monster hit",
			zap.Int("monster_id", id),
			zap.String("shooter", shooter),
		)
		return
	}

	c.router.ToMap(MapName, protocol.MonsterUpdate(after.ID, after.X, after.Y, after.Health))

	if gold == 0 {
		return
	}
	c.engine.PruneDead()
	c.router.ToMap(MapName, protocol.MonsterDead(after.ID, shooter, gold))

	c.mu.Lock()
	c.scores[shooter] += gold
	board := c.scoresLocked()
	c.mu.Unlock()
	c.router.ToMap(MapName, protocol.HuntLeaderboard(board))

	c.logger.Info("monster killed",
		zap.Int("monster_id", after.ID),
		zap.String("shooter", shooter),
		zap.Int("gold", gold),
	)
}

// SetScore overwrites a player's score with a client-computed value and
// rebroadcasts the leaderboard. Combo and buff multipliers are applied
// client-side, so the reported total replaces the server tally.
func (c *Controller) SetScore(username string, score int) {
	c.mu.Lock()
	c.scores[username] = score
	board := c.scoresLocked()
	c.mu.Unlock()
	c.router.ToMap(MapName, protocol.HuntLeaderboard(board))
}

// Scores returns a copy of the current score table.
func (c *Controller) Scores() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scoresLocked()
}

// Stop tears down any running match without an end broadcast. Intended for
// server shutdown.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.stopLocked()
	}
}

func (c *Controller) scoresLocked() map[string]int {
	out := make(map[string]int, len(c.scores))
	for k, v := range c.scores {
		out[k] = v
	}
	return out
}

// startLocked arms a new match: fresh clock, empty scores, empty monster
// set, and the two tick goroutines. Caller holds c.mu.
func (c *Controller) startLocked() {
	c.active = true
	c.remaining = c.cfg.Duration
	c.scores = make(map[string]int)
	c.engine.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.runCoarse(ctx)
	go c.runFine(ctx)

	c.logger.Info("hunt started", zap.Int("duration_seconds", c.cfg.Duration))
}

// stopLocked cancels the tick goroutines and clears all match state.
// Caller holds c.mu.
func (c *Controller) stopLocked() {
	c.cancel()
	c.cancel = nil
	c.active = false
	c.engine.Reset()
	c.scores = make(map[string]int)
}

func (c *Controller) runCoarse(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CoarseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.coarseTick()
		}
	}
}

func (c *Controller) runFine(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.FineInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fineTick()
		}
	}
}

// coarseTick advances the match clock by one second: time and wave
// broadcasts, periodic spawning, dead-monster pruning, and the end-of-match
// transition when the clock runs out.
func (c *Controller) coarseTick() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}

	if c.remaining <= 0 {
		finalScores := c.scoresLocked()
		c.stopLocked()
		c.mu.Unlock()

		c.router.ToMap(MapName, protocol.HuntEnd())
		c.logger.Info("hunt ended", zap.Int("players_scored", len(finalScores)))
		if c.onEnd != nil {
			c.onEnd(finalScores)
		}
		return
	}

	c.remaining--
	remaining := c.remaining
	c.mu.Unlock()

	c.router.ToMap(MapName, protocol.HuntTime(remaining))
	c.router.ToMap(MapName, protocol.HuntWave(waveFor(remaining)))

	if remaining%spawnEverySeconds == 0 && c.engine.LiveCount() < c.cfg.MaxMonsters {
		m := c.engine.SpawnRandom()
		c.router.ToMap(MapName, protocol.SpawnMonster(m.ID, int(m.Type), m.X, m.Y))
	}

	c.engine.PruneDead()
}

// fineTick runs one simulation step and broadcasts every live monster's
// position and health. A no-op while idle.
func (c *Controller) fineTick() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if !active {
		return
	}

	players := c.registry.InMap(MapName)
	for _, m := range c.engine.Tick(players) {
		c.router.ToMap(MapName, protocol.MonsterUpdate(m.ID, m.X, m.Y, m.Health))
	}
}

// waveFor maps remaining seconds to the broadcast wave number.
func waveFor(remaining int) int {
	return (waveTimeline-remaining)/waveLength + 1
}
