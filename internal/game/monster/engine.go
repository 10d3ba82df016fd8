package monster

import (
	"sort"
	"sync"

	"github.com/miniisland/island/internal/game/rng"
	"github.com/miniisland/island/internal/game/session"
)

// Engine is the single owner of the live monster set. All operations are
// safe for concurrent use; the lock is never held across a network send.
type Engine struct {
	mu       sync.Mutex
	monsters map[int]*monster
	nextID   int
	src      rng.Source
}

// NewEngine creates an empty engine drawing randomness from src.
//
// Precondition: src must be non-nil.
func NewEngine(src rng.Source) *Engine {
	return &Engine{
		monsters: make(map[int]*monster),
		nextID:   1,
		src:      src,
	}
}

// Spawn creates a live monster of the given type at (x, y) with full health
// and a freshly rolled wander burst, and returns its snapshot.
//
// Postcondition: the returned snapshot carries a monotonically assigned id,
// unique until the next Reset.
func (e *Engine) Spawn(t Type, x, y int) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := &monster{
		id:    e.nextID,
		typ:   t,
		x:     x,
		y:     y,
		stats: StatsFor(t),
		alive: true,
	}
	m.health = m.stats.MaxHealth
	m.rollWander(e.src)
	e.nextID++
	e.monsters[m.id] = m
	return m.snapshot()
}

// SpawnRandom spawns a random common-type monster at a uniformly random
// position inside the playable rectangle.
func (e *Engine) SpawnRandom() Snapshot {
	t := Type(e.src.Intn(CommonTypeCount))
	x := MinBound + e.src.Intn(MaxBound-MinBound)
	y := MinBound + e.src.Intn(MaxBound-MinBound)
	return e.Spawn(t, x, y)
}

// ApplyDamage subtracts amount from the monster's health, clamping at zero.
// A lethal hit flips the monster dead exactly once and yields its gold
// reward; non-lethal hits yield zero gold. Hits on unknown or already-dead
// monsters are stale and return ok=false with no state change.
func (e *Engine) ApplyDamage(id, amount int) (Snapshot, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.monsters[id]
	if !ok || !m.alive {
		return Snapshot{}, 0, false
	}
	m.health -= amount
	gold := 0
	if m.health <= 0 {
		m.health = 0
		m.alive = false
		gold = m.stats.GoldReward
	}
	return m.snapshot(), gold, true
}

// Tick advances one fine simulation step for every live monster and returns
// their post-move snapshots in id order. The players slice must be a stable
// snapshot of sessions in the hunt map.
func (e *Engine) Tick(players []session.Snapshot) []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.monsters))
	for _, m := range e.monsters {
		if !m.alive {
			continue
		}
		m.update(players, e.src)
		out = append(out, m.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Live returns snapshots of all live monsters in id order.
func (e *Engine) Live() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.monsters))
	for _, m := range e.monsters {
		if m.alive {
			out = append(out, m.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LiveCount reports the number of live monsters.
func (e *Engine) LiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, m := range e.monsters {
		if m.alive {
			n++
		}
	}
	return n
}

// PruneDead removes dead monsters from the active set and reports how many
// were removed. Their ids are not reused until Reset.
func (e *Engine) PruneDead() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for id, m := range e.monsters {
		if !m.alive {
			delete(e.monsters, id)
			n++
		}
	}
	return n
}

// Reset discards every monster and rewinds the id allocator.
//
// Postcondition: the next Spawn is assigned id 1.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.monsters = make(map[int]*monster)
	e.nextID = 1
}
