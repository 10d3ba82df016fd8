// Package monster owns the live monster set during a hunt match: spawning,
// damage, death, and per-tick AI movement. Monster records never leave the
// package; callers see value snapshots only.
package monster

import (
	"math"

	"github.com/miniisland/island/internal/game/rng"
	"github.com/miniisland/island/internal/game/session"
)

// Type identifies a monster archetype. The numeric values are part of the
// wire protocol and must not be reordered.
type Type int

const (
	Slime Type = iota
	Goblin
	Orc
	Boss
)

// CommonTypeCount is the number of types eligible for random wave spawning.
// The boss is excluded from the random pool.
const CommonTypeCount = 3

// Stats holds the fixed per-type attributes. Speed is in pixels per fine
// simulation tick.
type Stats struct {
	MaxHealth  int
	Damage     int
	GoldReward int
	Speed      int
}

var statsByType = map[Type]Stats{
	Slime:  {MaxHealth: 30, Damage: 5, GoldReward: 10, Speed: 3},
	Goblin: {MaxHealth: 50, Damage: 10, GoldReward: 25, Speed: 4},
	Orc:    {MaxHealth: 100, Damage: 20, GoldReward: 50, Speed: 2},
	Boss:   {MaxHealth: 300, Damage: 30, GoldReward: 200, Speed: 2},
}

// StatsFor returns the fixed stats for t. Unknown types fall back to the
// weakest archetype.
func StatsFor(t Type) Stats {
	if s, ok := statsByType[t]; ok {
		return s
	}
	return statsByType[Slime]
}

// String returns the archetype name.
func (t Type) String() string {
	switch t {
	case Slime:
		return "SLIME"
	case Goblin:
		return "GOBLIN"
	case Orc:
		return "ORC"
	case Boss:
		return "BOSS"
	default:
		return "SLIME"
	}
}

// Playable-area bounds for the hunt map, in pixels. EntitySize keeps a
// monster's sprite fully inside the right and bottom edges.
const (
	MinBound   = 528
	MaxBound   = 1824
	EntitySize = 48

	// VisionRange is the chase radius in distance units.
	VisionRange = 300.0
)

// Wander durations in fine ticks (1 to 3 seconds at ~30 ticks per second).
const (
	wanderMinTicks  = 30
	wanderSpanTicks = 60
)

// Axis directions for the wander policy.
const (
	dirDown = iota + 1
	dirUp
	dirLeft
	dirRight
)

// Snapshot is a value copy of one monster's observable state.
type Snapshot struct {
	ID        int
	Type      Type
	X         int
	Y         int
	Health    int
	MaxHealth int
	Alive     bool
}

// monster is the mutable record. Only the Engine touches it, under the
// engine lock.
type monster struct {
	id     int
	typ    Type
	x, y   int
	health int
	stats  Stats
	alive  bool

	// wander state
	dir      int
	tick     int
	duration int
}

func (m *monster) snapshot() Snapshot {
	return Snapshot{
		ID:        m.id,
		Type:      m.typ,
		X:         m.x,
		Y:         m.y,
		Health:    m.health,
		MaxHealth: m.stats.MaxHealth,
		Alive:     m.alive,
	}
}

// update advances one fine tick of AI for a live monster. Players must
// already be filtered to the hunt map; the nearest alive player within
// vision range is chased, ties going to the earliest entry in the slice.
// With no target in range the monster wanders along one axis, re-rolling
// its direction when the burst expires or a boundary is reached. Chase
// movement slides along boundaries without re-rolling.
func (m *monster) update(players []session.Snapshot, src rng.Source) {
	target, chasing := m.nearestPlayer(players)

	if chasing {
		dx := float64(target.X - m.x)
		dy := float64(target.Y - m.y)
		length := math.Sqrt(dx*dx + dy*dy)
		if length > 0 {
			speed := float64(m.stats.Speed)
			m.x += int(dx / length * speed)
			m.y += int(dy / length * speed)
			if math.Abs(dx) > math.Abs(dy) {
				if dx > 0 {
					m.dir = dirRight
				} else {
					m.dir = dirLeft
				}
			} else {
				if dy > 0 {
					m.dir = dirDown
				} else {
					m.dir = dirUp
				}
			}
		}
	} else {
		m.tick++
		if m.tick >= m.duration {
			m.tick = 0
			m.rollWander(src)
		}
		switch m.dir {
		case dirDown:
			m.y += m.stats.Speed
		case dirUp:
			m.y -= m.stats.Speed
		case dirLeft:
			m.x -= m.stats.Speed
		case dirRight:
			m.x += m.stats.Speed
		}
	}

	m.x = clamp(m.x, MinBound, MaxBound-EntitySize)
	m.y = clamp(m.y, MinBound, MaxBound-EntitySize)

	// A wall hit picks a new direction but leaves the running burst timer
	// alone; only an expired burst re-rolls the duration.
	if !chasing && (m.x == MinBound || m.x == MaxBound-EntitySize ||
		m.y == MinBound || m.y == MaxBound-EntitySize) {
		m.rollDirection(src)
	}
}

// nearestPlayer picks the closest alive player strictly inside the vision
// range. The strict comparison makes the first equidistant entry win, so
// targeting is stable for a fixed snapshot.
func (m *monster) nearestPlayer(players []session.Snapshot) (session.Snapshot, bool) {
	var target session.Snapshot
	found := false
	minDst := VisionRange
	for _, p := range players {
		if !p.Alive {
			continue
		}
		dx := float64(m.x - p.X)
		dy := float64(m.y - p.Y)
		dst := math.Sqrt(dx*dx + dy*dy)
		if dst < minDst {
			minDst = dst
			target = p
			found = true
		}
	}
	return target, found
}

func (m *monster) rollWander(src rng.Source) {
	m.rollDirection(src)
	m.duration = src.Intn(wanderSpanTicks) + wanderMinTicks
}

func (m *monster) rollDirection(src rng.Source) {
	m.dir = src.Intn(4) + 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
