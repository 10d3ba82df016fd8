// Package session tracks the live state of every connected, authenticated
// client. The Registry is the single owner of all session records: callers
// only ever see value-copy Snapshots and opaque Conn handles, never a mutable
// reference into the registry.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrAlreadyConnected is returned when a username is registered twice.
var ErrAlreadyConnected = errors.New("user already logged in")

// ErrNotFound is returned when an operation references an unknown username.
var ErrNotFound = errors.New("session not found")

// Conn is the transport handle owned exclusively by one session.
// Send must be safe for concurrent use and must not block indefinitely.
type Conn interface {
	Send(msg string) error
	Close() error
}

// Snapshot is a value copy of one session's state at a point in time.
type Snapshot struct {
	Username string
	ID       int
	X, Y     int
	Dir      int
	Map      string
	Alive    bool
}

type record struct {
	snap Snapshot
	conn Conn
}

// Registry tracks all active sessions keyed by username.
// All methods are safe for concurrent use.
//
// Invariant: at most one live session exists per username at any time.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*record
	byID   map[int]string
	nextID atomic.Int64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*record),
		byID:   make(map[int]string),
	}
}

// Register creates a session for username with the given transport handle and
// starting state, assigning the next numeric id.
//
// Precondition: username must be non-empty; conn must be non-nil.
// Postcondition: Returns the created session's Snapshot, or ErrAlreadyConnected
// if a live session already exists for username (the original is not replaced).
func (r *Registry) Register(username string, conn Conn, x, y, dir int, mapName string) (Snapshot, error) {
	if username == "" {
		return Snapshot{}, fmt.Errorf("session.Registry.Register: username must not be empty")
	}
	if conn == nil {
		return Snapshot{}, fmt.Errorf("session.Registry.Register: conn must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[username]; exists {
		return Snapshot{}, fmt.Errorf("registering %q: %w", username, ErrAlreadyConnected)
	}

	id := int(r.nextID.Add(1))
	rec := &record{
		snap: Snapshot{
			Username: username,
			ID:       id,
			X:        x,
			Y:        y,
			Dir:      dir,
			Map:      mapName,
			Alive:    true,
		},
		conn: conn,
	}
	r.byName[username] = rec
	r.byID[id] = username
	return rec.snap, nil
}

// Remove deletes the session for username.
//
// Postcondition: Returns the removed Snapshot, or ErrNotFound. The caller is
// responsible for any departure broadcast; the registry never broadcasts.
func (r *Registry) Remove(username string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byName[username]
	if !ok {
		return Snapshot{}, fmt.Errorf("removing %q: %w", username, ErrNotFound)
	}
	delete(r.byName, username)
	delete(r.byID, rec.snap.ID)
	return rec.snap, nil
}

// Find returns a Snapshot of the session for username.
func (r *Registry) Find(username string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byName[username]
	if !ok {
		return Snapshot{}, false
	}
	return rec.snap, true
}

// FindByID returns a Snapshot of the session with the given numeric id.
func (r *Registry) FindByID(id int) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username, ok := r.byID[id]
	if !ok {
		return Snapshot{}, false
	}
	rec, ok := r.byName[username]
	if !ok {
		return Snapshot{}, false
	}
	return rec.snap, true
}

// UpdatePosition sets the position and facing direction for username.
//
// Postcondition: Returns ErrNotFound if no session exists for username.
func (r *Registry) UpdatePosition(username string, x, y, dir int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byName[username]
	if !ok {
		return fmt.Errorf("updating position for %q: %w", username, ErrNotFound)
	}
	rec.snap.X = x
	rec.snap.Y = y
	rec.snap.Dir = dir
	return nil
}

// SetMap moves username to mapName, optionally updating position.
//
// Postcondition: Returns the previous map name, or ErrNotFound.
func (r *Registry) SetMap(username, mapName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byName[username]
	if !ok {
		return "", fmt.Errorf("setting map for %q: %w", username, ErrNotFound)
	}
	old := rec.snap.Map
	rec.snap.Map = mapName
	return old, nil
}

// SetPositionAndMap moves username to mapName at (x, y) in one step.
//
// Postcondition: Returns the previous map name, or ErrNotFound.
func (r *Registry) SetPositionAndMap(username, mapName string, x, y int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byName[username]
	if !ok {
		return "", fmt.Errorf("teleporting %q: %w", username, ErrNotFound)
	}
	old := rec.snap.Map
	rec.snap.Map = mapName
	rec.snap.X = x
	rec.snap.Y = y
	return old, nil
}

// SetAlive sets the combat-eligibility flag for username.
//
// Postcondition: Returns ErrNotFound if no session exists for username.
func (r *Registry) SetAlive(username string, alive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byName[username]
	if !ok {
		return fmt.Errorf("setting alive for %q: %w", username, ErrNotFound)
	}
	rec.snap.Alive = alive
	return nil
}

// All returns a snapshot of every session.
//
// Postcondition: Returns a non-nil slice safe to iterate while the registry
// is concurrently mutated.
func (r *Registry) All() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.byName))
	for _, rec := range r.byName {
		out = append(out, rec.snap)
	}
	return out
}

// InMap returns a snapshot of every session currently in mapName.
func (r *Registry) InMap(mapName string) []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0)
	for _, rec := range r.byName {
		if rec.snap.Map == mapName {
			out = append(out, rec.snap)
		}
	}
	return out
}

// Recipients returns the transport handles of every session in mapName.
// The slice is a stable copy; sends against it never race with registry mutation.
func (r *Registry) Recipients(mapName string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0)
	for _, rec := range r.byName {
		if rec.snap.Map == mapName {
			out = append(out, rec.conn)
		}
	}
	return out
}

// AllRecipients returns the transport handles of every session.
func (r *Registry) AllRecipients() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.byName))
	for _, rec := range r.byName {
		out = append(out, rec.conn)
	}
	return out
}

// RecipientsExcept returns the transport handles of every session in
// mapName other than except.
func (r *Registry) RecipientsExcept(mapName, except string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0)
	for name, rec := range r.byName {
		if name != except && rec.snap.Map == mapName {
			out = append(out, rec.conn)
		}
	}
	return out
}

// AllRecipientsExcept returns the transport handles of every session other
// than except, regardless of map.
func (r *Registry) AllRecipientsExcept(except string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.byName))
	for name, rec := range r.byName {
		if name != except {
			out = append(out, rec.conn)
		}
	}
	return out
}

// ConnOf returns the transport handle for username.
func (r *Registry) ConnOf(username string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byName[username]
	if !ok {
		return nil, false
	}
	return rec.conn, true
}

// Count returns the total number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// CountInMap returns the number of live sessions in mapName.
func (r *Registry) CountInMap(mapName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.byName {
		if rec.snap.Map == mapName {
			n++
		}
	}
	return n
}
