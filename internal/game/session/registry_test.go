package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type nopConn struct{}

func (nopConn) Send(string) error { return nil }
func (nopConn) Close() error      { return nil }

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	snap, err := r.Register("alice", nopConn{}, 1645, 754, -1, "lobby")
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.Username)
	assert.Equal(t, 1, snap.ID)
	assert.Equal(t, "lobby", snap.Map)
	assert.True(t, snap.Alive)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_RegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	first, err := r.Register("carol", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	_, err = r.Register("carol", nopConn{}, 9, 9, 2, "hunt")
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	// The original session is untouched.
	snap, ok := r.Find("carol")
	require.True(t, ok)
	assert.Equal(t, first, snap)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_MonotonicIDs(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register("a", nopConn{}, 0, 0, -1, "lobby")
	_, err := r.Remove("a")
	require.NoError(t, err)
	b, _ := r.Register("b", nopConn{}, 0, 0, -1, "lobby")
	assert.Greater(t, b.ID, a.ID, "ids must never be reused")
}

func TestRegistry_RemoveByIdentity(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)
	_, err = r.Register("bob", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	snap, err := r.Remove("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.Username)

	_, ok := r.Find("alice")
	assert.False(t, ok)
	_, ok = r.Find("bob")
	assert.True(t, ok)
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Remove("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_UpdatePosition(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	require.NoError(t, r.UpdatePosition("alice", 100, 200, 2))
	snap, _ := r.Find("alice")
	assert.Equal(t, 100, snap.X)
	assert.Equal(t, 200, snap.Y)
	assert.Equal(t, 2, snap.Dir)

	assert.ErrorIs(t, r.UpdatePosition("ghost", 1, 2, 3), ErrNotFound)
}

func TestRegistry_SetMapReturnsPrevious(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	old, err := r.SetMap("alice", "hunt")
	require.NoError(t, err)
	assert.Equal(t, "lobby", old)

	assert.Len(t, r.InMap("hunt"), 1)
	assert.Empty(t, r.InMap("lobby"))
}

func TestRegistry_SetPositionAndMap(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	old, err := r.SetPositionAndMap("alice", "hunt", 600, 700)
	require.NoError(t, err)
	assert.Equal(t, "lobby", old)

	snap, _ := r.Find("alice")
	assert.Equal(t, "hunt", snap.Map)
	assert.Equal(t, 600, snap.X)
	assert.Equal(t, 700, snap.Y)
}

func TestRegistry_SetAlive(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	require.NoError(t, r.SetAlive("alice", false))
	snap, _ := r.Find("alice")
	assert.False(t, snap.Alive)
}

func TestRegistry_FindByID(t *testing.T) {
	r := NewRegistry()
	created, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	snap, ok := r.FindByID(created.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", snap.Username)

	_, ok = r.FindByID(999)
	assert.False(t, ok)
}

func TestRegistry_InMapScoping(t *testing.T) {
	r := NewRegistry()
	for i, name := range []string{"a", "b", "c"} {
		_, err := r.Register(name, nopConn{}, i, i, -1, "lobby")
		require.NoError(t, err)
	}
	_, err := r.SetMap("b", "hunt")
	require.NoError(t, err)

	assert.Equal(t, 2, r.CountInMap("lobby"))
	assert.Equal(t, 1, r.CountInMap("hunt"))
	assert.Len(t, r.Recipients("hunt"), 1)
	assert.Len(t, r.AllRecipients(), 3)
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("alice", nopConn{}, 0, 0, -1, "lobby")
	require.NoError(t, err)

	snaps := r.All()
	require.Len(t, snaps, 1)
	snaps[0].X = 9999

	snap, _ := r.Find("alice")
	assert.Equal(t, 0, snap.X, "mutating a snapshot must not affect the registry")
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("user%d", i)
			if _, err := r.Register(name, nopConn{}, i, i, -1, "lobby"); err != nil {
				return
			}
			_ = r.UpdatePosition(name, i*2, i*2, 1)
			_, _ = r.SetMap(name, "hunt")
			_ = r.All()
			_ = r.InMap("hunt")
			if i%2 == 0 {
				_, _ = r.Remove(name)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 25, r.Count())
}

// Property: a register/remove sequence never yields two sessions with the same
// username, and ids are strictly increasing in registration order.
func TestPropertyUniqueUsernames(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		names := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 1, 20).Draw(t, "names")
		registered := make(map[string]bool)
		for _, name := range names {
			_, err := r.Register(name, nopConn{}, 0, 0, -1, "lobby")
			if registered[name] {
				if err == nil {
					t.Fatalf("duplicate registration of %q succeeded", name)
				}
				continue
			}
			if err != nil {
				t.Fatalf("first registration of %q failed: %v", name, err)
			}
			registered[name] = true
		}
		if r.Count() != len(registered) {
			t.Fatalf("count %d != unique names %d", r.Count(), len(registered))
		}
	})
}
