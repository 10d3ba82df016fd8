package gameserver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/protocol"
	"github.com/miniisland/island/internal/testutil"
	"github.com/miniisland/island/internal/transport/ws"
)

// startServer runs the full websocket stack in front of a fixture server and
// returns the client-facing URL.
func startServer(t *testing.T, f *fixture) string {
	t.Helper()
	acc := ws.NewAcceptor(config.WebSocketConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Path:            "/ws",
		WriteTimeout:    5 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}, f.server, zaptest.NewLogger(t))

	go func() { _ = acc.Start() }()
	t.Cleanup(acc.Stop)

	deadline := time.After(2 * time.Second)
	for !acc.IsRunning() || acc.Addr() == "" {
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return "ws://" + acc.Addr() + "/ws"
}

func TestEndToEndJoinAndSee(t *testing.T) {
	f := newFixture(t)
	url := startServer(t, f)

	alice := testutil.NewWSClient(t, url)
	alice.Send("Register,alice,secret,alice@island.test")
	require.Equal(t, protocol.RegisterResult(true, "Account created"), alice.ReadMessage(2*time.Second))
	alice.Send("Login,alice,secret")
	require.Equal(t, protocol.LoginResult(true, "Welcome"), alice.ReadMessage(2*time.Second))
	alice.Send("Helloalice")
	alice.ReadUntil("Leaderboard", 2*time.Second)

	bob := testutil.NewWSClient(t, url)
	bob.Send("Register,bob,secret,bob@island.test")
	bob.ReadUntil("Register,", 2*time.Second)
	bob.Send("Login,bob,secret")
	bob.ReadUntil("Login,", 2*time.Second)
	bob.Send("Hellobob")

	// Alice sees bob arrive; bob's roster includes alice.
	assert.Contains(t, alice.ReadUntil("NewClient", 2*time.Second), "bob")
	assert.Contains(t, bob.ReadUntil("NewClient", 2*time.Second), "alice")
}

func TestEndToEndHuntMatchStarts(t *testing.T) {
	f := newFixture(t)
	url := startServer(t, f)

	alice := testutil.NewWSClient(t, url)
	alice.Send("Register,alice,secret,alice@island.test")
	alice.ReadUntil("Register,", 2*time.Second)
	alice.Send("Login,alice,secret")
	alice.ReadUntil("Login,", 2*time.Second)
	alice.Send("Helloalice")
	alice.ReadUntil("Leaderboard", 2*time.Second)

	alice.Send("TeleportToMap,alice,hunt,600,600")
	assert.Equal(t, protocol.HuntTime(60), alice.ReadUntil("HuntTime", 2*time.Second))
	assert.Equal(t, protocol.HuntWave(3), alice.ReadUntil("HuntWave", 2*time.Second))
}

func TestEndToEndDisconnectBroadcastsExit(t *testing.T) {
	f := newFixture(t)
	url := startServer(t, f)

	alice := testutil.NewWSClient(t, url)
	alice.Send("Register,alice,secret,alice@island.test")
	alice.ReadUntil("Register,", 2*time.Second)
	alice.Send("Login,alice,secret")
	alice.ReadUntil("Login,", 2*time.Second)
	alice.Send("Helloalice")
	alice.ReadUntil("Leaderboard", 2*time.Second)

	bob := testutil.NewWSClient(t, url)
	bob.Send("Register,bob,secret,bob@island.test")
	bob.ReadUntil("Register,", 2*time.Second)
	bob.Send("Login,bob,secret")
	bob.ReadUntil("Login,", 2*time.Second)
	bob.Send("Hellobob")
	bob.ReadUntil("Leaderboard", 2*time.Second)

	alice.Close()

	assert.Equal(t, protocol.Exit("alice"), bob.ReadUntil("Exit", 5*time.Second))
}
