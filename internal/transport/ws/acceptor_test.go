package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/miniisland/island/internal/config"
	"github.com/miniisland/island/internal/game/session"
)

// echoHandler is a test MessageHandler that echoes messages back.
type echoHandler struct {
	disconnects atomic.Int32

	mu       sync.Mutex
	received []string
}

func (h *echoHandler) HandleMessage(_ context.Context, conn session.Conn, msg string) {
	h.mu.Lock()
	h.received = append(h.received, msg)
	h.mu.Unlock()
	_ = conn.Send("echo: " + msg)
}

func (h *echoHandler) HandleDisconnect(session.Conn) {
	h.disconnects.Add(1)
}

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		Host:            "127.0.0.1",
		Port:            0, // random port
		Path:            "/ws",
		WriteTimeout:    5 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// startAcceptor runs acc and blocks until it is listening.
func startAcceptor(t *testing.T, acc *Acceptor) chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- acc.Start()
	}()

	deadline := time.After(2 * time.Second)
	for {
		if acc.IsRunning() && acc.Addr() != "" {
			return errCh
		}
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func dial(t *testing.T, acc *Acceptor) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+acc.Addr()+"/ws", nil)
	require.NoError(t, err)
	return conn
}

func TestAcceptorEchoesMessages(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(), handler, zaptest.NewLogger(t))
	errCh := startAcceptor(t, acc)

	conn := dial(t, acc)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", string(data))

	conn.Close()
	acc.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
}

func TestAcceptorReportsDisconnect(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(), handler, zaptest.NewLogger(t))
	startAcceptor(t, acc)
	defer acc.Stop()

	conn := dial(t, acc)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	conn.Close()

	require.Eventually(t, func() bool {
		return handler.disconnects.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcceptorMultipleClients(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(), handler, zaptest.NewLogger(t))
	startAcceptor(t, acc)

	const numClients = 3
	conns := make([]*websocket.Conn, numClients)
	for i := 0; i < numClients; i++ {
		conns[i] = dial(t, acc)
		require.NoError(t, conns[i].WriteMessage(websocket.TextMessage, []byte("hi")))
		_ = conns[i].SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conns[i].ReadMessage()
		require.NoError(t, err)
	}

	for _, conn := range conns {
		conn.Close()
	}

	acc.Stop()
	assert.Equal(t, int32(numClients), handler.disconnects.Load())
}

func TestAcceptorTrimsLineEndings(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(), handler, zaptest.NewLogger(t))
	startAcceptor(t, acc)
	defer acc.Stop()

	conn := dial(t, acc)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("Helloalice\r\n")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: Helloalice", string(data))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"Helloalice"}, handler.received)
}
