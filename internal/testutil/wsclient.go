package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a simple WebSocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given ws:// URL and returns a test client.
//
// Precondition: url must point at a listening WebSocket server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &WSClient{conn: conn, t: t}
}

// Send writes one text message to the server.
//
// Postcondition: text is written as a single websocket text frame.
func (c *WSClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// ReadMessage reads one message within the timeout.
//
// Postcondition: Returns the message text, or fails the test on timeout.
func (c *WSClient) ReadMessage(timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading message: %v", err)
	}
	return string(data)
}

// ReadUntil reads messages until one starts with the given prefix or the
// timeout elapses. It returns the matching message.
//
// Precondition: prefix must be non-empty.
// Postcondition: Returns the first message starting with prefix, or fails
// the test listing everything read so far.
func (c *WSClient) ReadUntil(prefix string, timeout time.Duration) string {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	var seen []string
	for time.Now().Before(deadline) {
		_ = c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until %q: got %v, error: %v", prefix, seen, err)
		}
		msg := string(data)
		if strings.HasPrefix(msg, prefix) {
			return msg
		}
		seen = append(seen, msg)
	}
	c.t.Fatalf("timed out waiting for %q: got %v", prefix, seen)
	return ""
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	_ = c.conn.Close()
}
