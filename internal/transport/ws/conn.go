package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection behind the session.Conn contract.
// gorilla/websocket allows only one concurrent writer, so Send serializes
// writes with a mutex; the read loop stays single-goroutine in the acceptor.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an upgraded websocket connection. Each connection gets a
// unique id that outlives session registration, so log lines correlate even
// for clients that never authenticate.
//
// Precondition: ws must be a live connection.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{id: uuid.NewString(), ws: ws, writeTimeout: writeTimeout}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// Send writes one protocol message as a text frame.
func (c *Conn) Send(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("setting write deadline: %w", err)
		}
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Close shuts the connection down. Safe to call more than once; the read
// loop and the dispatcher may both tear down the same connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// RemoteAddr reports the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// readMessage blocks for the next text frame and returns its payload.
func (c *Conn) readMessage() (string, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
