package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pairwave/matchrelay/internal/protocol"
)

// clientConn wraps a websocket connection as a registry.Conn.
//
// The write mutex serializes Send calls from the relay, lifecycle
// notifications and the connection's own read loop, so per-sender message
// order is preserved on the wire.
type clientConn struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newClientConn(conn *websocket.Conn) *clientConn {
	return &clientConn{
		id:   uuid.NewString(),
		conn: conn,
	}
}

func (c *clientConn) ID() string { return c.id }

func (c *clientConn) Send(msg protocol.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) sendError(code, message string) {
	_ = c.Send(protocol.ServerMessage{
		Type:    protocol.MessageTypeError,
		Code:    code,
		Message: message,
	})
}

// fail reports an error to the client, then closes the connection with the
// given close code.
func (c *clientConn) fail(code, message string, closeCode int) {
	c.sendError(code, message)
	c.closeWith(closeCode, code)
}

func (c *clientConn) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func (c *clientConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
