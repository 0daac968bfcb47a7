// internal/realtime/connection.go
package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"notification-engine/internal/common/logger"
)

// Connection wraps a websocket with a buffered outbound queue. A dedicated
// writer goroutine owns all writes to the socket.
type Connection struct {
	ws           *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       logger.Logger
}

func NewConnection(ws *websocket.Conn, sendBufferSize int, writeTimeout time.Duration, log logger.Logger) *Connection {
	if sendBufferSize <= 0 {
		sendBufferSize = 256
	}
	return &Connection{
		ws:           ws,
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       log,
	}
}

// Deliver queues payload for the writer goroutine. It never blocks: a full
// buffer means the client is too slow and the payload is dropped for this
// session only.
func (c *Connection) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.logger.Warn("realtime send buffer full, dropping payload", map[string]interface{}{
			"remote_addr": c.ws.RemoteAddr().String(),
		})
		return false
	}
}

// writer drains the send queue onto the socket until the connection closes.
func (c *Connection) writer() {
	defer c.ws.Close()
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			if c.writeTimeout > 0 {
				_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("realtime write failed", map[string]interface{}{
					"error": err.Error(),
				})
				c.Close()
				return
			}
		}
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
