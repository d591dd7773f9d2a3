package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Outbound queue per connection. A peer that cannot drain this many
	// frames is considered too slow; further frames to it are dropped.
	sendBufferSize = 64
)

// client is one WebSocket connection. The read pump drives all inbound
// handling for the connection; the hub only ever touches the send channel.
type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	username string
	mapID    string // set on join, read only from the read-pump goroutine

	closeOnce sync.Once
}

// closeSend closes the outbound queue exactly once, stopping the write
// pump.
func (c *client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump reads frames off the wire and hands them to the hub until the
// connection drops. It runs on the connection's handler goroutine.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("connID", c.id), zap.Error(err))
			}
			return
		}
		h.handleMessage(c, message)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue offers a frame to the client without blocking. Frames to a slow
// consumer are dropped; the realtime channel is fire-and-forget.
func (c *client) enqueue(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}
