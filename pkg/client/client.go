// Package client is a Go client for the realtime collaboration channel.
// It keeps a local replica of one map document, applies the caller's
// mutations optimistically before sending them, and folds remote
// operations into the replica as they arrive.
//
// The channel gives no delivery or ordering guarantees, so the replica is
// only eventually consistent with the server and with other participants.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mindlink-backend/domain/mindmap"
)

const (
	eventJoinMap   = "join-map"
	eventOperation = "operation"
	eventCursor    = "cursor"
	eventInitMap   = "init-map"
	eventRoomUsers = "room-users"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinRequest struct {
	MapID    string `json:"mapId"`
	Username string `json:"username"`
}

type operationMessage struct {
	MapID     string            `json:"mapId,omitempty"`
	Operation mindmap.Operation `json:"operation"`
}

type cursorMessage struct {
	MapID    string  `json:"mapId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Username string  `json:"username"`
}

// Presence is one participant in the room roster.
type Presence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// Cursor is the last known pointer position of another participant.
type Cursor struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Username string  `json:"username"`
	Color    string  `json:"color"`
}

// Client is one connection to the collaboration channel, bound to at most
// one map. Not safe to Join twice; all other methods are safe for
// concurrent use.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	mapID    string
	username string
	doc      *mindmap.Map
	roster   []Presence
	cursors  map[string]Cursor

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// Dial connects to the channel endpoint (a ws:// or wss:// URL). A nil
// logger disables client-side logging.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &Client{
		conn:    conn,
		logger:  logger,
		doc:     &mindmap.Map{},
		cursors: make(map[string]Cursor),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Join enters a map's room and waits for the document snapshot. If the map
// does not exist server-side no snapshot ever comes, and Join returns the
// context's error once it expires; the connection stays usable with an
// empty replica.
func (c *Client) Join(ctx context.Context, mapID, username string) error {
	c.mu.Lock()
	c.mapID = mapID
	c.username = username
	c.mu.Unlock()

	if err := c.write(eventJoinMap, joinRequest{MapID: mapID, Username: username}); err != nil {
		return err
	}

	go c.readLoop()

	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed before snapshot")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop folds every inbound frame into local state until the connection
// drops.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn("malformed frame", zap.Error(err))
			continue
		}

		switch env.Event {
		case eventInitMap:
			var doc mindmap.Map
			if err := json.Unmarshal(env.Data, &doc); err != nil {
				c.logger.Warn("malformed snapshot", zap.Error(err))
				continue
			}
			c.mu.Lock()
			c.doc = &doc
			c.mu.Unlock()
			c.readyOnce.Do(func() { close(c.ready) })

		case eventOperation:
			var op mindmap.Operation
			if err := json.Unmarshal(env.Data, &op); err != nil {
				c.logger.Warn("malformed operation", zap.Error(err))
				continue
			}
			c.mu.Lock()
			if err := op.Apply(c.doc); err != nil {
				c.logger.Warn("dropping operation", zap.String("type", string(op.Type)), zap.Error(err))
			}
			c.mu.Unlock()

		case eventRoomUsers:
			var roster []Presence
			if err := json.Unmarshal(env.Data, &roster); err != nil {
				c.logger.Warn("malformed roster", zap.Error(err))
				continue
			}
			c.mu.Lock()
			c.roster = roster
			// Forget cursors of participants no longer present.
			present := make(map[string]bool, len(roster))
			for _, p := range roster {
				present[p.ID] = true
			}
			for id := range c.cursors {
				if !present[id] {
					delete(c.cursors, id)
				}
			}
			c.mu.Unlock()

		case eventCursor:
			var cur Cursor
			if err := json.Unmarshal(env.Data, &cur); err != nil {
				c.logger.Warn("malformed cursor", zap.Error(err))
				continue
			}
			c.mu.Lock()
			c.cursors[cur.ID] = cur
			c.mu.Unlock()
		}
	}
}

// apply runs an operation against the local replica, then sends it. The
// local application happens first so the caller sees its own change
// immediately regardless of network state.
func (c *Client) apply(op mindmap.Operation) error {
	c.mu.Lock()
	if err := op.Apply(c.doc); err != nil {
		c.mu.Unlock()
		return err
	}
	mapID := c.mapID
	c.mu.Unlock()

	return c.write(eventOperation, operationMessage{MapID: mapID, Operation: op})
}

// AddNode adds a node to the document.
func (c *Client) AddNode(n mindmap.Node) error {
	return c.apply(mindmap.NewNodeAdd(n))
}

// UpdateNode replaces a node wholesale.
func (c *Client) UpdateNode(n mindmap.Node) error {
	return c.apply(mindmap.NewNodeUpdate(n))
}

// MoveNode repositions a node.
func (c *Client) MoveNode(id string, x, y float64) error {
	return c.apply(mindmap.NewNodeMove(id, x, y))
}

// EditNodeContent changes a node's text, leaving its other fields alone.
func (c *Client) EditNodeContent(id, content string) error {
	return c.apply(mindmap.NewNodeEdit(id, content))
}

// DeleteNode removes a node and every edge touching it.
func (c *Client) DeleteNode(id string) error {
	return c.apply(mindmap.NewNodeDelete(id))
}

// AddEdge adds an edge to the document.
func (c *Client) AddEdge(e mindmap.Edge) error {
	return c.apply(mindmap.NewEdgeAdd(e))
}

// UpdateEdge merges non-zero fields into an existing edge.
func (c *Client) UpdateEdge(e mindmap.Edge) error {
	return c.apply(mindmap.NewEdgeUpdate(e))
}

// DeleteEdge removes an edge.
func (c *Client) DeleteEdge(id string) error {
	return c.apply(mindmap.NewEdgeDelete(id))
}

// SendCursor shares the caller's pointer position with the room.
// Fire-and-forget, never acknowledged.
func (c *Client) SendCursor(x, y float64) error {
	c.mu.RLock()
	msg := cursorMessage{MapID: c.mapID, X: x, Y: y, Username: c.username}
	c.mu.RUnlock()
	return c.write(eventCursor, msg)
}

// Nodes returns a copy of the replica's nodes.
func (c *Client) Nodes() []mindmap.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]mindmap.Node(nil), c.doc.Nodes...)
}

// Edges returns a copy of the replica's edges.
func (c *Client) Edges() []mindmap.Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]mindmap.Edge(nil), c.doc.Edges...)
}

// Roster returns the latest room roster.
func (c *Client) Roster() []Presence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Presence(nil), c.roster...)
}

// Cursors returns the latest known cursor per participant.
func (c *Client) Cursors() map[string]Cursor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Cursor, len(c.cursors))
	for id, cur := range c.cursors {
		out[id] = cur
	}
	return out
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline())
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func deadline() time.Time {
	return time.Now().Add(10 * time.Second)
}
