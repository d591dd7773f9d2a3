// Package ws implements the realtime collaboration hub: room membership
// per document, presence rosters, operation fan-out and asynchronous
// persistence.
//
// The channel performs no authentication; anyone holding a map id may join
// its room and mutate it. This mirrors the relaxed link-sharing access of
// the REST map endpoints and is a deliberate trust boundary.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mindlink-backend/application/ports"
	"mindlink-backend/domain/mindmap"
	apperrors "mindlink-backend/pkg/errors"
	"mindlink-backend/pkg/observability"
)

// Hub is the server-side relay for all realtime traffic. It owns the room
// membership table and the presence registry; both live and die with the
// process.
type Hub struct {
	maps     ports.MapRepository
	registry *Registry
	logger   *zap.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]bool
}

// NewHub creates a hub persisting documents through the given repository.
func NewHub(maps ports.MapRepository, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		maps:     maps,
		registry: NewRegistry(),
		logger:   logger,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Same trust boundary as the rest of the channel.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]bool),
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection and runs its
// read loop until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.metrics.ConnectionsActive.Inc()
	h.logger.Info("connection opened", zap.String("connID", c.id))

	go c.writePump()
	c.readPump(h)
}

// handleMessage dispatches one inbound frame. Errors are logged and
// swallowed so that one bad frame cannot take down the relay for the rest
// of the room.
func (h *Hub) handleMessage(c *client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn("malformed frame", zap.String("connID", c.id), zap.Error(err))
		return
	}

	switch env.Event {
	case EventJoinMap:
		h.handleJoin(c, env.Data)
	case EventOperation:
		h.handleOperation(c, env.Data)
	case EventCursor:
		h.handleCursor(c, env.Data)
	default:
		h.logger.Debug("ignoring unknown event", zap.String("event", env.Event))
	}
}

// handleJoin subscribes the connection to a document room, broadcasts the
// updated roster to the whole room (joiner included), then sends the full
// document snapshot to the joiner only. A missing document is a silent
// no-op: the roster still updates, but no init-map is ever sent.
func (h *Hub) handleJoin(c *client, data json.RawMessage) {
	req, err := decodeJoin(data)
	if err != nil {
		h.logger.Warn("bad join-map payload", zap.String("connID", c.id), zap.Error(err))
		return
	}
	if c.mapID != "" {
		h.logger.Debug("connection already joined a room",
			zap.String("connID", c.id), zap.String("mapID", c.mapID))
		return
	}
	c.mapID = req.MapID
	c.username = req.Username

	h.mu.Lock()
	room, ok := h.rooms[req.MapID]
	if !ok {
		room = make(map[*client]bool)
		h.rooms[req.MapID] = room
	}
	room[c] = true
	h.mu.Unlock()

	roster := h.registry.Join(req.MapID, c.id, req.Username)
	h.metrics.RoomsActive.Set(float64(h.registry.RoomCount()))
	h.logger.Info("joined room",
		zap.String("connID", c.id),
		zap.String("mapID", req.MapID),
		zap.String("username", req.Username),
	)

	h.broadcastRoom(req.MapID, EventRoomUsers, roster, nil)

	m, err := h.maps.FindByID(context.Background(), req.MapID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			h.logger.Error("snapshot load failed", zap.String("mapID", req.MapID), zap.Error(err))
		}
		return
	}
	frame, err := EncodeEnvelope(EventInitMap, m)
	if err != nil {
		h.logger.Error("snapshot encode failed", zap.String("mapID", req.MapID), zap.Error(err))
		return
	}
	if c.enqueue(frame) {
		h.metrics.SnapshotsSent.Inc()
	}
}

// handleOperation relays the operation to every other room member, then
// kicks off the persistence cycle in the background. Relay and persistence
// are neither ordered nor transactional with each other: peers may apply
// an operation whose write later fails.
func (h *Hub) handleOperation(c *client, data json.RawMessage) {
	var msg OperationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("bad operation payload", zap.String("connID", c.id), zap.Error(err))
		return
	}
	if msg.MapID == "" {
		return
	}

	h.broadcastRoom(msg.MapID, EventOperation, msg.Operation, c)
	h.metrics.OperationsRelayed.WithLabelValues(string(msg.Operation.Type)).Inc()

	go h.persist(msg.MapID, msg.Operation)
}

// persist runs one read-modify-write cycle for a single operation. There
// is no lock and no version check; concurrent cycles for the same document
// resolve last-writer-wins, and a failure here is logged but never
// surfaced to clients that already applied the broadcast.
func (h *Hub) persist(mapID string, op mindmap.Operation) {
	ctx := context.Background()

	m, err := h.maps.FindByID(ctx, mapID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			h.metrics.PersistenceFailures.Inc()
			h.logger.Error("operation load failed", zap.String("mapID", mapID), zap.Error(err))
		}
		return
	}

	if err := op.Apply(m); err != nil {
		if !errors.Is(err, mindmap.ErrUnknownOperation) {
			h.metrics.PersistenceFailures.Inc()
			h.logger.Error("operation apply failed",
				zap.String("mapID", mapID),
				zap.String("type", string(op.Type)),
				zap.Error(err),
			)
			return
		}
		// Unknown types relay fine; the document is saved unchanged.
		h.logger.Warn("unknown operation type", zap.String("type", string(op.Type)))
	}

	if err := h.maps.Save(ctx, m); err != nil {
		h.metrics.PersistenceFailures.Inc()
		h.logger.Error("operation save failed", zap.String("mapID", mapID), zap.Error(err))
	}
}

// handleCursor relays an ephemeral pointer position to the rest of the
// room, stamped with the sender's presence color. Never persisted, never
// retried.
func (h *Hub) handleCursor(c *client, data json.RawMessage) {
	var msg CursorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug("bad cursor payload", zap.String("connID", c.id), zap.Error(err))
		return
	}
	if msg.MapID == "" {
		return
	}

	h.broadcastRoom(msg.MapID, EventCursor, CursorBroadcast{
		ID:       c.id,
		X:        msg.X,
		Y:        msg.Y,
		Username: msg.Username,
		Color:    h.registry.Color(msg.MapID, c.id),
	}, c)
	h.metrics.CursorsRelayed.Inc()
}

// disconnect tears down a connection: out of the room table, out of the
// presence registry, roster broadcast to whoever remains. An emptied room
// disappears entirely; the document itself is independently durable.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.mapID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.mapID)
		}
	}
	h.mu.Unlock()

	c.closeSend()

	if mapID, roster, ok := h.registry.Leave(c.id); ok {
		h.broadcastRoom(mapID, EventRoomUsers, roster, nil)
	}

	h.metrics.ConnectionsActive.Dec()
	h.metrics.RoomsActive.Set(float64(h.registry.RoomCount()))
	h.logger.Info("connection closed", zap.String("connID", c.id))
}

// broadcastRoom fans a frame out to every room member except exclude.
// Delivery is best-effort: frames to slow consumers are dropped.
func (h *Hub) broadcastRoom(mapID, event string, payload interface{}, exclude *client) {
	frame, err := EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error("broadcast encode failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for member := range h.rooms[mapID] {
		if member == exclude {
			continue
		}
		if !member.enqueue(frame) {
			h.logger.Warn("dropping frame for slow consumer",
				zap.String("connID", member.id),
				zap.String("event", event),
			)
		}
	}
}
