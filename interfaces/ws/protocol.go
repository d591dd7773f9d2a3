package ws

import (
	"encoding/json"
	"fmt"

	"mindlink-backend/domain/mindmap"
)

// Wire event names. Client-to-server: join-map, operation, cursor.
// Server-to-client: init-map, operation, room-users, cursor.
const (
	EventJoinMap   = "join-map"
	EventOperation = "operation"
	EventCursor    = "cursor"
	EventInitMap   = "init-map"
	EventRoomUsers = "room-users"
)

// Envelope frames every message on the realtime channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EncodeEnvelope marshals an event payload into a wire frame.
func EncodeEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// JoinRequest is the join-map payload.
type JoinRequest struct {
	MapID    string `json:"mapId"`
	Username string `json:"username"`
}

// decodeJoin accepts both the current object shape and the legacy payload,
// a bare map id string, which older clients still emit.
func decodeJoin(raw json.RawMessage) (JoinRequest, error) {
	var req JoinRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.MapID != "" {
		if req.Username == "" {
			req.Username = "Guest"
		}
		return req, nil
	}

	var legacy string
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy != "" {
		return JoinRequest{MapID: legacy, Username: "Guest"}, nil
	}

	return JoinRequest{}, fmt.Errorf("malformed join-map payload")
}

// OperationMessage is the operation payload in both directions. The map id
// is present only client-to-server; relayed operations carry just the
// operation itself, the receiver already knows its room.
type OperationMessage struct {
	MapID     string            `json:"mapId,omitempty"`
	Operation mindmap.Operation `json:"operation"`
}

// CursorMessage is the client-to-server cursor payload.
type CursorMessage struct {
	MapID    string  `json:"mapId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Username string  `json:"username"`
}

// CursorBroadcast is the relayed cursor payload, stamped with the sending
// connection's id and presence color.
type CursorBroadcast struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Username string  `json:"username"`
	Color    string  `json:"color"`
}
