package ws

import (
	"fmt"
	"math/rand"
	"sync"
)

// fallbackColor is used when a cursor arrives from a connection that is
// not (or no longer) in the roster.
const fallbackColor = "#ff5722"

// Participant is the ephemeral presence record for one connection in a
// room. It is never persisted.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// Registry tracks which connections are present in which room and the
// presence identity assigned to each. State is process-local; multiple
// server instances would each see only their own participants.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string][]Participant
	byConn map[string]string // connection id -> map id
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string][]Participant),
		byConn: make(map[string]string),
	}
}

// Join adds a connection to a room, assigns it a random presence color and
// returns the updated roster. Joining twice with the same connection id is
// a no-op beyond returning the roster.
func (r *Registry) Join(mapID, connID, username string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.rooms[mapID] {
		if p.ID == connID {
			return append([]Participant(nil), r.rooms[mapID]...)
		}
	}

	r.rooms[mapID] = append(r.rooms[mapID], Participant{
		ID:       connID,
		Username: username,
		Color:    fmt.Sprintf("#%06x", rand.Intn(0x1000000)),
	})
	r.byConn[connID] = mapID

	return append([]Participant(nil), r.rooms[mapID]...)
}

// Leave removes a connection from whichever room holds it. It returns the
// room's id and updated roster; ok is false if the connection was unknown.
// An emptied room is discarded.
func (r *Registry) Leave(connID string) (mapID string, roster []Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mapID, ok = r.byConn[connID]
	if !ok {
		return "", nil, false
	}
	delete(r.byConn, connID)

	remaining := r.rooms[mapID][:0]
	for _, p := range r.rooms[mapID] {
		if p.ID != connID {
			remaining = append(remaining, p)
		}
	}

	if len(remaining) == 0 {
		delete(r.rooms, mapID)
		return mapID, []Participant{}, true
	}
	r.rooms[mapID] = remaining
	return mapID, append([]Participant(nil), remaining...), true
}

// Roster returns a copy of the room's participant list.
func (r *Registry) Roster(mapID string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Participant(nil), r.rooms[mapID]...)
}

// Color returns the presence color assigned to a connection, or the
// fallback if the connection is not in the room.
func (r *Registry) Color(mapID, connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.rooms[mapID] {
		if p.ID == connID {
			return p.Color
		}
	}
	return fallbackColor
}

// RoomCount returns the number of rooms with at least one participant.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
