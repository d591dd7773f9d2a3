package ws

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

func TestRegistryJoinAssignsColor(t *testing.T) {
	reg := NewRegistry()

	roster := reg.Join("map-1", "conn-1", "alice")
	require.Len(t, roster, 1)
	assert.Equal(t, "conn-1", roster[0].ID)
	assert.Equal(t, "alice", roster[0].Username)
	assert.Regexp(t, colorPattern, roster[0].Color)
}

func TestRegistryJoinTwiceIsNoOp(t *testing.T) {
	reg := NewRegistry()

	reg.Join("map-1", "conn-1", "alice")
	roster := reg.Join("map-1", "conn-1", "alice")

	assert.Len(t, roster, 1)
	assert.Equal(t, 1, reg.RoomCount())
}

func TestRegistryRosterAccumulates(t *testing.T) {
	reg := NewRegistry()

	reg.Join("map-1", "conn-1", "alice")
	roster := reg.Join("map-1", "conn-2", "bob")

	require.Len(t, roster, 2)
	assert.Equal(t, "alice", roster[0].Username)
	assert.Equal(t, "bob", roster[1].Username)
	assert.Equal(t, roster, reg.Roster("map-1"))
}

func TestRegistryLeave(t *testing.T) {
	reg := NewRegistry()
	reg.Join("map-1", "conn-1", "alice")
	reg.Join("map-1", "conn-2", "bob")

	mapID, roster, ok := reg.Leave("conn-1")
	require.True(t, ok)
	assert.Equal(t, "map-1", mapID)
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].Username)
}

func TestRegistryLeaveUnknownConn(t *testing.T) {
	reg := NewRegistry()

	_, _, ok := reg.Leave("nope")
	assert.False(t, ok)
}

func TestRegistryEmptyRoomIsDiscarded(t *testing.T) {
	reg := NewRegistry()
	reg.Join("map-1", "conn-1", "alice")

	mapID, roster, ok := reg.Leave("conn-1")
	require.True(t, ok)
	assert.Equal(t, "map-1", mapID)
	assert.Empty(t, roster)
	assert.Equal(t, 0, reg.RoomCount())
}

func TestRegistryColor(t *testing.T) {
	reg := NewRegistry()
	roster := reg.Join("map-1", "conn-1", "alice")

	assert.Equal(t, roster[0].Color, reg.Color("map-1", "conn-1"))
	assert.Equal(t, fallbackColor, reg.Color("map-1", "conn-2"))
	assert.Equal(t, fallbackColor, reg.Color("other-map", "conn-1"))
}
