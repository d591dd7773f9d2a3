package mindmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMap() *Map {
	return &Map{
		ID:    "map-1",
		Title: "Test Map",
		Owner: "user-1",
		Nodes: []Node{
			{ID: "n1", Content: "A", X: 0, Y: 0, Style: map[string]interface{}{"color": "red"}},
			{ID: "n2", Content: "B", X: 10, Y: 10},
			{ID: "n3", Content: "C", X: 20, Y: 20},
		},
		Edges: []Edge{
			{ID: "e12", Source: "n1", Target: "n2"},
			{ID: "e23", Source: "n2", Target: "n3"},
		},
	}
}

func TestApply_NodeAdd_Idempotent(t *testing.T) {
	m := testMap()
	op := NewNodeAdd(Node{ID: "n4", Content: "D", X: 5, Y: 5})

	require.NoError(t, op.Apply(m))
	require.NoError(t, op.Apply(m))

	assert.Len(t, m.Nodes, 4)
	assert.Equal(t, "D", m.FindNode("n4").Content)
}

func TestApply_NodeAdd_ExistingIDIgnored(t *testing.T) {
	m := testMap()
	op := NewNodeAdd(Node{ID: "n1", Content: "overwritten?"})

	require.NoError(t, op.Apply(m))

	// The original node wins; a duplicate add never replaces.
	assert.Len(t, m.Nodes, 3)
	assert.Equal(t, "A", m.FindNode("n1").Content)
}

func TestApply_EdgeAdd_Idempotent(t *testing.T) {
	m := testMap()
	op := NewEdgeAdd(Edge{ID: "e13", Source: "n1", Target: "n3"})

	require.NoError(t, op.Apply(m))
	require.NoError(t, op.Apply(m))

	assert.Len(t, m.Edges, 3)
}

func TestApply_NodeDelete_CascadesEdges(t *testing.T) {
	m := testMap()
	op := NewNodeDelete("n2")

	require.NoError(t, op.Apply(m))

	assert.Nil(t, m.FindNode("n2"))
	assert.Len(t, m.Nodes, 2)
	// Both edges touched n2, so both must be gone at the moment of delete.
	assert.Empty(t, m.Edges)
}

func TestApply_NodeDelete_UnknownIDNoop(t *testing.T) {
	m := testMap()

	require.NoError(t, NewNodeDelete("missing").Apply(m))

	assert.Len(t, m.Nodes, 3)
	assert.Len(t, m.Edges, 2)
}

func TestApply_NodeEdit_MergesOnlyProvidedFields(t *testing.T) {
	m := testMap()
	op := NewNodeEdit("n1", "X")

	require.NoError(t, op.Apply(m))

	n := m.FindNode("n1")
	assert.Equal(t, "X", n.Content)
	assert.Equal(t, 0.0, n.X)
	assert.Equal(t, 0.0, n.Y)
	assert.Equal(t, map[string]interface{}{"color": "red"}, n.Style)
}

func TestApply_NodeEdit_PartialPatchFields(t *testing.T) {
	m := testMap()
	op := Operation{
		Type:    OpNodeEdit,
		Payload: json.RawMessage(`{"id":"n2","width":120,"style":{"bold":true}}`),
	}

	require.NoError(t, op.Apply(m))

	n := m.FindNode("n2")
	require.NotNil(t, n.Width)
	assert.Equal(t, 120.0, *n.Width)
	assert.Equal(t, "B", n.Content)
	assert.Equal(t, map[string]interface{}{"bold": true}, n.Style)
}

func TestApply_NodeMove_OverwritesPositionOnly(t *testing.T) {
	m := testMap()

	require.NoError(t, NewNodeMove("n3", 99, -4).Apply(m))

	n := m.FindNode("n3")
	assert.Equal(t, 99.0, n.X)
	assert.Equal(t, -4.0, n.Y)
	assert.Equal(t, "C", n.Content)
}

func TestApply_NodeUpdate_ReplacesWholesale(t *testing.T) {
	m := testMap()
	op := NewNodeUpdate(Node{ID: "n1", Content: "replaced", X: 1, Y: 2})

	require.NoError(t, op.Apply(m))

	n := m.FindNode("n1")
	assert.Equal(t, "replaced", n.Content)
	assert.Nil(t, n.Style)
}

func TestApply_EdgeUpdate_MergesByID(t *testing.T) {
	m := testMap()
	op := Operation{
		Type:    OpEdgeUpdate,
		Payload: json.RawMessage(`{"id":"e12","color":"#00ff00"}`),
	}

	require.NoError(t, op.Apply(m))

	e := m.FindEdge("e12")
	assert.Equal(t, "#00ff00", e.Color)
	assert.Equal(t, "n1", e.Source)
	assert.Equal(t, "n2", e.Target)
}

func TestApply_EdgeDelete(t *testing.T) {
	m := testMap()

	require.NoError(t, NewEdgeDelete("e12").Apply(m))

	assert.Nil(t, m.FindEdge("e12"))
	assert.Len(t, m.Edges, 1)
}

func TestApply_UnknownType(t *testing.T) {
	m := testMap()
	op := Operation{Type: "NODE_EXPLODE", Payload: json.RawMessage(`{}`)}

	err := op.Apply(m)

	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestApply_MalformedPayload(t *testing.T) {
	m := testMap()
	op := Operation{Type: OpNodeAdd, Payload: json.RawMessage(`"not an object"`)}

	assert.Error(t, op.Apply(m))
	assert.Len(t, m.Nodes, 3)
}

func TestClone_IsolatesMutations(t *testing.T) {
	m := testMap()
	cp := m.Clone()

	require.NoError(t, NewNodeDelete("n1").Apply(cp))
	cp.FindNode("n2").Style = map[string]interface{}{"x": 1}

	assert.NotNil(t, m.FindNode("n1"))
	assert.Len(t, m.Edges, 2)
	assert.Nil(t, m.FindNode("n2").Style)
}
