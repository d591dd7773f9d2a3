package mindmap

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OperationType discriminates the kinds of graph mutations exchanged
// between clients.
type OperationType string

const (
	OpNodeAdd    OperationType = "NODE_ADD"
	OpNodeUpdate OperationType = "NODE_UPDATE"
	OpNodeMove   OperationType = "NODE_MOVE"
	OpNodeEdit   OperationType = "NODE_EDIT"
	OpNodeDelete OperationType = "NODE_DELETE"
	OpEdgeAdd    OperationType = "EDGE_ADD"
	OpEdgeUpdate OperationType = "EDGE_UPDATE"
	OpEdgeDelete OperationType = "EDGE_DELETE"
)

// ErrUnknownOperation is returned for operation types outside the protocol
// vocabulary. Callers are expected to log and drop, not fail.
var ErrUnknownOperation = errors.New("unknown operation type")

// Operation is a single self-contained mutation description. The payload
// shape depends on Type and is decoded lazily so that an operation can be
// relayed verbatim without a round trip through typed structs.
//
// Operations carry no sequence number or version; they are applied as
// received. Adds are idempotent and edits are shallow merges so that
// duplicate or reordered delivery degrades gracefully.
type Operation struct {
	Type    OperationType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// nodePatch is the partial payload for NODE_EDIT. Pointer fields
// distinguish "absent" from zero values so the merge touches only what the
// client sent.
type nodePatch struct {
	ID      string                 `json:"id"`
	Type    *string                `json:"type"`
	Content *string                `json:"content"`
	Width   *float64               `json:"width"`
	Height  *float64               `json:"height"`
	Style   map[string]interface{} `json:"style"`
}

// edgePatch is the partial payload for EDGE_UPDATE.
type edgePatch struct {
	ID     string  `json:"id"`
	Source *string `json:"source"`
	Target *string `json:"target"`
	Color  *string `json:"color"`
}

type nodePosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type idOnly struct {
	ID string `json:"id"`
}

// Apply mutates the map according to the operation's rules. Operations
// referencing unknown ids are silent no-ops; only a malformed payload or an
// unknown type yields an error.
func (op Operation) Apply(m *Map) error {
	switch op.Type {
	case OpNodeAdd:
		var n Node
		if err := json.Unmarshal(op.Payload, &n); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		if m.FindNode(n.ID) == nil {
			m.Nodes = append(m.Nodes, n)
		}

	case OpNodeUpdate:
		var n Node
		if err := json.Unmarshal(op.Payload, &n); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		if existing := m.FindNode(n.ID); existing != nil {
			*existing = n
		}

	case OpNodeMove:
		var pos nodePosition
		if err := json.Unmarshal(op.Payload, &pos); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		if n := m.FindNode(pos.ID); n != nil {
			n.X = pos.X
			n.Y = pos.Y
		}

	case OpNodeEdit:
		var patch nodePatch
		if err := json.Unmarshal(op.Payload, &patch); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		if n := m.FindNode(patch.ID); n != nil {
			if patch.Content != nil {
				n.Content = *patch.Content
			}
			if patch.Type != nil {
				n.Type = *patch.Type
			}
			if patch.Width != nil {
				n.Width = patch.Width
			}
			if patch.Height != nil {
				n.Height = patch.Height
			}
			if patch.Style != nil {
				n.Style = patch.Style
			}
		}

	case OpNodeDelete:
		var ref idOnly
		if err := json.Unmarshal(op.Payload, &ref); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		m.RemoveNode(ref.ID)

	case OpEdgeAdd:
		var e Edge
		if err := json.Unmarshal(op.Payload, &e); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		if m.FindEdge(e.ID) == nil {
			m.Edges = append(m.Edges, e)
		}

	case OpEdgeUpdate:
		var patch edgePatch
		if err := json.Unmarshal(op.Payload, &patch); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		if e := m.FindEdge(patch.ID); e != nil {
			if patch.Source != nil {
				e.Source = *patch.Source
			}
			if patch.Target != nil {
				e.Target = *patch.Target
			}
			if patch.Color != nil {
				e.Color = *patch.Color
			}
		}

	case OpEdgeDelete:
		var ref idOnly
		if err := json.Unmarshal(op.Payload, &ref); err != nil {
			return fmt.Errorf("decode %s payload: %w", op.Type, err)
		}
		m.RemoveEdge(ref.ID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op.Type)
	}

	return nil
}

// Constructors used by the client reconciler and tests. Marshalling a
// domain value cannot fail, so these panic-free helpers swallow the error.

// NewNodeAdd builds a NODE_ADD operation for a full node.
func NewNodeAdd(n Node) Operation {
	return newOperation(OpNodeAdd, n)
}

// NewNodeUpdate builds a NODE_UPDATE operation replacing the node wholesale.
func NewNodeUpdate(n Node) Operation {
	return newOperation(OpNodeUpdate, n)
}

// NewNodeMove builds a NODE_MOVE operation carrying only the new position.
func NewNodeMove(id string, x, y float64) Operation {
	return newOperation(OpNodeMove, nodePosition{ID: id, X: x, Y: y})
}

// NewNodeEdit builds a NODE_EDIT operation that merges only the content.
func NewNodeEdit(id, content string) Operation {
	return newOperation(OpNodeEdit, nodePatch{ID: id, Content: &content})
}

// NewNodeDelete builds a NODE_DELETE operation.
func NewNodeDelete(id string) Operation {
	return newOperation(OpNodeDelete, idOnly{ID: id})
}

// NewEdgeAdd builds an EDGE_ADD operation for a full edge.
func NewEdgeAdd(e Edge) Operation {
	return newOperation(OpEdgeAdd, e)
}

// NewEdgeUpdate builds an EDGE_UPDATE operation replacing the edge fields
// present in the given edge.
func NewEdgeUpdate(e Edge) Operation {
	return newOperation(OpEdgeUpdate, e)
}

// NewEdgeDelete builds an EDGE_DELETE operation.
func NewEdgeDelete(id string) Operation {
	return newOperation(OpEdgeDelete, idOnly{ID: id})
}

func newOperation(t OperationType, payload interface{}) Operation {
	raw, _ := json.Marshal(payload)
	return Operation{Type: t, Payload: raw}
}
