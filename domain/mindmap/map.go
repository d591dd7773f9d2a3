package mindmap

import (
	"time"

	"github.com/google/uuid"
)

// Node is a single element on the mind map canvas. The ID is generated by
// the creating client and is immutable for the node's lifetime.
type Node struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type,omitempty"`
	Content string                 `json:"content"`
	X       float64                `json:"x"`
	Y       float64                `json:"y"`
	Width   *float64               `json:"width,omitempty"`
	Height  *float64               `json:"height,omitempty"`
	Style   map[string]interface{} `json:"style,omitempty"`
}

// Edge connects two nodes. Endpoints are only guaranteed to exist at the
// moment of creation; integrity is maintained by cascade deletion, not by
// continuous validation.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Color  string `json:"color,omitempty"`
}

// Map is the persisted representation of one mind map: the node/edge graph
// plus ownership metadata. Insertion order of nodes and edges carries no
// meaning but is preserved by append-style persistence.
type Map struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Owner         string    `json:"owner"`
	Collaborators []string  `json:"collaborators"`
	Nodes         []Node    `json:"nodes"`
	Edges         []Edge    `json:"edges"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// New creates an empty map owned by the given user.
func New(ownerID, title string) *Map {
	if title == "" {
		title = "Untitled Map"
	}
	now := time.Now().UTC()
	return &Map{
		ID:            uuid.New().String(),
		Title:         title,
		Owner:         ownerID,
		Collaborators: []string{},
		Nodes:         []Node{},
		Edges:         []Edge{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// FindNode returns a pointer into the map's node slice, or nil.
func (m *Map) FindNode(id string) *Node {
	for i := range m.Nodes {
		if m.Nodes[i].ID == id {
			return &m.Nodes[i]
		}
	}
	return nil
}

// FindEdge returns a pointer into the map's edge slice, or nil.
func (m *Map) FindEdge(id string) *Edge {
	for i := range m.Edges {
		if m.Edges[i].ID == id {
			return &m.Edges[i]
		}
	}
	return nil
}

// RemoveNode deletes the node and every edge touching it. The cascade
// happens at the moment of delete, never lazily. Removing an unknown node
// is a no-op.
func (m *Map) RemoveNode(id string) {
	nodes := m.Nodes[:0]
	for _, n := range m.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	m.Nodes = nodes

	edges := m.Edges[:0]
	for _, e := range m.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	m.Edges = edges
}

// RemoveEdge deletes the edge by id. Unknown ids are ignored.
func (m *Map) RemoveEdge(id string) {
	edges := m.Edges[:0]
	for _, e := range m.Edges {
		if e.ID != id {
			edges = append(edges, e)
		}
	}
	m.Edges = edges
}

// HasCollaborator reports whether the user is already on the collaborator
// list.
func (m *Map) HasCollaborator(userID string) bool {
	for _, c := range m.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Repositories hand out clones so that callers
// mutate private working copies, mirroring a remote store's read-then-write
// cycle.
func (m *Map) Clone() *Map {
	cp := *m
	cp.Collaborators = append([]string(nil), m.Collaborators...)
	cp.Nodes = make([]Node, len(m.Nodes))
	for i, n := range m.Nodes {
		cp.Nodes[i] = n.clone()
	}
	cp.Edges = append([]Edge(nil), m.Edges...)
	return &cp
}

func (n Node) clone() Node {
	cp := n
	if n.Width != nil {
		w := *n.Width
		cp.Width = &w
	}
	if n.Height != nil {
		h := *n.Height
		cp.Height = &h
	}
	if n.Style != nil {
		cp.Style = make(map[string]interface{}, len(n.Style))
		for k, v := range n.Style {
			cp.Style[k] = v
		}
	}
	return cp
}
