package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindlink-backend/domain/mindmap"
	"mindlink-backend/infrastructure/persistence/memory"
	"mindlink-backend/interfaces/ws"
	"mindlink-backend/pkg/observability"
)

func startServer(t *testing.T) (string, *memory.MapRepository) {
	t.Helper()
	repo := memory.NewMapRepository()
	hub := ws.NewHub(repo, zap.NewNop(), observability.NewMetrics(prometheus.NewRegistry()))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), repo
}

func seedMap(t *testing.T, repo *memory.MapRepository) *mindmap.Map {
	t.Helper()
	m := mindmap.New("owner-1", "Plan")
	m.Nodes = []mindmap.Node{{ID: "n1", Type: "idea", Content: "Root"}}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func dialAndJoin(t *testing.T, url, mapID, username string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Join(ctx, mapID, username))
	return c
}

func TestJoinLoadsSnapshot(t *testing.T) {
	url, repo := startServer(t)
	m := seedMap(t, repo)

	c := dialAndJoin(t, url, m.ID, "alice")

	nodes := c.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "n1", nodes[0].ID)
	assert.Equal(t, "Root", nodes[0].Content)
}

func TestJoinUnknownMapTimesOut(t *testing.T) {
	url, _ := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	c, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close()

	err = c.Join(ctx, "no-such-map", "alice")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, c.Nodes())
}

func TestOperationsConvergeAcrossClients(t *testing.T) {
	url, repo := startServer(t)
	m := seedMap(t, repo)

	a := dialAndJoin(t, url, m.ID, "alice")
	b := dialAndJoin(t, url, m.ID, "bob")

	require.NoError(t, a.AddNode(mindmap.Node{ID: "n2", Type: "idea", Content: "Idea", X: 10, Y: 20}))

	// Sender sees its own change immediately.
	require.Len(t, a.Nodes(), 2)

	// Peer and store converge.
	require.Eventually(t, func() bool {
		for _, n := range b.Nodes() {
			if n.ID == "n2" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		stored, err := repo.FindByID(context.Background(), m.ID)
		return err == nil && stored.FindNode("n2") != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.EditNodeContent("n2", "Renamed"))
	require.Eventually(t, func() bool {
		for _, n := range a.Nodes() {
			if n.ID == "n2" && n.Content == "Renamed" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.AddEdge(mindmap.Edge{ID: "e1", Source: "n1", Target: "n2"}))
	require.NoError(t, a.DeleteNode("n2"))
	require.Eventually(t, func() bool {
		return len(b.Edges()) == 0 && len(b.Nodes()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRosterTracksJoinsAndLeaves(t *testing.T) {
	url, repo := startServer(t)
	m := seedMap(t, repo)

	a := dialAndJoin(t, url, m.ID, "alice")
	b := dialAndJoin(t, url, m.ID, "bob")

	require.Eventually(t, func() bool {
		return len(a.Roster()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	b.Close()

	require.Eventually(t, func() bool {
		roster := a.Roster()
		return len(roster) == 1 && roster[0].Username == "alice"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCursorSharing(t *testing.T) {
	url, repo := startServer(t)
	m := seedMap(t, repo)

	a := dialAndJoin(t, url, m.ID, "alice")
	b := dialAndJoin(t, url, m.ID, "bob")

	require.NoError(t, a.SendCursor(12, 34))

	require.Eventually(t, func() bool {
		for _, cur := range b.Cursors() {
			if cur.Username == "alice" && cur.X == 12 && cur.Y == 34 && cur.Color != "" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// Cursors are one-way; the sender tracks only peers.
	assert.Empty(t, a.Cursors())
}
