package graph

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond: a→b→d costs 2, a→c→d costs 3, a→d costs 5.
func diamond(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(GraphData{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []Edge{
			{ID: "ab", U: "a", V: "b", Weight: 1},
			{ID: "bd", U: "b", V: "d", Weight: 1},
			{ID: "ac", U: "a", V: "c", Weight: 1},
			{ID: "cd", U: "c", V: "d", Weight: 2},
			{ID: "ad", U: "a", V: "d", Weight: 5},
		},
	})
	require.NoError(t, err)
	return g
}

// randomGraph builds a graph of n nodes with random directed edges and
// integer weights in [0, 9].
func randomGraph(seed int64, n int, density float64) *Graph {
	rng := rand.New(rand.NewSource(seed))
	g, _ := NewGraph(GraphData{})
	for i := 0; i < n; i++ {
		_ = g.AddNode(Node{ID: string(rune('a' + i))})
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || rng.Float64() > density {
				continue
			}
			_ = g.AddEdge(Edge{
				ID:     string(rune('a'+i)) + string(rune('a'+j)),
				U:      string(rune('a' + i)),
				V:      string(rune('a' + j)),
				Weight: float64(rng.Intn(10)),
			})
		}
	}
	return g
}

func TestShortestPathPrefersCheapestRoute(t *testing.T) {
	g := diamond(t)

	p, err := g.ShortestPath("a", "d", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"a", "b", "d"}, p.Route)
	assert.Equal(t, 2.0, p.Length)
}

func TestShortestPathCustomWeight(t *testing.T) {
	g := diamond(t)
	heavyB := func(e Edge) float64 {
		if e.U == "b" || e.V == "b" {
			return e.Weight * 10
		}
		return e.Weight
	}

	p, err := g.ShortestPath("a", "d", heavyB, nil)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"a", "c", "d"}, p.Route)
	assert.Equal(t, 3.0, p.Length)
}

func TestShortestPathExclusions(t *testing.T) {
	g := diamond(t)

	p, err := g.ShortestPath("a", "d", nil, &SearchOptions{
		ExcludeNodes: map[NodeID]bool{"b": true},
		ExcludeEdges: map[EdgeID]bool{"cd": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"a", "d"}, p.Route)

	_, err = g.ShortestPath("a", "d", nil, &SearchOptions{ExcludeNodes: map[NodeID]bool{"d": true}})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestShortestPathSameNode(t *testing.T) {
	g := diamond(t)
	p, err := g.ShortestPath("c", "c", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"c"}, p.Route)
	assert.Zero(t, p.Length)
}

func TestShortestPathNoPath(t *testing.T) {
	g := diamond(t)

	_, err := g.ShortestPath("d", "a", nil, nil)
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = g.ShortestPath("a", "zz", nil, nil)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestShortestPathGridCorners(t *testing.T) {
	g := randomGrid(t, DefaultGridSpec(), 3)

	p, err := g.ShortestPath(GridNodeID(0, 0), GridNodeID(4, 4), nil, nil)
	require.NoError(t, err)
	assert.Len(t, p.Route, 9, "8 hops between opposite corners")
	assert.Equal(t, 8.0, p.Length)
}

func TestBFS(t *testing.T) {
	g := diamond(t)

	route, err := g.BFS("a", "d")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"a", "d"}, route, "fewest hops, weights ignored")

	route, err = g.BFS("b", "b")
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"b"}, route)

	_, err = g.BFS("d", "a")
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = g.BFS("x", "a")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestPathLengthAndValidRoute(t *testing.T) {
	g := diamond(t)

	l, err := g.PathLength([]NodeID{"a", "c", "d"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, l)

	_, err = g.PathLength([]NodeID{"a", "b", "c"}, nil)
	assert.ErrorIs(t, err, ErrEdgeNotFound)

	assert.True(t, g.ValidRoute([]NodeID{"a", "b", "d"}))
	assert.True(t, g.ValidRoute([]NodeID{"a"}))
	assert.False(t, g.ValidRoute(nil))
	assert.False(t, g.ValidRoute([]NodeID{"d", "a"}))
}

func TestShortestPathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("length equals the sum of edge weights along the route", prop.ForAll(
		func(seed int64, n int) bool {
			g := randomGraph(seed, n, 0.4)
			for _, s := range g.Nodes() {
				for _, e := range g.Nodes() {
					p, err := g.ShortestPath(s.ID, e.ID, nil, nil)
					if err != nil {
						continue
					}
					sum, err := g.PathLength(p.Route, nil)
					if err != nil || sum != p.Length {
						return false
					}
					if p.Route[0] != s.ID || p.Route[len(p.Route)-1] != e.ID {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(2, 8),
	))

	properties.Property("BFS finds a route exactly when Dijkstra does", prop.ForAll(
		func(seed int64, n int) bool {
			g := randomGraph(seed, n, 0.3)
			for _, s := range g.Nodes() {
				for _, e := range g.Nodes() {
					_, errD := g.ShortestPath(s.ID, e.ID, nil, nil)
					route, errB := g.BFS(s.ID, e.ID)
					if (errD == nil) != (errB == nil) {
						return false
					}
					if errB == nil && !g.ValidRoute(route) {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(2, 8),
	))

	properties.TestingRun(t)
}
