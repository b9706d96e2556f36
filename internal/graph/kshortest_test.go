package graph

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKShortestPathsDiamond(t *testing.T) {
	g := diamond(t)

	paths := g.KShortestPaths("a", "d", 5, nil)
	require.Len(t, paths, 3, "only three simple paths exist")

	assert.Equal(t, []NodeID{"a", "b", "d"}, paths[0].Route)
	assert.Equal(t, 2.0, paths[0].Length)
	assert.Equal(t, []NodeID{"a", "c", "d"}, paths[1].Route)
	assert.Equal(t, 3.0, paths[1].Length)
	assert.Equal(t, []NodeID{"a", "d"}, paths[2].Route)
	assert.Equal(t, 5.0, paths[2].Length)
}

func TestKShortestPathsLimits(t *testing.T) {
	g := diamond(t)

	assert.Len(t, g.KShortestPaths("a", "d", 1, nil), 1)
	assert.Nil(t, g.KShortestPaths("a", "d", 0, nil))
	assert.Empty(t, g.KShortestPaths("d", "a", 3, nil), "disconnected pair")
	assert.Empty(t, g.KShortestPaths("a", "missing", 3, nil))
}

func TestKShortestPathsTiesInDiscoveryOrder(t *testing.T) {
	g, err := NewGraph(GraphData{
		Nodes: []Node{{ID: "s"}, {ID: "x"}, {ID: "y"}, {ID: "z"}, {ID: "t"}},
		Edges: []Edge{
			{ID: "sx", U: "s", V: "x", Weight: 1},
			{ID: "sy", U: "s", V: "y", Weight: 1},
			{ID: "sz", U: "s", V: "z", Weight: 1},
			{ID: "xt", U: "x", V: "t", Weight: 1},
			{ID: "yt", U: "y", V: "t", Weight: 1},
			{ID: "zt", U: "z", V: "t", Weight: 1},
		},
	})
	require.NoError(t, err)

	paths := g.KShortestPaths("s", "t", 3, nil)
	require.Len(t, paths, 3)
	assert.Equal(t, []NodeID{"s", "x", "t"}, paths[0].Route)
	assert.Equal(t, []NodeID{"s", "y", "t"}, paths[1].Route)
	assert.Equal(t, []NodeID{"s", "z", "t"}, paths[2].Route)
}

func TestKShortestPathsOnGrid(t *testing.T) {
	g := randomGrid(t, GridSpec{Cols: 3, Rows: 3, Spacing: 100, GreenTime: 30, Weight: 1, Capacity: 100}, 1)

	// Six monotone 4-hop routes cross a 3×3 grid corner to corner.
	paths := g.KShortestPaths(GridNodeID(0, 0), GridNodeID(2, 2), 6, nil)
	require.Len(t, paths, 6)
	for _, p := range paths {
		assert.Equal(t, 4.0, p.Length)
	}
	more := g.KShortestPaths(GridNodeID(0, 0), GridNodeID(2, 2), 7, nil)
	require.Len(t, more, 7)
	assert.Greater(t, more[6].Length, 4.0)
}

func isSimple(route []NodeID) bool {
	seen := make(map[NodeID]bool, len(route))
	for _, n := range route {
		if seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}

func TestKShortestPathsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("at most k distinct simple paths in non-decreasing order", prop.ForAll(
		func(seed int64, n, k int) bool {
			g := randomGraph(seed, n, 0.5)
			nodes := g.Nodes()
			start, end := nodes[0].ID, nodes[len(nodes)-1].ID

			paths := g.KShortestPaths(start, end, k, nil)
			if len(paths) > k {
				return false
			}
			keys := make(map[string]bool)
			for i, p := range paths {
				if !isSimple(p.Route) || !g.ValidRoute(p.Route) {
					return false
				}
				if p.Route[0] != start || p.Route[len(p.Route)-1] != end {
					return false
				}
				sum, _ := g.PathLength(p.Route, nil)
				if sum != p.Length {
					return false
				}
				if i > 0 && p.Length < paths[i-1].Length {
					return false
				}
				key := routeKey(p.Route)
				if keys[key] {
					return false
				}
				keys[key] = true
			}

			_, err := g.ShortestPath(start, end, nil, nil)
			return (err == nil) == (len(paths) > 0)
		},
		gen.Int64(),
		gen.IntRange(2, 7),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
