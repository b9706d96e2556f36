package graph

import (
	"slices"
	"strings"
)

// KShortestPaths returns up to k loopless paths from start to end in order of
// non-decreasing length, using Yen's algorithm. Candidates of equal length
// are taken in the order they were discovered. Returns nil when k ≤ 0 or no
// path exists.
//
// Scratch exclusion sets are built per spur search; the graph itself is never
// modified.
func (g *Graph) KShortestPaths(start, end NodeID, k int, weight WeightFunc) []PathInfo {
	if k <= 0 {
		return nil
	}
	if weight == nil {
		weight = BaseWeight
	}
	first, err := g.ShortestPath(start, end, weight, nil)
	if err != nil {
		return nil
	}

	found := []PathInfo{first}
	seen := map[string]bool{routeKey(first.Route): true}
	var candidates []PathInfo

	for len(found) < k {
		last := found[len(found)-1].Route
		for i := 0; i < len(last)-1; i++ {
			spur := last[i]
			root := last[:i+1]

			opts := &SearchOptions{
				ExcludeNodes: make(map[NodeID]bool, i),
				ExcludeEdges: make(map[EdgeID]bool),
			}
			for _, p := range found {
				if len(p.Route) > i+1 && slices.Equal(p.Route[:i+1], root) {
					if e, err := g.GetEdge(p.Route[i], p.Route[i+1]); err == nil {
						opts.ExcludeEdges[e.ID] = true
					}
				}
			}
			for _, n := range root[:i] {
				opts.ExcludeNodes[n] = true
			}

			spurPath, err := g.ShortestPath(spur, end, weight, opts)
			if err != nil {
				continue
			}
			route := make([]NodeID, 0, i+len(spurPath.Route))
			route = append(route, root[:i]...)
			route = append(route, spurPath.Route...)

			key := routeKey(route)
			if seen[key] {
				continue
			}
			seen[key] = true

			length, err := g.PathLength(route, weight)
			if err != nil {
				continue
			}
			candidates = append(candidates, PathInfo{Route: route, Length: length})
		}

		if len(candidates) == 0 {
			break
		}
		best := 0
		for j := 1; j < len(candidates); j++ {
			if candidates[j].Length < candidates[best].Length {
				best = j
			}
		}
		found = append(found, candidates[best])
		candidates = append(candidates[:best], candidates[best+1:]...)
	}
	return found
}

func routeKey(route []NodeID) string {
	return strings.Join(route, "\x00")
}
