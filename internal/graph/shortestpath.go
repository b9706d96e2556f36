package graph

import (
	"container/heap"
	"fmt"
)

// WeightFunc returns the traversal cost of an edge. It must be non-negative.
type WeightFunc func(e Edge) float64

// BaseWeight returns the edge's nominal weight.
func BaseWeight(e Edge) float64 { return e.Weight }

// PathInfo holds the result of a shortest-path computation.
type PathInfo struct {
	Route  []NodeID // ordered node IDs from start to end
	Length float64  // total weight along Route
}

// SearchOptions restricts a search. A nil *SearchOptions excludes nothing.
type SearchOptions struct {
	ExcludeNodes map[NodeID]bool
	ExcludeEdges map[EdgeID]bool
}

func (o *SearchOptions) excludesNode(id NodeID) bool {
	return o != nil && o.ExcludeNodes[id]
}

func (o *SearchOptions) excludesEdge(id EdgeID) bool {
	return o != nil && o.ExcludeEdges[id]
}

// ShortestPath runs Dijkstra from start to end using weight for edge costs.
// Ties between equal-cost frontier entries are broken by push order, which
// follows edge insertion order, so results are deterministic.
// Returns ErrNoPath (wrapped) when end is unreachable and ErrNodeNotFound
// for unknown endpoints.
func (g *Graph) ShortestPath(start, end NodeID, weight WeightFunc, opts *SearchOptions) (PathInfo, error) {
	if !g.HasNode(start) {
		return PathInfo{}, fmt.Errorf("start %q: %w", start, ErrNodeNotFound)
	}
	if !g.HasNode(end) {
		return PathInfo{}, fmt.Errorf("end %q: %w", end, ErrNodeNotFound)
	}
	if opts.excludesNode(start) || opts.excludesNode(end) {
		return PathInfo{}, fmt.Errorf("from %q to %q: %w", start, end, ErrNoPath)
	}
	if start == end {
		return PathInfo{Route: []NodeID{start}, Length: 0}, nil
	}
	if weight == nil {
		weight = BaseWeight
	}

	dist := map[NodeID]float64{start: 0}
	prev := make(map[NodeID]NodeID)
	settled := make(map[NodeID]bool)

	pq := &priorityQueue{}
	seq := 0
	heap.Push(pq, &pqItem{node: start, priority: 0, seq: seq})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pqItem)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true
		if cur.node == end {
			break
		}
		for _, idx := range g.out[cur.node] {
			e := g.edges[idx]
			if settled[e.V] || opts.excludesEdge(e.ID) || opts.excludesNode(e.V) {
				continue
			}
			alt := dist[cur.node] + weight(e)
			if d, seen := dist[e.V]; !seen || alt < d {
				dist[e.V] = alt
				prev[e.V] = cur.node
				seq++
				heap.Push(pq, &pqItem{node: e.V, priority: alt, seq: seq})
			}
		}
	}

	if !settled[end] {
		return PathInfo{}, fmt.Errorf("from %q to %q: %w", start, end, ErrNoPath)
	}
	return PathInfo{Route: reconstructPath(prev, start, end), Length: dist[end]}, nil
}

func reconstructPath(prev map[NodeID]NodeID, start, end NodeID) []NodeID {
	route := []NodeID{end}
	for u := end; u != start; {
		u = prev[u]
		route = append(route, u)
	}
	for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
		route[i], route[j] = route[j], route[i]
	}
	return route
}

// BFS returns a minimum-hop route from start to end, ignoring weights.
// Neighbours are explored in edge insertion order.
func (g *Graph) BFS(start, end NodeID) ([]NodeID, error) {
	if !g.HasNode(start) {
		return nil, fmt.Errorf("start %q: %w", start, ErrNodeNotFound)
	}
	if !g.HasNode(end) {
		return nil, fmt.Errorf("end %q: %w", end, ErrNodeNotFound)
	}
	if start == end {
		return []NodeID{start}, nil
	}

	prev := map[NodeID]NodeID{start: start}
	queue := []NodeID{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, idx := range g.out[u] {
			v := g.edges[idx].V
			if _, seen := prev[v]; seen {
				continue
			}
			prev[v] = u
			if v == end {
				return reconstructPath(prev, start, end), nil
			}
			queue = append(queue, v)
		}
	}
	return nil, fmt.Errorf("from %q to %q: %w", start, end, ErrNoPath)
}

// PathLength sums weight over consecutive edges of route, in order.
func (g *Graph) PathLength(route []NodeID, weight WeightFunc) (float64, error) {
	if weight == nil {
		weight = BaseWeight
	}
	total := 0.0
	for i := 0; i+1 < len(route); i++ {
		e, err := g.GetEdge(route[i], route[i+1])
		if err != nil {
			return 0, err
		}
		total += weight(e)
	}
	return total, nil
}

// ValidRoute reports whether every consecutive pair of route is connected.
func (g *Graph) ValidRoute(route []NodeID) bool {
	if len(route) == 0 {
		return false
	}
	if len(route) == 1 {
		return g.HasNode(route[0])
	}
	_, err := g.PathLength(route, nil)
	return err == nil
}

// ---------- internal PQ ----------

type pqItem struct {
	node     NodeID
	priority float64
	seq      int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}
