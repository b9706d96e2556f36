// Package graph provides the road network model and path-search algorithms
// for the traffic simulation.
package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/cxd309/traffic-engine/internal/signal"
)

// NodeID and EdgeID are string aliases used as identifiers.
type (
	NodeID = string
	EdgeID = string
)

// NodeType classifies a node in the network.
type NodeType string

const (
	NodeTypeIntersection NodeType = "intersection"
)

var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrEdgeNotFound   = errors.New("edge not found")
	ErrNegativeWeight = errors.New("negative edge weight")
	ErrNoPath         = errors.New("no path")
)

// coordTolerance is the distance under which two coordinates are considered
// aligned on an axis.
const coordTolerance = 1e-9

// Coordinate is a 2D position in metres.
type Coordinate struct {
	X float64 `json:"x"` // metres
	Y float64 `json:"y"` // metres
}

// Node is an intersection in the network graph.
type Node struct {
	ID   NodeID     `json:"node_id"`
	Loc  Coordinate `json:"loc"`
	Type NodeType   `json:"type,omitempty"`
}

// Edge is a directed road between two intersections. Weight is the nominal
// traversal cost; live congestion is tracked outside the edge by road ID.
type Edge struct {
	ID          EdgeID  `json:"edge_id"`
	U           NodeID  `json:"u"`
	V           NodeID  `json:"v"`
	Weight      float64 `json:"weight"`
	Capacity    float64 `json:"capacity"`               // vehicles
	CurrentFlow float64 `json:"current_flow,omitempty"` // informational
}

// LightData attaches an initial light state to a node.
type LightData struct {
	NodeID NodeID `json:"node_id"`
	signal.Light
}

// GraphData is the serialisable input representation of a road network.
type GraphData struct {
	Nodes  []Node      `json:"nodes"`
	Edges  []Edge      `json:"edges"`
	Lights []LightData `json:"lights,omitempty"`
}

// Graph is a directed weighted road network with optional traffic lights.
//
// Graph is not safe for concurrent mutation. Path searches only read it, so
// any number of them may run together as long as nothing mutates the lights
// or weights at the same time.
type Graph struct {
	nodes       []Node
	edges       []Edge
	nodeMap     map[NodeID]int
	edgeMap     map[EdgeID]int
	edgeByNodes map[NodeID]map[NodeID]int // u → v → edge index
	out         map[NodeID][]int
	in          map[NodeID][]int
	lights      map[NodeID]*signal.Light
}

// NewGraph builds a Graph from GraphData, returning an error if any node, edge
// or light reference is invalid.
func NewGraph(data GraphData) (*Graph, error) {
	g := &Graph{
		nodeMap:     make(map[NodeID]int),
		edgeMap:     make(map[EdgeID]int),
		edgeByNodes: make(map[NodeID]map[NodeID]int),
		out:         make(map[NodeID][]int),
		in:          make(map[NodeID][]int),
		lights:      make(map[NodeID]*signal.Light),
	}
	for _, n := range data.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	for _, l := range data.Lights {
		if err := g.AddLight(l.NodeID, l.Light); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddNode adds a node to the graph. Returns an error if the node ID already exists.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return errors.New("node with empty id")
	}
	if _, exists := g.nodeMap[n.ID]; exists {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	if n.Type == "" {
		n.Type = NodeTypeIntersection
	}
	g.nodeMap[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// AddEdge adds a directed edge to the graph. Returns an error if the edge ID
// already exists, either endpoint is missing, the pair is already connected,
// or the weight is negative.
func (g *Graph) AddEdge(e Edge) error {
	if _, exists := g.edgeMap[e.ID]; exists {
		return fmt.Errorf("edge %q already exists", e.ID)
	}
	if _, ok := g.nodeMap[e.U]; !ok {
		return fmt.Errorf("edge %q: source node %q: %w", e.ID, e.U, ErrNodeNotFound)
	}
	if _, ok := g.nodeMap[e.V]; !ok {
		return fmt.Errorf("edge %q: target node %q: %w", e.ID, e.V, ErrNodeNotFound)
	}
	if e.Weight < 0 || math.IsNaN(e.Weight) {
		return fmt.Errorf("edge %q: weight %v: %w", e.ID, e.Weight, ErrNegativeWeight)
	}
	if _, dup := g.edgeByNodes[e.U][e.V]; dup {
		return fmt.Errorf("edge %q: %q → %q already connected", e.ID, e.U, e.V)
	}

	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.edgeMap[e.ID] = idx
	if g.edgeByNodes[e.U] == nil {
		g.edgeByNodes[e.U] = make(map[NodeID]int)
	}
	g.edgeByNodes[e.U][e.V] = idx
	g.out[e.U] = append(g.out[e.U], idx)
	g.in[e.V] = append(g.in[e.V], idx)
	return nil
}

// AddLight installs a light at node id.
func (g *Graph) AddLight(id NodeID, l signal.Light) error {
	if _, ok := g.nodeMap[id]; !ok {
		return fmt.Errorf("light at %q: %w", id, ErrNodeNotFound)
	}
	if _, exists := g.lights[id]; exists {
		return fmt.Errorf("light at %q already exists", id)
	}
	if err := l.Validate(); err != nil {
		return fmt.Errorf("light at %q: %w", id, err)
	}
	g.lights[id] = &l
	return nil
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodeMap[id]
	return ok
}

// Node looks up a node by its ID.
func (g *Graph) Node(id NodeID) (Node, bool) {
	idx, ok := g.nodeMap[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[idx], true
}

// GetEdgeByID looks up an edge by its ID.
func (g *Graph) GetEdgeByID(id EdgeID) (Edge, error) {
	idx, ok := g.edgeMap[id]
	if !ok {
		return Edge{}, fmt.Errorf("edge %q: %w", id, ErrEdgeNotFound)
	}
	return g.edges[idx], nil
}

// GetEdge returns the directed edge from u to v.
func (g *Graph) GetEdge(u, v NodeID) (Edge, error) {
	if m, ok := g.edgeByNodes[u]; ok {
		if idx, ok := m[v]; ok {
			return g.edges[idx], nil
		}
	}
	return Edge{}, fmt.Errorf("no edge from %q to %q: %w", u, v, ErrEdgeNotFound)
}

// OutEdges returns the roads leaving id, in insertion order.
func (g *Graph) OutEdges(id NodeID) []Edge {
	return g.collect(g.out[id])
}

// InEdges returns the roads arriving at id, in insertion order.
func (g *Graph) InEdges(id NodeID) []Edge {
	return g.collect(g.in[id])
}

func (g *Graph) collect(idxs []int) []Edge {
	if len(idxs) == 0 {
		return nil
	}
	edges := make([]Edge, len(idxs))
	for i, idx := range idxs {
		edges[i] = g.edges[idx]
	}
	return edges
}

// Nodes returns a copy of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// SetEdgeWeight replaces the base weight of the road from u to v.
func (g *Graph) SetEdgeWeight(u, v NodeID, w float64) error {
	if w < 0 || math.IsNaN(w) {
		return fmt.Errorf("weight %v: %w", w, ErrNegativeWeight)
	}
	e, err := g.GetEdge(u, v)
	if err != nil {
		return err
	}
	g.edges[g.edgeMap[e.ID]].Weight = w
	return nil
}

// Direction classifies the road from u to v by comparing endpoint
// coordinates: a shared X is north-south, a shared Y is east-west. The second
// result is false for roads that are neither, or unknown endpoints.
func (g *Graph) Direction(u, v NodeID) (signal.Phase, bool) {
	a, okA := g.Node(u)
	b, okB := g.Node(v)
	if !okA || !okB {
		return "", false
	}
	switch {
	case math.Abs(a.Loc.X-b.Loc.X) <= coordTolerance:
		return signal.NorthSouth, true
	case math.Abs(a.Loc.Y-b.Loc.Y) <= coordTolerance:
		return signal.EastWest, true
	default:
		return "", false
	}
}

// Light returns a copy of the light at id.
func (g *Graph) Light(id NodeID) (signal.Light, bool) {
	l, ok := g.lights[id]
	if !ok {
		return signal.Light{}, false
	}
	return *l, true
}

// Lights returns a copy of every light keyed by node.
func (g *Graph) Lights() map[NodeID]signal.Light {
	out := make(map[NodeID]signal.Light, len(g.lights))
	for id, l := range g.lights {
		out[id] = *l
	}
	return out
}

// LightCount returns the number of signal-controlled intersections.
func (g *Graph) LightCount() int { return len(g.lights) }

// StepLights advances every light by one second and returns how many flipped.
func (g *Graph) StepLights() int {
	flipped := 0
	for _, l := range g.lights {
		if l.Step() {
			flipped++
		}
	}
	return flipped
}

// ApplyTimings writes new green times into the lights. Entries for nodes
// without a light, or with non-positive times, are skipped. Returns the number
// of lights retimed.
func (g *Graph) ApplyTimings(timings map[NodeID]signal.Timing) int {
	applied := 0
	for id, t := range timings {
		l, ok := g.lights[id]
		if !ok {
			continue
		}
		if err := l.Retime(t); err != nil {
			continue
		}
		applied++
	}
	return applied
}

// Data returns the serialisable form of the graph, including current light state.
func (g *Graph) Data() GraphData {
	data := GraphData{Nodes: g.Nodes(), Edges: g.Edges()}
	for _, n := range g.nodes {
		if l, ok := g.lights[n.ID]; ok {
			data.Lights = append(data.Lights, LightData{NodeID: n.ID, Light: *l})
		}
	}
	return data
}
