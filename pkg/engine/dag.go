package engine

import (
	"fmt"
	"sort"
	"strings"
)

// DAGNode is one vertex handed to the DAGBuilder.
type DAGNode struct {
	// ID uniquely identifies the node.
	ID string

	// Label is shown in DOT output.
	Label string

	// Group clusters nodes in DOT output (the target path for operations).
	Group string

	// Dependencies lists the IDs that must come before this node.
	Dependencies []string
}

// ExecutionGraph is the ordered dependency graph of a plan.
type ExecutionGraph struct {
	// Nodes maps node IDs to graph nodes.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Edges lists every dependency edge (From must run before To).
	Edges []GraphEdge `json:"edges"`

	// Roots lists the nodes without dependencies, in input order.
	Roots []string `json:"roots"`

	// Depth is the number of levels.
	Depth int `json:"depth"`

	// Order is the deterministic topological order used for execution.
	Order []string `json:"order"`
}

// GraphNode is a node of an ExecutionGraph.
type GraphNode struct {
	ID           string   `json:"id"`
	Level        int      `json:"level"`
	Position     int      `json:"position"`
	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
}

// GraphEdge is a dependency edge.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DAGBuilder builds a directed acyclic graph from nodes.
// It detects cycles, assigns levels, and computes a stable topological order:
// whenever several nodes are ready, the one given first wins.
type DAGBuilder struct {
	// nodes maps IDs to their input nodes
	nodes map[string]*DAGNode

	// index is the input position of each node
	index map[string]int

	// ids lists node IDs in input order
	ids []string

	// adjacencyList maps node IDs to their dependents
	adjacencyList map[string][]string

	// reverseAdjacencyList maps node IDs to their dependencies
	reverseAdjacencyList map[string][]string

	// inDegree tracks the number of incoming edges for each node
	inDegree map[string]int

	// levels groups node IDs by longest dependency chain
	levels [][]string

	// order is the stable topological order
	order []string
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		nodes:                make(map[string]*DAGNode),
		index:                make(map[string]int),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
	}
}

// BuildGraph constructs an execution graph from nodes.
func (b *DAGBuilder) BuildGraph(nodes []DAGNode) (*ExecutionGraph, error) {
	if len(nodes) == 0 {
		return &ExecutionGraph{
			Nodes: make(map[string]*GraphNode),
			Edges: make([]GraphEdge, 0),
			Roots: make([]string, 0),
			Order: make([]string, 0),
		}, nil
	}

	if err := b.initialize(nodes); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeOrder(); err != nil {
		return nil, err
	}

	return b.buildExecutionGraph(), nil
}

// initialize indexes the nodes and builds the adjacency lists.
func (b *DAGBuilder) initialize(nodes []DAGNode) error {
	for i := range nodes {
		node := &nodes[i]
		if node.ID == "" {
			return NewPermanentError("graph node has empty ID", nil).
				WithCode(ErrCodeValidation)
		}
		if _, exists := b.nodes[node.ID]; exists {
			return NewPermanentError(fmt.Sprintf("duplicate graph node ID: %s", node.ID), nil).
				WithCode(ErrCodeValidation)
		}

		b.nodes[node.ID] = node
		b.index[node.ID] = i
		b.ids = append(b.ids, node.ID)
		b.adjacencyList[node.ID] = make([]string, 0)
		b.reverseAdjacencyList[node.ID] = make([]string, 0)
		b.inDegree[node.ID] = 0
	}

	for _, id := range b.ids {
		node := b.nodes[id]
		for _, dep := range node.Dependencies {
			if _, exists := b.nodes[dep]; !exists {
				return NewPermanentError(
					fmt.Sprintf("node %s depends on non-existent node %s", id, dep),
					nil,
				).WithCode(ErrCodeValidation).WithResource(id)
			}

			// dep must complete before node can start
			b.adjacencyList[dep] = append(b.adjacencyList[dep], id)
			b.reverseAdjacencyList[id] = append(b.reverseAdjacencyList[id], dep)
			b.inDegree[id]++
		}
	}

	return nil
}

// detectCycles uses depth-first search to detect circular dependencies.
func (b *DAGBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, id := range b.ids {
		if visited[id] {
			continue
		}
		if cycle := b.detectCyclesUtil(id, visited, recStack, nil); cycle != nil {
			return NewPermanentError(
				fmt.Sprintf("circular dependency detected: %s", formatCycle(cycle)),
				nil,
			).WithCode(ErrCodeValidation)
		}
	}

	return nil
}

func (b *DAGBuilder) detectCyclesUtil(id string, visited, recStack map[string]bool, path []string) []string {
	visited[id] = true
	recStack[id] = true
	path = append(path, id)

	for _, dependent := range b.adjacencyList[id] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
			continue
		}
		if recStack[dependent] {
			for i, p := range path {
				if p == dependent {
					return append(append([]string{}, path[i:]...), dependent)
				}
			}
		}
	}

	recStack[id] = false
	return nil
}

// computeOrder runs Kahn's algorithm, always taking the ready node with the
// lowest input position, and records each node's level.
func (b *DAGBuilder) computeOrder() error {
	remaining := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		remaining[id] = degree
	}
	level := make(map[string]int, len(b.ids))

	ready := make([]string, 0)
	for _, id := range b.ids {
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool {
			return b.index[ready[i]] < b.index[ready[j]]
		})
		id := ready[0]
		ready = ready[1:]
		b.order = append(b.order, id)

		for _, dependent := range b.adjacencyList[id] {
			if level[id]+1 > level[dependent] {
				level[dependent] = level[id] + 1
			}
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(b.order) != len(b.ids) {
		return NewPermanentError("failed to order all nodes - possible cycle", nil).
			WithCode(ErrCodeInternal)
	}

	for _, id := range b.order {
		l := level[id]
		for len(b.levels) <= l {
			b.levels = append(b.levels, nil)
		}
		b.levels[l] = append(b.levels[l], id)
	}

	return nil
}

// buildExecutionGraph creates the final ExecutionGraph structure.
func (b *DAGBuilder) buildExecutionGraph() *ExecutionGraph {
	graph := &ExecutionGraph{
		Nodes: make(map[string]*GraphNode, len(b.ids)),
		Edges: make([]GraphEdge, 0),
		Roots: make([]string, 0),
		Depth: len(b.levels),
		Order: append([]string(nil), b.order...),
	}

	for lvl, ids := range b.levels {
		for _, id := range ids {
			graph.Nodes[id] = &GraphNode{
				ID:           id,
				Level:        lvl,
				Position:     b.index[id],
				Dependencies: b.reverseAdjacencyList[id],
				Dependents:   b.adjacencyList[id],
			}
		}
	}

	for _, id := range b.ids {
		if b.inDegree[id] == 0 {
			graph.Roots = append(graph.Roots, id)
		}
		for _, dep := range b.nodes[id].Dependencies {
			graph.Edges = append(graph.Edges, GraphEdge{From: dep, To: id})
		}
	}

	return graph
}

// ToDOT generates a DOT format representation of the DAG for visualization.
// Nodes are clustered by group.
func (b *DAGBuilder) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph ExecutionGraph {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	groups := make([]string, 0)
	members := make(map[string][]string)
	for _, id := range b.order {
		g := b.nodes[id].Group
		if _, seen := members[g]; !seen {
			groups = append(groups, g)
		}
		members[g] = append(members[g], id)
	}

	for i, g := range groups {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_%d {\n", i))
		sb.WriteString(fmt.Sprintf("    label=%q;\n", g))
		sb.WriteString("    style=dashed;\n")
		for _, id := range members[g] {
			node := b.nodes[id]
			label := node.Label
			if label == "" {
				label = id
			}
			sb.WriteString(fmt.Sprintf("    %q [label=%q];\n", id, label))
		}
		sb.WriteString("  }\n\n")
	}

	for _, id := range b.order {
		for _, dep := range b.nodes[id].Dependencies {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", dep, id))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}

// ValidateGraph performs additional validation on the built graph.
func (b *DAGBuilder) ValidateGraph(graph *ExecutionGraph) error {
	if len(graph.Nodes) != len(b.nodes) {
		return NewPermanentError("graph node count mismatch", nil).
			WithCode(ErrCodeInternal)
	}

	for _, edge := range graph.Edges {
		if _, exists := graph.Nodes[edge.From]; !exists {
			return NewPermanentError(fmt.Sprintf("edge references non-existent node: %s", edge.From), nil).
				WithCode(ErrCodeInternal)
		}
		if _, exists := graph.Nodes[edge.To]; !exists {
			return NewPermanentError(fmt.Sprintf("edge references non-existent node: %s", edge.To), nil).
				WithCode(ErrCodeInternal)
		}
	}

	for _, rootID := range graph.Roots {
		if len(graph.Nodes[rootID].Dependencies) > 0 {
			return NewPermanentError(fmt.Sprintf("root node %s has dependencies", rootID), nil).
				WithCode(ErrCodeInternal)
		}
	}

	// Order must respect every edge.
	pos := make(map[string]int, len(graph.Order))
	for i, id := range graph.Order {
		pos[id] = i
	}
	for _, edge := range graph.Edges {
		if pos[edge.From] >= pos[edge.To] {
			return NewPermanentError(fmt.Sprintf("order places %s before its dependency %s", edge.To, edge.From), nil).
				WithCode(ErrCodeInternal)
		}
	}

	return nil
}
