package engine

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDAGBuilder_BuildGraph_EmptyNodes(t *testing.T) {
	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph([]DAGNode{})

	if err != nil {
		t.Fatalf("Expected no error for empty nodes, got: %v", err)
	}

	if len(graph.Nodes) != 0 {
		t.Errorf("Expected 0 nodes, got %d", len(graph.Nodes))
	}

	if len(graph.Edges) != 0 {
		t.Errorf("Expected 0 edges, got %d", len(graph.Edges))
	}

	if graph.Depth != 0 {
		t.Errorf("Expected depth 0, got %d", graph.Depth)
	}
}

func TestDAGBuilder_BuildGraph_SingleNode(t *testing.T) {
	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph([]DAGNode{{ID: "init", Group: "/ws"}})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(graph.Roots) != 1 {
		t.Errorf("Expected 1 root, got %d", len(graph.Roots))
	}

	if graph.Depth != 1 {
		t.Errorf("Expected depth 1, got %d", graph.Depth)
	}

	if node := graph.Nodes["init"]; node.Level != 0 {
		t.Errorf("Expected level 0, got %d", node.Level)
	}
}

func TestDAGBuilder_BuildGraph_LinearDependencies(t *testing.T) {
	// Given in reverse so the order must come from the edges.
	nodes := []DAGNode{
		{ID: "remote_create", Dependencies: []string{"remote_add"}},
		{ID: "remote_add", Dependencies: []string{"init"}},
		{ID: "init"},
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(nodes)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := []string{"init", "remote_add", "remote_create"}
	if diff := cmp.Diff(want, graph.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}

	if graph.Depth != 3 {
		t.Errorf("Expected depth 3, got %d", graph.Depth)
	}

	for i, id := range want {
		if graph.Nodes[id].Level != i {
			t.Errorf("%s should be at level %d, got %d", id, i, graph.Nodes[id].Level)
		}
	}

	if err := builder.ValidateGraph(graph); err != nil {
		t.Errorf("Expected valid graph, got: %v", err)
	}
}

func TestDAGBuilder_BuildGraph_StableOrder(t *testing.T) {
	tests := []struct {
		name  string
		nodes []DAGNode
		want  []string
	}{
		{
			name:  "independent nodes keep input order",
			nodes: []DAGNode{{ID: "c"}, {ID: "a"}, {ID: "b"}},
			want:  []string{"c", "a", "b"},
		},
		{
			name: "ready node with lower position wins",
			nodes: []DAGNode{
				{ID: "branch", Dependencies: []string{"init"}},
				{ID: "mkdir"},
				{ID: "init", Dependencies: []string{"mkdir"}},
				{ID: "remote", Dependencies: []string{"init"}},
			},
			want: []string{"mkdir", "init", "branch", "remote"},
		},
		{
			name: "diamond",
			nodes: []DAGNode{
				{ID: "a"},
				{ID: "b", Dependencies: []string{"a"}},
				{ID: "c", Dependencies: []string{"a"}},
				{ID: "d", Dependencies: []string{"b", "c"}},
			},
			want: []string{"a", "b", "c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for run := 0; run < 5; run++ {
				graph, err := NewDAGBuilder().BuildGraph(tt.nodes)
				if err != nil {
					t.Fatalf("Expected no error, got: %v", err)
				}
				if diff := cmp.Diff(tt.want, graph.Order); diff != "" {
					t.Fatalf("Order mismatch on run %d (-want +got):\n%s", run, diff)
				}
			}
		})
	}
}

func TestDAGBuilder_DetectCycles(t *testing.T) {
	tests := []struct {
		name  string
		nodes []DAGNode
	}{
		{
			name: "simple",
			nodes: []DAGNode{
				{ID: "a", Dependencies: []string{"b"}},
				{ID: "b", Dependencies: []string{"a"}},
			},
		},
		{
			name: "three nodes",
			nodes: []DAGNode{
				{ID: "a", Dependencies: []string{"c"}},
				{ID: "b", Dependencies: []string{"a"}},
				{ID: "c", Dependencies: []string{"b"}},
			},
		},
		{
			name:  "self",
			nodes: []DAGNode{{ID: "a", Dependencies: []string{"a"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDAGBuilder().BuildGraph(tt.nodes)
			if err == nil {
				t.Fatal("Expected error for cycle, got nil")
			}
			if !strings.Contains(err.Error(), "circular dependency") {
				t.Errorf("Expected circular dependency error, got: %v", err)
			}
			if !IsPermanent(err) {
				t.Errorf("Expected permanent error, got class of %v", err)
			}
		})
	}
}

func TestDAGBuilder_InvalidNodes(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []DAGNode
		wantErr string
	}{
		{
			name:    "missing dependency",
			nodes:   []DAGNode{{ID: "a", Dependencies: []string{"ghost"}}},
			wantErr: "non-existent node ghost",
		},
		{
			name:    "duplicate id",
			nodes:   []DAGNode{{ID: "a"}, {ID: "a"}},
			wantErr: "duplicate graph node ID",
		},
		{
			name:    "empty id",
			nodes:   []DAGNode{{ID: ""}},
			wantErr: "empty ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDAGBuilder().BuildGraph(tt.nodes)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
			if ErrorCode(err) != ErrCodeValidation {
				t.Errorf("Expected code %s, got %s", ErrCodeValidation, ErrorCode(err))
			}
		})
	}
}

func TestDAGBuilder_ToDOT(t *testing.T) {
	nodes := []DAGNode{
		{ID: "n1", Label: "git.init", Group: "/ws/a"},
		{ID: "n2", Label: "git.remote_add", Group: "/ws/a", Dependencies: []string{"n1"}},
		{ID: "n3", Label: "git.init", Group: "/ws/b"},
	}

	builder := NewDAGBuilder()
	if _, err := builder.BuildGraph(nodes); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	dot := builder.ToDOT()

	for _, want := range []string{
		"digraph ExecutionGraph {",
		`label="/ws/a";`,
		`label="/ws/b";`,
		`"n1" [label="git.init"];`,
		`"n1" -> "n2";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected DOT output to contain %q, got:\n%s", want, dot)
		}
	}

	if strings.Count(dot, "subgraph cluster_") != 2 {
		t.Errorf("Expected 2 clusters, got:\n%s", dot)
	}
}
