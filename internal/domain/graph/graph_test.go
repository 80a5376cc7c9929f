package graph

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linear(approvers ...string) ([]Node, []Edge) {
	nodes := []Node{{ID: "start", Type: NodeStart, Label: "Submit"}}
	edges := []Edge{}
	prev := "start"
	for _, a := range approvers {
		nodes = append(nodes, Node{ID: a, Type: NodeApprover, Label: a, ApproverIDs: []string{"user-" + a}})
		edges = append(edges, Edge{ID: prev + "-" + a, Source: prev, Target: a})
		prev = a
	}
	nodes = append(nodes, Node{ID: "end", Type: NodeEnd, Label: "Done"})
	edges = append(edges, Edge{ID: prev + "-end", Source: prev, Target: "end"})
	return nodes, edges
}

func TestNew_LinearChain(t *testing.T) {
	nodes, edges := linear("a1", "a2", "a3")

	g, err := New(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, "start", g.Start().ID)
	assert.Equal(t, []string{"a1", "a2", "a3"}, g.ApproverSequence())
	assert.Equal(t, 3, g.TotalSteps())
	assert.Equal(t, 1, g.StepNumber("a1"))
	assert.Equal(t, 3, g.StepNumber("a3"))
	assert.Equal(t, 0, g.StepNumber("end"))

	next, ok := g.NextStop("a3")
	require.True(t, ok)
	assert.Equal(t, NodeEnd, next.Type)

	_, ok = g.NextStop("end")
	assert.False(t, ok)
	_, ok = g.NextStop("missing")
	assert.False(t, ok)
}

func TestNew_DecisionNodesArePassThrough(t *testing.T) {
	nodes := []Node{
		{ID: "s", Type: NodeStart},
		{ID: "d", Type: NodeDecision, Condition: "amount > 1000"},
		{ID: "a1", Type: NodeApprover},
		{ID: "a2", Type: NodeApprover},
		{ID: "e", Type: NodeEnd},
	}
	edges := []Edge{
		{Source: "s", Target: "d"},
		{Source: "d", Target: "a1"},
		{Source: "d", Target: "a2"},
		{Source: "a1", Target: "e"},
		{Source: "a2", Target: "e"},
	}

	g, err := New(nodes, edges)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, g.ApproverSequence())

	next, ok := g.NextStop("s")
	require.True(t, ok)
	assert.Equal(t, "a1", next.ID)
}

func TestNew_DuplicateEdgesCollapse(t *testing.T) {
	nodes, edges := linear("a1")
	edges = append(edges, Edge{ID: "again", Source: "start", Target: "a1"})

	g, err := New(nodes, edges)
	require.NoError(t, err)
	assert.Len(t, g.Edges(), 2)
	assert.Equal(t, []string{"a1"}, g.Successors("start"))
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []Node
		edges  []Edge
		want   error
		nodeID string
	}{
		{
			name:  "missing start",
			nodes: []Node{{ID: "a", Type: NodeApprover}, {ID: "e", Type: NodeEnd}},
			edges: []Edge{{Source: "a", Target: "e"}},
			want:  ErrMissingStart,
		},
		{
			name: "multiple start",
			nodes: []Node{
				{ID: "s1", Type: NodeStart}, {ID: "s2", Type: NodeStart},
				{ID: "a", Type: NodeApprover}, {ID: "e", Type: NodeEnd},
			},
			want:   ErrMultipleStart,
			nodeID: "s2",
		},
		{
			name:  "missing end",
			nodes: []Node{{ID: "s", Type: NodeStart}, {ID: "a", Type: NodeApprover}},
			edges: []Edge{{Source: "s", Target: "a"}},
			want:  ErrMissingEnd,
		},
		{
			name:  "no approvers",
			nodes: []Node{{ID: "s", Type: NodeStart}, {ID: "e", Type: NodeEnd}},
			edges: []Edge{{Source: "s", Target: "e"}},
			want:  ErrNoApprovers,
		},
		{
			name: "approver off the followed path",
			nodes: []Node{
				{ID: "s", Type: NodeStart}, {ID: "e", Type: NodeEnd}, {ID: "a", Type: NodeApprover},
			},
			edges:  []Edge{{Source: "s", Target: "e"}, {Source: "s", Target: "a"}, {Source: "a", Target: "e"}},
			want:   ErrNoApprovers,
			nodeID: "s",
		},
		{
			name: "unreachable approver",
			nodes: []Node{
				{ID: "s", Type: NodeStart}, {ID: "a1", Type: NodeApprover},
				{ID: "a2", Type: NodeApprover}, {ID: "e", Type: NodeEnd},
			},
			edges:  []Edge{{Source: "s", Target: "a1"}, {Source: "a1", Target: "e"}, {Source: "a2", Target: "e"}},
			want:   ErrUnreachableNode,
			nodeID: "a2",
		},
		{
			name: "cycle",
			nodes: []Node{
				{ID: "s", Type: NodeStart}, {ID: "a1", Type: NodeApprover},
				{ID: "a2", Type: NodeApprover}, {ID: "e", Type: NodeEnd},
			},
			edges: []Edge{
				{Source: "s", Target: "a1"}, {Source: "a1", Target: "a2"},
				{Source: "a2", Target: "a1"}, {Source: "a2", Target: "e"},
			},
			want:   ErrCycleDetected,
			nodeID: "a1",
		},
		{
			name: "dangling approver",
			nodes: []Node{
				{ID: "s", Type: NodeStart}, {ID: "a1", Type: NodeApprover},
				{ID: "a2", Type: NodeApprover}, {ID: "e", Type: NodeEnd},
			},
			edges:  []Edge{{Source: "s", Target: "a1"}, {Source: "a1", Target: "e"}, {Source: "a1", Target: "a2"}},
			want:   ErrDanglingNode,
			nodeID: "a2",
		},
		{
			name:   "unknown edge target",
			nodes:  []Node{{ID: "s", Type: NodeStart}, {ID: "a", Type: NodeApprover}, {ID: "e", Type: NodeEnd}},
			edges:  []Edge{{Source: "s", Target: "ghost"}},
			want:   ErrUnknownNode,
			nodeID: "ghost",
		},
		{
			name:   "duplicate node",
			nodes:  []Node{{ID: "s", Type: NodeStart}, {ID: "s", Type: NodeEnd}},
			want:   ErrDuplicateNode,
			nodeID: "s",
		},
		{
			name:   "bad type",
			nodes:  []Node{{ID: "x", Type: "review"}},
			want:   ErrInvalidNodeType,
			nodeID: "x",
		},
		{
			name:  "empty id",
			nodes: []Node{{Type: NodeStart}},
			want:  ErrEmptyNodeID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.nodes, tt.edges)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.nodeID, ve.NodeID)
		})
	}
}

func TestApproverSequenceMatchesApproverCount(t *testing.T) {
	for n := 1; n <= 8; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("a%d", i+1)
		}
		nodes, edges := linear(ids...)

		g, err := New(nodes, edges)
		require.NoError(t, err)

		approverNodes := 0
		for _, node := range g.Nodes() {
			if node.Type == NodeApprover {
				approverNodes++
			}
		}
		assert.Equal(t, approverNodes, len(g.ApproverSequence()))
	}
}

func TestNode_Allows(t *testing.T) {
	open := Node{ID: "a", Type: NodeApprover}
	assert.True(t, open.Allows("anyone"))

	restricted := Node{ID: "b", Type: NodeApprover, ApproverIDs: []string{"u1", "u2"}}
	assert.True(t, restricted.Allows("u2"))
	assert.False(t, restricted.Allows("u3"))
}

func TestDecode_EditorDocuments(t *testing.T) {
	nodesJSON := []byte(`[
		{"id":"1","type":"start","position":{"x":0,"y":0},"data":{"label":"Start"}},
		{"id":"2","type":"approver","data":{"label":"Manager","approverIds":["mgr"],"approverName":"Mia"}},
		{"id":"3","data":{"label":"Finance","type":"approver"}},
		{"id":"4","type":"end","data":{"label":"End"}}
	]`)
	edgesJSON := []byte(`[
		{"id":"e1-2","source":"1","target":"2"},
		{"id":"e2-3","source":"2","target":"3"},
		{"id":"e3-4","source":"3","target":"4"}
	]`)

	g, err := Decode(nodesJSON, edgesJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, g.ApproverSequence())

	mgr, ok := g.Node("2")
	require.True(t, ok)
	assert.Equal(t, []string{"mgr"}, mgr.ApproverIDs)
	assert.Equal(t, "Mia", mgr.ApproverName)

	start := g.Start()
	require.NotNil(t, start.Position)

	encodedNodes, encodedEdges, err := g.Encode()
	require.NoError(t, err)

	again, err := Decode(encodedNodes, encodedEdges)
	require.NoError(t, err)
	assert.Equal(t, g.Nodes(), again.Nodes())
	assert.Equal(t, g.Edges(), again.Edges())
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`), nil)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.True(t, IsValidationError(err))
}

func TestGraph_MarshalJSON(t *testing.T) {
	nodes, edges := linear("a1")
	g, err := New(nodes, edges)
	require.NoError(t, err)

	raw, err := json.Marshal(g)
	require.NoError(t, err)

	var doc struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []Edge           `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Len(t, doc.Nodes, 3)
	assert.Equal(t, "approver", doc.Nodes[1]["type"])
	assert.Len(t, doc.Edges, 2)
}

func TestGraph_AccessorsReturnCopies(t *testing.T) {
	nodes, edges := linear("a1", "a2")
	g, err := New(nodes, edges)
	require.NoError(t, err)

	seq := g.ApproverSequence()
	seq[0] = "tampered"
	assert.Equal(t, "a1", g.ApproverSequence()[0])

	nodes[1].ApproverIDs[0] = "tampered"
	n, _ := g.Node("a1")
	assert.Equal(t, "user-a1", n.ApproverIDs[0])
}
