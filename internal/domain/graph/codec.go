package graph

import (
	"encoding/json"
	"fmt"
)

// nodeData is the editor's "data" payload of a node
type nodeData struct {
	Label        string   `json:"label"`
	Type         NodeType `json:"type,omitempty"`
	ApproverIDs  []string `json:"approverIds,omitempty"`
	ApproverName string   `json:"approverName,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	Description  string   `json:"description,omitempty"`
}

type nodeDocument struct {
	ID       string    `json:"id"`
	Type     NodeType  `json:"type,omitempty"`
	Position *Position `json:"position,omitempty"`
	Data     nodeData  `json:"data"`
}

// MarshalJSON writes the node in the flow editor's shape
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeDocument{
		ID:       n.ID,
		Type:     n.Type,
		Position: n.Position,
		Data: nodeData{
			Label:        n.Label,
			Type:         n.Type,
			ApproverIDs:  n.ApproverIDs,
			ApproverName: n.ApproverName,
			Condition:    n.Condition,
			Description:  n.Description,
		},
	})
}

// UnmarshalJSON accepts the node type either in data.type or at the top level
func (n *Node) UnmarshalJSON(b []byte) error {
	var doc nodeDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}

	typ := doc.Data.Type
	if typ == "" {
		typ = doc.Type
	}

	*n = Node{
		ID:           doc.ID,
		Type:         typ,
		Label:        doc.Data.Label,
		ApproverIDs:  doc.Data.ApproverIDs,
		ApproverName: doc.Data.ApproverName,
		Condition:    doc.Data.Condition,
		Description:  doc.Data.Description,
		Position:     doc.Position,
	}
	return nil
}

// Decode builds a validated graph from the persisted node and edge documents
func Decode(nodesJSON, edgesJSON []byte) (*Graph, error) {
	var nodes []Node
	if err := json.Unmarshal(nodesJSON, &nodes); err != nil {
		return nil, invalid("", fmt.Errorf("%w: nodes: %v", ErrMalformed, err))
	}

	var edges []Edge
	if len(edgesJSON) > 0 {
		if err := json.Unmarshal(edgesJSON, &edges); err != nil {
			return nil, invalid("", fmt.Errorf("%w: edges: %v", ErrMalformed, err))
		}
	}

	return New(nodes, edges)
}

// Encode returns the persisted node and edge documents
func (g *Graph) Encode() (nodesJSON, edgesJSON []byte, err error) {
	if nodesJSON, err = json.Marshal(g.nodes); err != nil {
		return nil, nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	if edgesJSON, err = json.Marshal(g.edges); err != nil {
		return nil, nil, fmt.Errorf("failed to encode edges: %w", err)
	}
	return nodesJSON, edgesJSON, nil
}

// MarshalJSON renders the graph as {"nodes": [...], "edges": [...]}
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}{g.nodes, g.edges})
}
