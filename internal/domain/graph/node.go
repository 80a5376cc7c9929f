package graph

// NodeType is the kind of a node in an approval graph
type NodeType string

const (
	NodeStart    NodeType = "start"
	NodeApprover NodeType = "approver"
	// NodeDecision is accepted structurally and traversed as a pass-through.
	NodeDecision NodeType = "decision"
	NodeEnd      NodeType = "end"
)

// IsValid reports whether t is a known node type
func (t NodeType) IsValid() bool {
	switch t {
	case NodeStart, NodeApprover, NodeDecision, NodeEnd:
		return true
	}
	return false
}

// Position is editor layout data, carried through untouched
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one vertex of a template graph
// JSON uses the editor document shape, see codec.go.
type Node struct {
	ID           string    `yaml:"id"`
	Type         NodeType  `yaml:"type"`
	Label        string    `yaml:"label,omitempty"`
	ApproverIDs  []string  `yaml:"approver_ids,omitempty"`
	ApproverName string    `yaml:"approver_name,omitempty"`
	Condition    string    `yaml:"condition,omitempty"`
	Description  string    `yaml:"description,omitempty"`
	Position     *Position `yaml:"position,omitempty"`
}

// Restricted reports whether only the listed approvers may decide at this node
func (n Node) Restricted() bool {
	return len(n.ApproverIDs) > 0
}

// Allows reports whether approverID may decide at this node
func (n Node) Allows(approverID string) bool {
	if !n.Restricted() {
		return true
	}
	for _, id := range n.ApproverIDs {
		if id == approverID {
			return true
		}
	}
	return false
}

// Edge is a directed connection source -> target
type Edge struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}
