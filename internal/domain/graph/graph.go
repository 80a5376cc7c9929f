// Package graph models approval templates as validated directed graphs.
//
// A Graph is immutable once built. New rejects any structure the workflow
// engine cannot traverse, so code holding a *Graph never re-checks topology.
package graph

// Graph is a validated approval template graph
type Graph struct {
	nodes    []Node
	edges    []Edge
	index    map[string]int
	out      map[string][]string
	start    string
	sequence []string
}

// New validates nodes and edges and returns the resulting graph.
//
// Rules: exactly one start node, at least one end node, at least one
// approver on the path followed from start, every edge endpoint known,
// no cycles, every node reachable from start, and every node other than
// an end node has an outgoing edge.
func New(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make([]Node, 0, len(nodes)),
		edges: make([]Edge, 0, len(edges)),
		index: make(map[string]int, len(nodes)),
		out:   make(map[string][]string, len(nodes)),
	}

	if err := g.addNodes(nodes); err != nil {
		return nil, err
	}
	if err := g.addEdges(edges); err != nil {
		return nil, err
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	if err := g.checkReachable(); err != nil {
		return nil, err
	}
	for _, n := range g.nodes {
		if n.Type != NodeEnd && len(g.out[n.ID]) == 0 {
			return nil, invalid(n.ID, ErrDanglingNode)
		}
	}

	g.sequence = g.walkApprovers()
	if len(g.sequence) == 0 {
		return nil, invalid(g.start, ErrNoApprovers)
	}

	return g, nil
}

func (g *Graph) addNodes(nodes []Node) error {
	var starts, ends, approvers int

	for _, n := range nodes {
		if n.ID == "" {
			return invalid("", ErrEmptyNodeID)
		}
		if _, dup := g.index[n.ID]; dup {
			return invalid(n.ID, ErrDuplicateNode)
		}
		if !n.Type.IsValid() {
			return invalid(n.ID, ErrInvalidNodeType)
		}

		n.ApproverIDs = append([]string(nil), n.ApproverIDs...)
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)

		switch n.Type {
		case NodeStart:
			starts++
			if starts > 1 {
				return invalid(n.ID, ErrMultipleStart)
			}
			g.start = n.ID
		case NodeEnd:
			ends++
		case NodeApprover:
			approvers++
		}
	}

	if starts == 0 {
		return invalid("", ErrMissingStart)
	}
	if ends == 0 {
		return invalid("", ErrMissingEnd)
	}
	if approvers == 0 {
		return invalid("", ErrNoApprovers)
	}
	return nil
}

func (g *Graph) addEdges(edges []Edge) error {
	seen := make(map[Edge]bool, len(edges))

	for _, e := range edges {
		if _, ok := g.index[e.Source]; !ok {
			return invalid(e.Source, ErrUnknownNode)
		}
		if _, ok := g.index[e.Target]; !ok {
			return invalid(e.Target, ErrUnknownNode)
		}

		key := Edge{Source: e.Source, Target: e.Target}
		if seen[key] {
			continue
		}
		seen[key] = true

		g.edges = append(g.edges, e)
		g.out[e.Source] = append(g.out[e.Source], e.Target)
	}
	return nil
}

// checkAcyclic runs Kahn's algorithm over every node; leftovers sit on a cycle
func (g *Graph) checkAcyclic() error {
	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.out {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, t := range g.out[id] {
			inDegree[t]--
			if inDegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	if visited == len(g.nodes) {
		return nil
	}
	for _, n := range g.nodes {
		if inDegree[n.ID] > 0 {
			return invalid(n.ID, ErrCycleDetected)
		}
	}
	return invalid("", ErrCycleDetected)
}

func (g *Graph) checkReachable() error {
	seen := map[string]bool{g.start: true}
	queue := []string{g.start}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, t := range g.out[id] {
			if !seen[t] {
				seen[t] = true
				queue = append(queue, t)
			}
		}
	}

	for _, n := range g.nodes {
		if !seen[n.ID] {
			return invalid(n.ID, ErrUnreachableNode)
		}
	}
	return nil
}

// walkApprovers follows first outgoing edges from start and collects approvers
func (g *Graph) walkApprovers() []string {
	var seq []string
	cur := g.start
	for {
		next, ok := g.NextStop(cur)
		if !ok || next.Type == NodeEnd {
			return seq
		}
		seq = append(seq, next.ID)
		cur = next.ID
	}
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns the nodes in declaration order
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Edges returns the deduplicated edges in declaration order
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Start returns the single start node
func (g *Graph) Start() Node {
	n, _ := g.Node(g.start)
	return n
}

// Successors returns the direct targets of id in edge order
func (g *Graph) Successors(id string) []string {
	return append([]string(nil), g.out[id]...)
}

// ApproverSequence returns the approver node ids in traversal order.
// Traversal follows the first outgoing edge of every node and passes
// through decision nodes; conditions are not evaluated.
func (g *Graph) ApproverSequence() []string {
	return append([]string(nil), g.sequence...)
}

// TotalSteps is the number of approver decisions a request on this graph needs
func (g *Graph) TotalSteps() int {
	return len(g.sequence)
}

// NextStop returns the approver or end node that follows from.
// It reports false when from is unknown or has no successor.
func (g *Graph) NextStop(from string) (Node, bool) {
	if _, ok := g.index[from]; !ok {
		return Node{}, false
	}

	cur := from
	for {
		targets := g.out[cur]
		if len(targets) == 0 {
			return Node{}, false
		}
		n, _ := g.Node(targets[0])
		if n.Type != NodeDecision && n.Type != NodeStart {
			return n, true
		}
		cur = n.ID
	}
}

// StepNumber returns the 1-based position of nodeID in the approver
// sequence, or 0 when the node is not on it.
func (g *Graph) StepNumber(nodeID string) int {
	for i, id := range g.sequence {
		if id == nodeID {
			return i + 1
		}
	}
	return 0
}
