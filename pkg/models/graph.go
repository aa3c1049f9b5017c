package models

// Graph indexes an automation's nodes and edges by id so the walker can
// follow connections without scanning slices, and so cycle detection stays
// a visited-count check over ids.
type Graph struct {
	nodes    map[string]*Node
	outgoing map[string][]*Edge
	trigger  *Node
}

// NewGraph builds the adjacency index for an automation. Edge order within
// a node is preserved from the stored definition, which is what makes the
// disabled-node "first edge wins" pass-through deterministic.
func NewGraph(automation *Automation) *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node, len(automation.Nodes)),
		outgoing: make(map[string][]*Edge),
	}

	for _, node := range automation.Nodes {
		g.nodes[node.ID] = node

		if node.IsTrigger() && g.trigger == nil {
			g.trigger = node
		}
	}

	for _, edge := range automation.Edges {
		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	}

	return g
}

// TriggerNode returns the graph's entry node, or nil when the automation
// has no trigger node.
func (g *Graph) TriggerNode() *Node {
	return g.trigger
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}

// Outgoing returns all edges leaving the given node in definition order.
func (g *Graph) Outgoing(nodeID string) []*Edge {
	return g.outgoing[nodeID]
}

// OutgoingByHandle returns the edge leaving nodeID whose source handle
// matches handle exactly.
func (g *Graph) OutgoingByHandle(nodeID, handle string) (*Edge, bool) {
	for _, edge := range g.outgoing[nodeID] {
		if edge.SourceHandle == handle {
			return edge, true
		}
	}

	return nil, false
}

// FirstOutgoing returns the first edge leaving nodeID, used for plain
// action nodes and for disabled-node pass-through.
func (g *Graph) FirstOutgoing(nodeID string) (*Edge, bool) {
	edges := g.outgoing[nodeID]
	if len(edges) == 0 {
		return nil, false
	}

	return edges[0], true
}

// Unreachable returns ids of nodes that cannot be reached from the trigger
// node. The editor warns about these; the walker simply never visits them.
func (g *Graph) Unreachable() []string {
	if g.trigger == nil {
		ids := make([]string, 0, len(g.nodes))
		for id := range g.nodes {
			ids = append(ids, id)
		}

		return ids
	}

	visited := make(map[string]bool, len(g.nodes))
	stack := []string{g.trigger.ID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}

		visited[id] = true

		for _, edge := range g.outgoing[id] {
			stack = append(stack, edge.Target)
		}
	}

	var unreachable []string

	for id := range g.nodes {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}

	return unreachable
}
