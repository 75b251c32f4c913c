package types

// NodeKind distinguishes suite nodes from leaf test nodes
type NodeKind string

const (
	NodeKindSuite NodeKind = "suite"
	NodeKindTest  NodeKind = "test"
)

// RootID is the synthetic identifier of the workspace root node. Requesting
// a run of RootID expands to a run of every top-level suite.
const RootID = "root"

// TestNode is a node in the discovered test tree: either a suite with
// ordered children, or a leaf test bound to a source assembly.
type TestNode struct {
	ID       string      // Unique identifier within a workspace
	Kind     NodeKind    // Suite or test
	Source   string      // Path to the built test assembly
	Children []*TestNode // Ordered child nodes (suites only)
}

// IsSuite returns true if this node is a suite
func (n *TestNode) IsSuite() bool {
	return n.Kind == NodeKindSuite
}

// Leaves returns the ordered sequence of leaf test nodes under n, in
// depth-first child order. A leaf test returns itself. Pure; no side effects.
func (n *TestNode) Leaves() []*TestNode {
	if !n.IsSuite() {
		return []*TestNode{n}
	}
	var leaves []*TestNode
	for _, child := range n.Children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// ChildIDs returns the identifiers of the node's immediate children in
// stored order.
func (n *TestNode) ChildIDs() []string {
	ids := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		ids = append(ids, child.ID)
	}
	return ids
}

// NodeContext pairs a node with its most recently fired event. One context
// exists per node, owned by the registry; the orchestrator reads and mutates
// Event but never creates or destroys contexts.
type NodeContext struct {
	Node  *TestNode
	Event Event // Last fired event, nil before the first run
}
