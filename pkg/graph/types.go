package graph

import "github.com/isolink-io/isolink/pkg/linker"

// NodeType reflects a component's position in its equivalence class.
type NodeType string

const (
	NodeRepresentative NodeType = "representative"
	NodeMember         NodeType = "member"
	NodeUnresolved     NodeType = "unresolved"
)

// EdgeType is the semantic relationship between two nodes. The four invocation
// kinds come straight from the linker; member_of is structural, produced by
// canonical merges.
type EdgeType string

const (
	EdgeDirect           EdgeType = "direct"           // Caller -> Callee, statically bound
	EdgeIndirect         EdgeType = "indirect"         // Caller -> Callee, resolved through an anchor
	EdgeVirtual          EdgeType = "virtual"          // Caller -> Callee, dispatched
	EdgePhenomenological EdgeType = "phenomenological" // Caller -> Callee, observed only
	EdgeMemberOf         EdgeType = "member_of"        // Member -> Representative
)

func edgeTypeForKind(k linker.EdgeKind) EdgeType {
	switch k {
	case linker.EdgeDirect:
		return EdgeDirect
	case linker.EdgeIndirect:
		return EdgeIndirect
	case linker.EdgeVirtual:
		return EdgeVirtual
	case linker.EdgePhenomenological:
		return EdgePhenomenological
	}
	return EdgeType(k)
}

func nodeTypeForClass(c linker.ClassState) NodeType {
	switch c {
	case linker.ClassRepresentative:
		return NodeRepresentative
	case linker.ClassMember:
		return NodeMember
	}
	return NodeUnresolved
}

// Node represents a component in the link graph.
type Node struct {
	ID         string            `json:"id"`
	Type       NodeType          `json:"type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Edge represents a directed connection between two nodes.
type Edge struct {
	FromID string   `json:"from_id"`
	ToID   string   `json:"to_id"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight,omitempty"`
}

// Graph is a snapshot of the link graph.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []*Edge          `json:"edges"`
}

// NewGraph creates an empty link graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make([]*Edge, 0),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
}

// AddEdge adds an edge to the graph.
func (g *Graph) AddEdge(e *Edge) {
	g.Edges = append(g.Edges, e)
}
