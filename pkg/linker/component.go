// Package linker implements the component linking core: a registry of
// components carrying invocation edges and symbolic residues, canonical-form
// resolution (isomorphic dedup into equivalence classes), and indirect link
// resolution (anchor scan gated by activation score).
package linker

// ComponentID is a stable component identifier. IDs are assigned at creation
// and never reused. The zero value is not a valid ID.
type ComponentID string

// Phase is a component's lifecycle phase.
type Phase string

const (
	PhaseDormant   Phase = "dormant"
	PhaseWitness   Phase = "witness"
	PhaseTransform Phase = "transform"
	PhaseResidue   Phase = "residue"
)

func validPhase(p Phase) bool {
	switch p {
	case PhaseDormant, PhaseWitness, PhaseTransform, PhaseResidue:
		return true
	}
	return false
}

// EdgeKind classifies an invocation edge.
type EdgeKind string

const (
	EdgeDirect           EdgeKind = "direct"
	EdgeIndirect         EdgeKind = "indirect"
	EdgeVirtual          EdgeKind = "virtual"
	EdgePhenomenological EdgeKind = "phenomenological"
)

func validEdgeKind(k EdgeKind) bool {
	switch k {
	case EdgeDirect, EdgeIndirect, EdgeVirtual, EdgePhenomenological:
		return true
	}
	return false
}

// ClassState is a component's position in its equivalence class. A fresh
// component is ClassUnresolved until canonical resolution either promotes it
// to ClassRepresentative or folds it into an existing representative as
// ClassMember.
type ClassState string

const (
	ClassUnresolved     ClassState = "unresolved"
	ClassRepresentative ClassState = "representative"
	ClassMember         ClassState = "member"
)

// InvocationEdge is a directed caller → callee edge. SymbolID is the edge's
// position in the owning component's sequence. Endpoints are held by ID, not
// by reference; lookups against a destroyed endpoint simply miss.
type InvocationEdge struct {
	SymbolID int         `json:"symbol_id"`
	CallerID ComponentID `json:"caller_id"`
	CalleeID ComponentID `json:"callee_id"`
	Kind     EdgeKind    `json:"kind"`
	Weight   float64     `json:"weight"`
}

// Activation scores an anchor's willingness to accept an indirect link given
// the residue's contextual payload. Scores are expected in [0,1].
// Implementations are called synchronously under the engine lock and must not
// call back into the engine.
type Activation interface {
	Score(context any) float64
}

// ActivationFunc adapts a plain function to Activation.
type ActivationFunc func(context any) float64

func (f ActivationFunc) Score(context any) float64 { return f(context) }

// SymbolicResidue is a named anchor a component exposes for indirect linking.
// Context is opaque to the core and is passed through to Activation untouched.
// A residue with a nil Activation is inert: observable, never linkable.
type SymbolicResidue struct {
	Anchor     string
	Context    any
	Activation Activation
}

// Component is a node in the linking graph. All mutation goes through the
// Registry and Engine; callers outside this package read components through
// snapshot views.
type Component struct {
	id       ComponentID
	phase    Phase
	edges    []InvocationEdge
	residues []SymbolicResidue
	class    ClassState
	rep      ComponentID // representative ID, valid when class != ClassUnresolved
	metrics  OutcomeMetrics
}

func (c *Component) ID() ComponentID { return c.id }

func (c *Component) Phase() Phase { return c.phase }

func (c *Component) Class() ClassState { return c.class }

// Representative reports the ID of this component's equivalence-class
// representative. For a ClassRepresentative component that is its own ID; for
// ClassUnresolved the second return is false.
func (c *Component) Representative() (ComponentID, bool) {
	if c.class == ClassUnresolved {
		return "", false
	}
	return c.rep, true
}

// Edges returns a copy of the component's edge sequence.
func (c *Component) Edges() []InvocationEdge {
	out := make([]InvocationEdge, len(c.edges))
	copy(out, c.edges)
	return out
}

// Residues returns a copy of the component's residue sequence, in declaration
// order.
func (c *Component) Residues() []SymbolicResidue {
	out := make([]SymbolicResidue, len(c.residues))
	copy(out, c.residues)
	return out
}

// Metrics returns a read-only snapshot of the component's outcome counters.
func (c *Component) Metrics() OutcomeSnapshot { return c.metrics.Snapshot() }

// Anchors returns the anchor names of the component's residues, in order.
// Duplicates are retained.
func (c *Component) Anchors() []string {
	out := make([]string, 0, len(c.residues))
	for _, r := range c.residues {
		out = append(out, r.Anchor)
	}
	return out
}

// ComponentView is a point-in-time snapshot of a component, safe to hold
// after the engine lock is released.
type ComponentView struct {
	ID             ComponentID      `json:"component_id"`
	Phase          Phase            `json:"phase"`
	Class          ClassState       `json:"class"`
	Representative ComponentID      `json:"representative,omitempty"`
	Anchors        []string         `json:"anchors,omitempty"`
	Edges          []InvocationEdge `json:"edges,omitempty"`
	Metrics        OutcomeSnapshot  `json:"metrics"`
}

func (c *Component) view() ComponentView {
	v := ComponentView{
		ID:      c.id,
		Phase:   c.phase,
		Class:   c.class,
		Anchors: c.Anchors(),
		Edges:   c.Edges(),
		Metrics: c.metrics.Snapshot(),
	}
	if c.class != ClassUnresolved {
		v.Representative = c.rep
	}
	return v
}
