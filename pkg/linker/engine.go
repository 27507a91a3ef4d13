package linker

import (
	"fmt"
	"sync"
)

// Config sizes an engine and injects its collaborators. Zero values select
// the defaults noted per field.
type Config struct {
	// Capacity bounds the component arena. <= 0 means DefaultCapacity.
	Capacity int
	// JournalCapacity bounds the experiential journal ring.
	// <= 0 means DefaultJournalCapacity.
	JournalCapacity int
	// Comparer is the residue-compatibility predicate used by isomorphism.
	// nil means AlwaysCompatible.
	Comparer ResidueComparer
	// Clock supplies journal timestamps. nil means the system clock behind a
	// monotonic clamp.
	Clock Clock
}

// Engine is the serialized façade over the registry and both resolvers. All
// mutation holds an exclusive lock for its full duration, including any
// activation and comparer calls made while resolving; read-only snapshots
// take a shared lock. Resolution is deterministic given the same registry
// state, so callers own any retry policy.
type Engine struct {
	mu        sync.RWMutex
	registry  *Registry
	canonical *CanonicalResolver
	indirect  *IndirectResolver
	journal   *Journal
	clock     Clock
}

// New assembles an engine from cfg.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = NewMonotonicClock(SystemClock())
	}
	journal := NewJournal(cfg.JournalCapacity)
	return &Engine{
		registry:  NewRegistry(cfg.Capacity),
		canonical: NewCanonicalResolver(cfg.Comparer, clock, journal),
		indirect:  NewIndirectResolver(clock, journal),
		journal:   journal,
		clock:     clock,
	}
}

// CreateComponent allocates a component. anchor may be empty; a non-empty
// anchor seeds one inert residue.
func (e *Engine) CreateComponent(id ComponentID, anchor string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.registry.Create(id, anchor)
	return err
}

// DestroyComponent releases a component. It fails with ErrCanonicalReferent
// while other live components still resolve to it.
func (e *Engine) DestroyComponent(id ComponentID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Destroy(id)
}

// SetPhase moves a component to phase.
func (e *Engine) SetPhase(id ComponentID, phase Phase) error {
	if !validPhase(phase) {
		return fmt.Errorf("set phase %q: %w", phase, ErrPhase)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("set phase %q: %w", id, ErrNotFound)
	}
	c.phase = phase
	return nil
}

// AddEdge appends an invocation edge to the owner's sequence. The edge's
// SymbolID is its position.
func (e *Engine) AddEdge(ownerID, callerID, calleeID ComponentID, kind EdgeKind, weight float64) error {
	if !validEdgeKind(kind) {
		return fmt.Errorf("add edge %q: %w", kind, ErrEdgeKind)
	}
	if weight < 0 || weight > 1 {
		return fmt.Errorf("add edge weight %v: %w", weight, ErrWeightRange)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.registry.Get(ownerID)
	if !ok {
		return fmt.Errorf("add edge to %q: %w", ownerID, ErrNotFound)
	}
	c.edges = append(c.edges, InvocationEdge{
		SymbolID: len(c.edges),
		CallerID: callerID,
		CalleeID: calleeID,
		Kind:     kind,
		Weight:   weight,
	})
	return nil
}

// AddResidue appends a residue to a component. context is opaque and
// activation may be nil for an inert anchor.
func (e *Engine) AddResidue(id ComponentID, anchor string, context any, activation Activation) error {
	if anchor == "" {
		return ErrEmptyAnchor
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("add residue to %q: %w", id, ErrNotFound)
	}
	c.residues = append(c.residues, SymbolicResidue{
		Anchor:     anchor,
		Context:    context,
		Activation: activation,
	})
	return nil
}

// Canonicalize resolves a component to its equivalence-class representative
// and returns the representative's ID.
func (e *Engine) Canonicalize(id ComponentID) (ComponentID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.registry.Get(id)
	if !ok {
		return "", fmt.Errorf("canonicalize %q: %w", id, ErrNotFound)
	}
	return e.canonical.Resolve(e.registry, c).id, nil
}

// ResolveIndirect attempts to bind source to a component exposing
// targetAnchor. The second return reports whether a link was made; no link is
// a normal outcome, not an error.
func (e *Engine) ResolveIndirect(sourceID ComponentID, targetAnchor string) (ComponentID, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src, ok := e.registry.Get(sourceID)
	if !ok {
		return "", false, fmt.Errorf("resolve from %q: %w", sourceID, ErrNotFound)
	}
	target, linked := e.indirect.Resolve(e.registry, src, targetAnchor)
	if !linked {
		return "", false, nil
	}
	return target.id, true, nil
}

// MetricsOf returns a read-only snapshot of a component's outcome counters.
func (e *Engine) MetricsOf(id ComponentID) (OutcomeSnapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.registry.Get(id)
	if !ok {
		return OutcomeSnapshot{}, fmt.Errorf("metrics of %q: %w", id, ErrNotFound)
	}
	return c.metrics.Snapshot(), nil
}

// Component returns a point-in-time view of one component.
func (e *Engine) Component(id ComponentID) (ComponentView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.registry.Get(id)
	if !ok {
		return ComponentView{}, fmt.Errorf("component %q: %w", id, ErrNotFound)
	}
	return c.view(), nil
}

// Components returns views of every live component in insertion order.
func (e *Engine) Components() []ComponentView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	comps := e.registry.Components()
	out := make([]ComponentView, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.view())
	}
	return out
}

// ComponentCount reports the number of live components.
func (e *Engine) ComponentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Len()
}

// Journal exposes the experiential journal. The journal carries its own lock
// and may be read while resolutions are in flight.
func (e *Engine) Journal() *Journal { return e.journal }
