package linker

import "fmt"

// DefaultCapacity is the component arena size used when none is configured.
const DefaultCapacity = 1024

// Registry owns the live component universe: an insertion-ordered mapping
// from ID to component. Iteration order is always insertion order; destroyed
// components vacate their slot and their ID is never handed out again.
// Registry does no isomorphism or linking work and is not safe for concurrent
// use; the Engine serializes access.
type Registry struct {
	byID     map[ComponentID]*Component
	order    []ComponentID
	capacity int
	retired  map[ComponentID]struct{}
}

// NewRegistry returns a registry bounded to capacity live components. A
// non-positive capacity falls back to DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		byID:     make(map[ComponentID]*Component),
		capacity: capacity,
		retired:  make(map[ComponentID]struct{}),
	}
}

// Create allocates a component with the given ID and an optional seed anchor.
// A non-empty anchor becomes the component's first residue, inert (no
// activation) and context-free. New components start Dormant and
// ClassUnresolved.
func (r *Registry) Create(id ComponentID, anchor string) (*Component, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if _, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("create %q: %w", id, ErrExists)
	}
	if _, ok := r.retired[id]; ok {
		return nil, fmt.Errorf("create %q: id was retired: %w", id, ErrExists)
	}
	if len(r.byID) >= r.capacity {
		return nil, fmt.Errorf("create %q: %w", id, ErrCapacity)
	}
	c := &Component{
		id:    id,
		phase: PhaseDormant,
		class: ClassUnresolved,
	}
	if anchor != "" {
		c.residues = append(c.residues, SymbolicResidue{Anchor: anchor})
	}
	r.byID[id] = c
	r.order = append(r.order, id)
	componentsLive.Set(float64(len(r.byID)))
	return c, nil
}

// Destroy releases a component and everything it owns. It fails with
// ErrCanonicalReferent while any other live component is a member of the
// equivalence class this component represents.
func (r *Registry) Destroy(id ComponentID) error {
	c, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("destroy %q: %w", id, ErrNotFound)
	}
	for _, other := range r.byID {
		if other.id != id && other.class == ClassMember && other.rep == id {
			return fmt.Errorf("destroy %q: member %q: %w", id, other.id, ErrCanonicalReferent)
		}
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.retired[id] = struct{}{}
	c.edges = nil
	c.residues = nil
	componentsLive.Set(float64(len(r.byID)))
	return nil
}

// Get looks up a live component.
func (r *Registry) Get(id ComponentID) (*Component, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Components returns the live components in insertion order.
func (r *Registry) Components() []*Component {
	out := make([]*Component, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the number of live components.
func (r *Registry) Len() int { return len(r.byID) }

// Capacity reports the arena bound.
func (r *Registry) Capacity() int { return r.capacity }
