package linker

import (
	"math"
	"strings"
)

// WeightEpsilon is the per-edge weight tolerance for isomorphism. Weight
// deltas at or below it compare equal.
const WeightEpsilon = 0.001

// CanonicalResolver folds components into equivalence classes. Two components
// are isomorphic when their phases match, their edge sequences have equal
// length with per-index weights within WeightEpsilon, and the residue
// comparer accepts their residue sequences.
type CanonicalResolver struct {
	comparer ResidueComparer
	clock    Clock
	journal  *Journal
}

// NewCanonicalResolver builds a resolver. A nil comparer defaults to
// AlwaysCompatible.
func NewCanonicalResolver(comparer ResidueComparer, clock Clock, journal *Journal) *CanonicalResolver {
	if comparer == nil {
		comparer = AlwaysCompatible{}
	}
	return &CanonicalResolver{comparer: comparer, clock: clock, journal: journal}
}

// Resolve returns the equivalence-class representative for comp, scanning the
// registry in insertion order. A representative resolves to itself, a member
// to its stored representative. An unresolved component either merges into
// the first isomorphic representative (residues appended, the candidate's
// truePositiveLinks incremented) or becomes the representative of a new
// class.
func (r *CanonicalResolver) Resolve(reg *Registry, comp *Component) *Component {
	switch comp.class {
	case ClassRepresentative:
		return comp
	case ClassMember:
		if rep, ok := reg.Get(comp.rep); ok {
			return rep
		}
		// Destroy guards against live members, so a missing representative
		// means comp was detached out-of-band; rescan.
	}

	for _, cand := range reg.Components() {
		if cand.class != ClassRepresentative {
			continue
		}
		if !r.isomorphic(comp, cand) {
			continue
		}
		mergeResidues(cand, comp)
		comp.class = ClassMember
		comp.rep = cand.id
		cand.metrics.truePositiveLinks++
		reductionsTotal.WithLabelValues("merged").Inc()
		r.journal.Record(LinkEvent{
			Timestamp: r.clock.Now(),
			Type:      EventCanonicalMerge,
			SourceID:  comp.id,
			TargetID:  cand.id,
			Score:     1,
		})
		return cand
	}

	comp.class = ClassRepresentative
	comp.rep = comp.id
	reductionsTotal.WithLabelValues("promoted").Inc()
	return comp
}

// isomorphic compares a against b. A weight delta beyond WeightEpsilon is
// counted as a false-positive probe on a and fails the comparison
// immediately, before any residue work.
func (r *CanonicalResolver) isomorphic(a, b *Component) bool {
	if a.phase != b.phase {
		return false
	}
	if len(a.edges) != len(b.edges) {
		return false
	}
	for i := range a.edges {
		if math.Abs(a.edges[i].Weight-b.edges[i].Weight) > WeightEpsilon {
			a.metrics.falsePositiveLinks++
			return false
		}
	}
	return r.comparer.Compatible(a.residues, b.residues)
}

// mergeResidues appends from's residues onto into's sequence in order.
// Anchors are cloned so the copies outlive from; contexts and activations are
// carried as-is. Nothing is deduplicated: the merged count is the sum.
func mergeResidues(into, from *Component) {
	for _, res := range from.residues {
		res.Anchor = strings.Clone(res.Anchor)
		into.residues = append(into.residues, res)
	}
}
