package linker

// ActivationThreshold is the strict lower bound an activation score must
// exceed to authorize an indirect link. Exactly 0.5 never links.
const ActivationThreshold = 0.5

// IndirectResolver binds a source component to a named target anchor. The
// registry is scanned in insertion order and each candidate's residues in
// declaration order; the first residue whose anchor matches and whose
// activation scores strictly above ActivationThreshold wins.
type IndirectResolver struct {
	clock   Clock
	journal *Journal
}

// NewIndirectResolver builds a resolver recording link events into journal.
func NewIndirectResolver(clock Clock, journal *Journal) *IndirectResolver {
	return &IndirectResolver{clock: clock, journal: journal}
}

// Resolve scans for targetAnchor on behalf of source. While the scan is in
// flight the source's phase reads Witness; the prior phase is restored before
// returning on both outcomes. On a hit the source gains one Indirect edge
// weighted by the activation score, the journal gains an entry, and the
// source's truePositiveLinks increments. An exhausted scan increments
// trueNegativeSkips and reports no link, which is a normal outcome, not an
// error. The scan includes the source itself: a component may satisfy its own
// anchor.
func (r *IndirectResolver) Resolve(reg *Registry, source *Component, targetAnchor string) (*Component, bool) {
	saved := source.phase
	source.phase = PhaseWitness
	defer func() { source.phase = saved }()

	for _, cand := range reg.Components() {
		for _, res := range cand.residues {
			if res.Anchor != targetAnchor {
				continue
			}
			if res.Activation == nil {
				// Inert anchor: observable, never linkable.
				continue
			}
			score := res.Activation.Score(res.Context)
			if score <= ActivationThreshold {
				continue
			}
			weight := score
			if weight > 1 {
				weight = 1
			}
			source.edges = append(source.edges, InvocationEdge{
				SymbolID: len(source.edges),
				CallerID: source.id,
				CalleeID: cand.id,
				Kind:     EdgeIndirect,
				Weight:   weight,
			})
			r.journal.Record(LinkEvent{
				Timestamp: r.clock.Now(),
				Type:      EventIndirectLink,
				SourceID:  source.id,
				TargetID:  cand.id,
				Score:     score,
			})
			source.metrics.truePositiveLinks++
			resolutionsTotal.WithLabelValues("linked").Inc()
			return cand, true
		}
	}

	source.metrics.trueNegativeSkips++
	resolutionsTotal.WithLabelValues("skipped").Inc()
	return nil, false
}
