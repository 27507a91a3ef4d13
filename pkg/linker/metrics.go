package linker

// OutcomeMetrics classifies every resolution and equivalence decision made
// against a component. All counters are monotonic. falseNegativeMisses is
// never incremented by the engine itself; it exists for external audit
// tooling that replays resolutions against ground truth.
type OutcomeMetrics struct {
	truePositiveLinks   uint64
	falsePositiveLinks  uint64
	trueNegativeSkips   uint64
	falseNegativeMisses uint64
}

// Snapshot returns a read-only copy of the counters.
func (m *OutcomeMetrics) Snapshot() OutcomeSnapshot {
	return OutcomeSnapshot{
		TruePositiveLinks:   m.truePositiveLinks,
		FalsePositiveLinks:  m.falsePositiveLinks,
		TrueNegativeSkips:   m.trueNegativeSkips,
		FalseNegativeMisses: m.falseNegativeMisses,
	}
}

// OutcomeSnapshot is the wire form of OutcomeMetrics.
type OutcomeSnapshot struct {
	TruePositiveLinks   uint64 `json:"true_positive_links"`
	FalsePositiveLinks  uint64 `json:"false_positive_links"`
	TrueNegativeSkips   uint64 `json:"true_negative_skips"`
	FalseNegativeMisses uint64 `json:"false_negative_misses"`
}
