package simulation

import (
	"time"
)

// Scenario describes one synthetic workload. The same seed always produces
// the same aggregate result.
type Scenario struct {
	Name string `json:"name"`
	Seed int64  `json:"seed"`

	// Components is the population size. AnchorPool is the shared set of
	// anchor names components draw from; a small pool relative to the
	// population forces anchor collisions, which is the interesting regime.
	Components int      `json:"components"`
	AnchorPool []string `json:"anchor_pool,omitempty"`
	AnchorsPer int      `json:"anchors_per"`

	// EdgeFanout caps the random edges per component. ActivationRate is the
	// probability a residue gets a constant activation (score uniform in
	// [0,1), so roughly half of activated anchors clear the link threshold).
	EdgeFanout     int     `json:"edge_fanout"`
	ActivationRate float64 `json:"activation_rate"`

	// Resolves is the number of indirect resolution attempts, spread across
	// Workers goroutines. Canonicalize folds the whole population afterwards.
	Resolves     int  `json:"resolves"`
	Workers      int  `json:"workers"`
	Canonicalize bool `json:"canonicalize"`

	// JournalCapacity sizes the engine journal; small values force drops,
	// which the result reports.
	JournalCapacity int `json:"journal_capacity,omitempty"`

	Invariants []Invariant `json:"invariants,omitempty"`
}

// Invariant is a pass/fail condition evaluated against the result.
type Invariant struct {
	Metric    string  `json:"metric"`    // "link_rate", "reduction_ratio", "error_rate"
	Condition string  `json:"condition"` // ">", ">=", "<", "<=", "=="
	Value     float64 `json:"value"`
}

// InvariantResult is one evaluated invariant.
type InvariantResult struct {
	Metric   string `json:"metric"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// SimulationResult captures the final state of the simulation for reporting.
type SimulationResult struct {
	ScenarioName string        `json:"scenario_name"`
	Seed         int64         `json:"seed"`
	Duration     time.Duration `json:"duration"`

	Components     int     `json:"components"`
	Classes        int     `json:"classes"`
	ReductionRatio float64 `json:"reduction_ratio"`

	Resolves uint64  `json:"resolves"`
	Linked   uint64  `json:"linked"`
	Errors   uint64  `json:"errors"`
	LinkRate float64 `json:"link_rate"`

	JournalEvents  uint64 `json:"journal_events"`
	JournalDropped uint64 `json:"journal_dropped"`

	TruePositiveLinks  uint64 `json:"true_positive_links"`
	FalsePositiveLinks uint64 `json:"false_positive_links"`
	TrueNegativeSkips  uint64 `json:"true_negative_skips"`

	Invariants []InvariantResult `json:"invariants,omitempty"`
	Success    bool              `json:"success"`
}
