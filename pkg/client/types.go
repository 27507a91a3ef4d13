package client

import "time"

// ComponentSpec describes a component to register, including any initial
// edges and residues.
type ComponentSpec struct {
	// ComponentID is the required, registry-unique identifier.
	ComponentID string `json:"component_id"`
	// Anchor optionally seeds one inert residue.
	Anchor string `json:"anchor,omitempty"`
	// Phase is one of "dormant", "witness", "transform", "residue".
	// Empty means dormant.
	Phase string `json:"phase,omitempty"`
	// Edges are appended in order; their position is their symbol ID.
	Edges []EdgeSpec `json:"edges,omitempty"`
	// Residues are the component's exposed anchors.
	Residues []ResidueSpec `json:"residues,omitempty"`
}

// EdgeSpec is one invocation edge. CallerID defaults to the owning component.
type EdgeSpec struct {
	CallerID string  `json:"caller_id,omitempty"`
	CalleeID string  `json:"callee_id"`
	Kind     string  `json:"kind"`
	Weight   float64 `json:"weight"`
}

// ActivationSpec names a server-side activation kind, e.g. "constant".
type ActivationSpec struct {
	Kind   string            `json:"kind"`
	Score  float64           `json:"score,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// ResidueSpec is one symbolic residue. Without an activation the anchor is
// inert and can never link.
type ResidueSpec struct {
	Anchor     string            `json:"anchor"`
	Context    map[string]string `json:"context,omitempty"`
	Activation *ActivationSpec   `json:"activation,omitempty"`
}

// EdgeView mirrors the daemon's invocation edge snapshot.
type EdgeView struct {
	SymbolID int     `json:"symbol_id"`
	CallerID string  `json:"caller_id"`
	CalleeID string  `json:"callee_id"`
	Kind     string  `json:"kind"`
	Weight   float64 `json:"weight"`
}

// OutcomeMetrics are a component's cumulative resolution counters.
type OutcomeMetrics struct {
	TruePositiveLinks   uint64 `json:"true_positive_links"`
	FalsePositiveLinks  uint64 `json:"false_positive_links"`
	TrueNegativeSkips   uint64 `json:"true_negative_skips"`
	FalseNegativeMisses uint64 `json:"false_negative_misses"`
}

// ComponentView is a point-in-time snapshot of a registered component.
type ComponentView struct {
	ComponentID    string         `json:"component_id"`
	Phase          string         `json:"phase"`
	Class          string         `json:"class"`
	Representative string         `json:"representative,omitempty"`
	Anchors        []string       `json:"anchors,omitempty"`
	Edges          []EdgeView     `json:"edges,omitempty"`
	Metrics        OutcomeMetrics `json:"metrics"`
}

// CreateResult confirms a registration.
type CreateResult struct {
	ComponentID string `json:"component_id"`
	Status      string `json:"status"`
}

// CanonicalizeResult reports the equivalence-class representative a component
// resolved to.
type CanonicalizeResult struct {
	ComponentID    string `json:"component_id"`
	Representative string `json:"representative"`
	Merged         bool   `json:"merged"`
}

// ResolveResult reports an indirect resolution attempt. When the daemon is
// unreachable the SDK fails closed: Linked is false and Reason says why.
type ResolveResult struct {
	SourceID string `json:"source_id"`
	Anchor   string `json:"anchor"`
	TargetID string `json:"target_id,omitempty"`
	Linked   bool   `json:"linked"`
	Reason   string `json:"reason,omitempty"`
}

// ComponentOutcome pairs a component with its counters.
type ComponentOutcome struct {
	ComponentID string         `json:"component_id"`
	Class       string         `json:"class"`
	Metrics     OutcomeMetrics `json:"metrics"`
}

// OutcomesResult is the daemon's outcome listing.
type OutcomesResult struct {
	ComponentCount int                `json:"component_count"`
	Components     []ComponentOutcome `json:"components"`
}

// LinkEvent is one experiential journal entry.
type LinkEvent struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Score     float64   `json:"score"`
}

// JournalResult is a window of the journal plus the cursor state needed to
// detect gaps.
type JournalResult struct {
	LastSeq uint64      `json:"last_seq"`
	Dropped uint64      `json:"dropped"`
	Events  []LinkEvent `json:"events"`
}

// GraphNode is a component in the link graph projection.
type GraphNode struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphEdge connects two graph nodes.
type GraphEdge struct {
	FromID string  `json:"from_id"`
	ToID   string  `json:"to_id"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight,omitempty"`
}

// Graph is the daemon's link graph projection.
type Graph struct {
	Nodes map[string]GraphNode `json:"nodes"`
	Edges []GraphEdge          `json:"edges"`
}

// LinkRecord is a persisted journal entry.
type LinkRecord struct {
	RecordID   string    `json:"record_id"`
	JournalSeq uint64    `json:"journal_seq"`
	Type       string    `json:"type"`
	TsEvent    time.Time `json:"ts_event"`
	TsIngest   time.Time `json:"ts_ingest"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Score      float64   `json:"score"`
	WriterID   string    `json:"writer_id,omitempty"`
}

// EventsResult is the daemon's recent persisted events.
type EventsResult struct {
	Count   int          `json:"count"`
	Records []LinkRecord `json:"records"`
}

// ResolutionStat is one aggregated bucket of link events.
type ResolutionStat struct {
	BucketTs  time.Time `json:"bucket_ts"`
	Type      string    `json:"type"`
	Count     int       `json:"count"`
	MeanScore float64   `json:"mean_score"`
	MinScore  float64   `json:"min_score"`
	MaxScore  float64   `json:"max_score"`
}

// TrendsResult is the daemon's bucketed resolution statistics.
type TrendsResult struct {
	Bucket string           `json:"bucket"`
	Stats  []ResolutionStat `json:"stats"`
}

// TrendsOptions selects the window and bucket for Trends.
type TrendsOptions struct {
	From   time.Time
	To     time.Time
	Bucket string // "hour" or "day"; empty means hour
}

// ReportOptions selects a report download.
type ReportOptions struct {
	Kind    string // "journal" or "outcomes"
	Format  string // "csv" or "json"; empty means csv
	From    time.Time
	To      time.Time
	Filters map[string]string
}

// WebhookCredentials is returned once at registration; the secret is never
// listed again.
type WebhookCredentials struct {
	WebhookID string `json:"webhook_id"`
	Secret    string `json:"secret"`
}

// WebhookInfo is a listing entry with the secret redacted.
type WebhookInfo struct {
	WebhookID string   `json:"webhook_id"`
	URL       string   `json:"url"`
	Types     []string `json:"types,omitempty"`
	CreatedAt string   `json:"created_at"`
	Active    bool     `json:"active"`
}

// PruneResult reports an admin prune pass.
type PruneResult struct {
	Removed int64  `json:"removed"`
	Cutoff  string `json:"cutoff"`
}

// Health is the daemon health summary.
type Health struct {
	Status     string `json:"status"`
	Leader     bool   `json:"leader"`
	Components int    `json:"components"`
}
