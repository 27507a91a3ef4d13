package api

import (
	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

// EdgeSpec attaches an invocation edge to a component at creation time, or
// later through POST /v1/components/{id}/edges. CallerID defaults to the
// owning component.
type EdgeSpec struct {
	CallerID string  `json:"caller_id,omitempty"`
	CalleeID string  `json:"callee_id"`
	Kind     string  `json:"kind"`
	Weight   float64 `json:"weight"`
}

// ResidueSpec attaches a symbolic residue. A nil Activation leaves the anchor
// inert; otherwise the server builds the activation from the anchor registry.
type ResidueSpec struct {
	Anchor     string            `json:"anchor"`
	Context    map[string]string `json:"context,omitempty"`
	Activation *anchor.Spec      `json:"activation,omitempty"`
}

// CreateComponentRequest is the body for POST /v1/components.
type CreateComponentRequest struct {
	ComponentID string        `json:"component_id"`
	Anchor      string        `json:"anchor,omitempty"`
	Phase       string        `json:"phase,omitempty"`
	Edges       []EdgeSpec    `json:"edges,omitempty"`
	Residues    []ResidueSpec `json:"residues,omitempty"`
}

// CreateComponentResponse confirms registration.
type CreateComponentResponse struct {
	ComponentID string `json:"component_id"`
	Status      string `json:"status"`
}

// PhaseRequest is the body for POST /v1/components/{id}/phase.
type PhaseRequest struct {
	Phase string `json:"phase"`
}

// CanonicalizeRequest is the body for POST /v1/canonicalize.
type CanonicalizeRequest struct {
	ComponentID string `json:"component_id"`
}

// CanonicalizeResponse reports where the component landed. Representative
// equals ComponentID when no isomorphic peer was found.
type CanonicalizeResponse struct {
	ComponentID    string `json:"component_id"`
	Representative string `json:"representative"`
	Merged         bool   `json:"merged"`
}

// ResolveRequest is the body for POST /v1/resolve.
type ResolveRequest struct {
	SourceID string `json:"source_id"`
	Anchor   string `json:"anchor"`
}

// ResolveResponse reports the outcome of an indirect resolution attempt.
// TargetID is empty when no anchor fired.
type ResolveResponse struct {
	SourceID string `json:"source_id"`
	Anchor   string `json:"anchor"`
	TargetID string `json:"target_id,omitempty"`
	Linked   bool   `json:"linked"`
}

// ListComponentsResponse is the body for GET /v1/components.
type ListComponentsResponse struct {
	Count      int                    `json:"count"`
	Components []linker.ComponentView `json:"components"`
}

// ComponentOutcome pairs a component with its cumulative resolution counters.
type ComponentOutcome struct {
	ComponentID string                 `json:"component_id"`
	Class       string                 `json:"class"`
	Metrics     linker.OutcomeSnapshot `json:"metrics"`
}

// OutcomesResponse is the body for GET /v1/outcomes.
type OutcomesResponse struct {
	ComponentCount int                `json:"component_count"`
	Components     []ComponentOutcome `json:"components"`
}

// JournalResponse is the body for GET /v1/journal. Consumers detect loss by
// comparing the first returned seq against their own cursor; Dropped counts
// ring evictions since startup.
type JournalResponse struct {
	LastSeq uint64             `json:"last_seq"`
	Dropped uint64             `json:"dropped"`
	Events  []linker.LinkEvent `json:"events"`
}

// EventsResponse is the body for GET /v1/events.
type EventsResponse struct {
	Count   int                `json:"count"`
	Records []store.LinkRecord `json:"records"`
}

// TrendsResponse is the body for GET /v1/trends.
type TrendsResponse struct {
	Bucket string                 `json:"bucket"`
	Stats  []store.ResolutionStat `json:"stats"`
}

// CreateWebhookRequest is the body for POST /v1/webhooks. Types filters
// deliveries; empty or ["*"] subscribes to everything.
type CreateWebhookRequest struct {
	URL   string   `json:"url"`
	Types []string `json:"types,omitempty"`
}

// CreateWebhookResponse returns the generated ID and signing secret. The
// secret is shown once and never listed again.
type CreateWebhookResponse struct {
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

// PruneRequest is the body for POST /v1/admin/prune. Retention is a Go
// duration string such as "720h".
type PruneRequest struct {
	Retention string `json:"retention"`
}

// PruneResponse reports how many persisted records were removed.
type PruneResponse struct {
	Removed int64  `json:"removed"`
	Cutoff  string `json:"cutoff"`
}

// HealthResponse is the body for GET /v1/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Leader     bool   `json:"leader"`
	Components int    `json:"components"`
}
