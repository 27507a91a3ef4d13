package store

import (
	"context"
	"errors"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// LinkRecord is the persisted form of a journal entry. The in-memory journal
// ring is the source; the flusher drains it here for durability. JournalSeq
// restarts with the daemon, so RecordID (a UUID) is the stable identity and
// RowID the ingest order.
type LinkRecord struct {
	RowID      int64                `json:"-"`
	RecordID   string               `json:"record_id"`
	JournalSeq uint64               `json:"journal_seq"`
	Type       linker.LinkEventType `json:"type"`
	TsEvent    time.Time            `json:"ts_event"`
	TsIngest   time.Time            `json:"ts_ingest"`
	SourceID   linker.ComponentID   `json:"source_id"`
	TargetID   linker.ComponentID   `json:"target_id"`
	Score      float64              `json:"score"`
	WriterID   string               `json:"writer_id,omitempty"`
}

// EventFilter narrows link-event queries.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Types    []linker.LinkEventType
	SourceID linker.ComponentID
	TargetID linker.ComponentID
	Limit    int
}

// ResolutionStat is an aggregated bucket of link events.
type ResolutionStat struct {
	BucketTs  time.Time            `json:"bucket_ts"`
	Type      linker.LinkEventType `json:"type"`
	Count     int                  `json:"count"`
	MeanScore float64              `json:"mean_score"`
	MinScore  float64              `json:"min_score"`
	MaxScore  float64              `json:"max_score"`
}

// StatsFilter selects the window and bucket size for ResolutionStats.
type StatsFilter struct {
	From   time.Time
	To     time.Time
	Bucket string // "hour" or "day"
}

// Lease represents a distributed lock or leadership claim.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"` // For CAS (Compare-And-Swap) logic
}

// LeaseStore defines the interface for acquiring and renewing leases.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns error if the lease is lost or stolen.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease state.
	Get(ctx context.Context, name string) (*Lease, error)
}

// WebhookConfig is a registered endpoint for link-event notifications.
type WebhookConfig struct {
	WebhookID string    `json:"webhook_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret"` // Shared secret for HMAC signature verification
	Types     []string  `json:"types"`  // Link event types to deliver; empty means all
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}
