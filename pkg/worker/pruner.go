package worker

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/isolink-io/isolink/pkg/blob"
	"github.com/isolink-io/isolink/pkg/store"
)

// RetentionConfig controls pruning of persisted link events.
type RetentionConfig struct {
	Enabled       bool          `json:"enabled"`
	MaxAge        time.Duration `json:"max_age"`
	CheckInterval time.Duration `json:"check_interval"`
	// Archive writes expiring records to the blob store as gzipped JSON
	// Lines before deletion.
	Archive bool `json:"archive"`
}

// PruneStore is the slice of the store the pruner needs.
type PruneStore interface {
	QueryLinkEvents(ctx context.Context, filter store.EventFilter) ([]store.LinkRecord, error)
	DeleteLinkEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner expires old link events, optionally archiving them first.
type Pruner struct {
	store  PruneStore
	blobs  blob.BlobStore
	config RetentionConfig
	logger *slog.Logger
}

// NewPruner builds a pruner. blobs may be nil when archiving is disabled.
func NewPruner(st PruneStore, blobs blob.BlobStore, cfg RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{store: st, blobs: blobs, config: cfg, logger: logger}
}

// Run prunes on the configured interval until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	if !p.config.Enabled {
		p.logger.Info("pruning disabled")
		return
	}
	interval := p.config.CheckInterval
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	p.logger.Info("starting pruner", "interval", interval, "max_age", p.config.MaxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pruner stopped")
			return
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				p.logger.Error("prune pass failed", "error", err)
			}
		}
	}
}

// PruneOnce expires everything older than MaxAge and reports how many records
// were removed.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	return p.PruneBefore(ctx, time.Now().UTC().Add(-p.config.MaxAge))
}

// PruneBefore expires everything older than cutoff. The admin API calls this
// with ad-hoc retention windows.
func (p *Pruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if p.config.Archive && p.blobs != nil {
		if err := p.archiveBefore(ctx, cutoff); err != nil {
			// Archiving failed: keep the records rather than dropping
			// unarchived history.
			return 0, fmt.Errorf("archive before prune: %w", err)
		}
	}

	n, err := p.store.DeleteLinkEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("pruned link events", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// archiveBefore writes all records older than cutoff into one gzipped JSONL
// blob keyed by day and batch bounds.
func (p *Pruner) archiveBefore(ctx context.Context, cutoff time.Time) error {
	records, err := p.store.QueryLinkEvents(ctx, store.EventFilter{To: cutoff})
	if err != nil {
		return fmt.Errorf("failed to read expiring records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			gz.Close()
			return fmt.Errorf("failed to encode record %s: %w", rec.RecordID, err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}

	first, last := records[0], records[len(records)-1]
	year, month, day := first.TsEvent.Date()
	key := fmt.Sprintf("links/%04d/%02d/%02d/%d_%d_%s.jsonl.gz",
		year, month, day,
		first.TsEvent.Unix(),
		last.TsEvent.Unix(),
		uuid.New().String(),
	)

	if err := p.blobs.Put(ctx, key, &buf); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}
	p.logger.Info("archived link events", "count", len(records), "key", key)
	return nil
}
