// Package worker holds the daemon's background loops: journal flushing,
// webhook dispatch, and retention pruning. Every worker blocks in Run until
// its context is cancelled.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

// FlushInterval is how often the journal ring is drained to the store.
const FlushInterval = 1 * time.Second

// JournalStore is the slice of the store the flusher needs.
type JournalStore interface {
	AppendLinkEvents(ctx context.Context, records []store.LinkRecord) error
}

// Flusher drains journal entries into durable storage. The cursor is the last
// flushed journal sequence; it is deliberately not persisted, because journal
// sequences restart with the engine.
type Flusher struct {
	journal  *linker.Journal
	store    JournalStore
	writerID string
	logger   *slog.Logger
	cursor   uint64
}

// NewFlusher wires a journal to a store. writerID tags every persisted record
// with the producing daemon instance.
func NewFlusher(j *linker.Journal, st JournalStore, writerID string, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{journal: j, store: st, writerID: writerID, logger: logger}
}

// Run flushes on a fixed interval until ctx is cancelled, with a final drain
// on the way out.
func (f *Flusher) Run(ctx context.Context) {
	f.logger.Info("starting journal flusher", "interval", FlushInterval)
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := f.Flush(context.Background()); err != nil {
				f.logger.Error("final journal flush failed", "error", err)
			}
			f.logger.Info("journal flusher stopped")
			return
		case <-ticker.C:
			if _, err := f.Flush(ctx); err != nil {
				f.logger.Error("journal flush failed", "error", err)
			}
		}
	}
}

// Flush persists all journal entries recorded since the last call and returns
// how many were written. Entries evicted from the ring before a flush are
// gone; the gap is logged and the cursor moves past it.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	events := f.journal.Since(f.cursor)
	if len(events) == 0 {
		return 0, nil
	}

	if gap := events[0].Seq - f.cursor - 1; gap > 0 {
		f.logger.Warn("journal entries evicted before flush", "lost", gap, "cursor", f.cursor)
	}

	records := make([]store.LinkRecord, 0, len(events))
	for _, e := range events {
		records = append(records, store.LinkRecord{
			JournalSeq: e.Seq,
			Type:       e.Type,
			TsEvent:    e.Timestamp,
			SourceID:   e.SourceID,
			TargetID:   e.TargetID,
			Score:      e.Score,
			WriterID:   f.writerID,
		})
	}

	if err := f.store.AppendLinkEvents(ctx, records); err != nil {
		return 0, err
	}
	f.cursor = events[len(events)-1].Seq
	return len(records), nil
}
