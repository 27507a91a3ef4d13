package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

// JournalReport exports persisted link events.
type JournalReport struct {
	store ReportStore
}

// NewJournalReport creates a new JournalReport generator.
func NewJournalReport(s ReportStore) *JournalReport {
	return &JournalReport{store: s}
}

// Generate renders link events in the requested window as CSV or JSON.
func (r *JournalReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	filter := store.EventFilter{
		From: params.Start,
		To:   params.End,
	}
	if src := params.Filters["source_id"]; src != "" {
		filter.SourceID = linker.ComponentID(src)
	}
	if tgt := params.Filters["target_id"]; tgt != "" {
		filter.TargetID = linker.ComponentID(tgt)
	}
	if typ := params.Filters["type"]; typ != "" {
		filter.Types = []linker.LinkEventType{linker.LinkEventType(typ)}
	}

	records, err := r.store.QueryLinkEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query link events: %w", err)
	}

	if params.Format == ReportFormatJSON {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(records); err != nil {
			return nil, fmt.Errorf("failed to encode records: %w", err)
		}
		return buf, nil
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"record_id", "journal_seq", "event_type", "ts_event", "source_id", "target_id", "score", "writer_id"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.RecordID,
			strconv.FormatUint(rec.JournalSeq, 10),
			string(rec.Type),
			rec.TsEvent.Format(time.RFC3339),
			string(rec.SourceID),
			string(rec.TargetID),
			strconv.FormatFloat(rec.Score, 'f', -1, 64),
			rec.WriterID,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}
