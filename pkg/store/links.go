package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isolink-io/isolink/pkg/linker"
)

// AppendLinkEvents persists a batch of records in one transaction. Records
// without a RecordID are assigned one; TsIngest is stamped here.
func (s *Store) AppendLinkEvents(ctx context.Context, records []LinkRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO link_events (record_id, journal_seq, event_type, ts_event, ts_ingest, source_id, target_id, score, writer_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		if r.RecordID == "" {
			r.RecordID = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			r.RecordID, r.JournalSeq, string(r.Type), r.TsEvent.UTC(), now,
			string(r.SourceID), string(r.TargetID), r.Score, r.WriterID,
		); err != nil {
			return fmt.Errorf("failed to insert link event %s: %w", r.RecordID, err)
		}
	}

	return tx.Commit()
}

// QueryLinkEvents returns records matching the filter, ingest order.
func (s *Store) QueryLinkEvents(ctx context.Context, filter EventFilter) ([]LinkRecord, error) {
	query := `
		SELECT id, record_id, journal_seq, event_type, ts_event, ts_ingest, source_id, target_id, score, COALESCE(writer_id, '')
		FROM link_events WHERE 1=1
	`
	var args []any

	if !filter.From.IsZero() {
		query += " AND ts_event >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND ts_event < ?"
		args = append(args, filter.To.UTC())
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND event_type IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.SourceID != "" {
		query += " AND source_id = ?"
		args = append(args, string(filter.SourceID))
	}
	if filter.TargetID != "" {
		query += " AND target_id = ?"
		args = append(args, string(filter.TargetID))
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query link events: %w", err)
	}
	defer rows.Close()

	return scanLinkRecords(rows)
}

// ReadRecentLinkEvents returns the newest limit records, newest first.
func (s *Store) ReadRecentLinkEvents(ctx context.Context, limit int) ([]LinkRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, journal_seq, event_type, ts_event, ts_ingest, source_id, target_id, score, COALESCE(writer_id, '')
		FROM link_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent link events: %w", err)
	}
	defer rows.Close()

	return scanLinkRecords(rows)
}

// ReadLinkEventsAfter returns up to limit records with rowid > after, ingest
// order. Delivery workers use the last returned RowID as their cursor.
func (s *Store) ReadLinkEventsAfter(ctx context.Context, after int64, limit int) ([]LinkRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, journal_seq, event_type, ts_event, ts_ingest, source_id, target_id, score, COALESCE(writer_id, '')
		FROM link_events WHERE id > ? ORDER BY id LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read link events: %w", err)
	}
	defer rows.Close()

	return scanLinkRecords(rows)
}

// DeleteLinkEventsBefore removes records older than cutoff and reports how
// many went. Callers archive first; see ArchiveWorker.
func (s *Store) DeleteLinkEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM link_events WHERE ts_event < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete link events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// ResolutionStats aggregates link events into hourly or daily buckets.
func (s *Store) ResolutionStats(ctx context.Context, filter StatsFilter) ([]ResolutionStat, error) {
	bucket := "strftime('%Y-%m-%dT%H:00:00Z', ts_event)"
	if filter.Bucket == "day" {
		bucket = "strftime('%Y-%m-%dT00:00:00Z', ts_event)"
	}

	query := fmt.Sprintf(`
		SELECT %s AS bucket, event_type, COUNT(*), AVG(score), MIN(score), MAX(score)
		FROM link_events WHERE 1=1
	`, bucket)
	var args []any
	if !filter.From.IsZero() {
		query += " AND ts_event >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND ts_event < ?"
		args = append(args, filter.To.UTC())
	}
	query += " GROUP BY bucket, event_type ORDER BY bucket, event_type"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolution stats: %w", err)
	}
	defer rows.Close()

	var stats []ResolutionStat
	for rows.Next() {
		var (
			bucketStr string
			eventType string
			st        ResolutionStat
		)
		if err := rows.Scan(&bucketStr, &eventType, &st.Count, &st.MeanScore, &st.MinScore, &st.MaxScore); err != nil {
			return nil, fmt.Errorf("failed to scan stat row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, bucketStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse bucket %q: %w", bucketStr, err)
		}
		st.BucketTs = ts
		st.Type = linker.LinkEventType(eventType)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func scanLinkRecords(rows *sql.Rows) ([]LinkRecord, error) {
	var out []LinkRecord
	for rows.Next() {
		var (
			r         LinkRecord
			eventType string
			sourceID  string
			targetID  string
		)
		if err := rows.Scan(&r.RowID, &r.RecordID, &r.JournalSeq, &eventType, &r.TsEvent, &r.TsIngest, &sourceID, &targetID, &r.Score, &r.WriterID); err != nil {
			return nil, fmt.Errorf("failed to scan link event: %w", err)
		}
		r.Type = linker.LinkEventType(eventType)
		r.SourceID = linker.ComponentID(sourceID)
		r.TargetID = linker.ComponentID(targetID)
		out = append(out, r)
	}
	return out, rows.Err()
}
