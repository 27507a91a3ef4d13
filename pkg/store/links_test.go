package store

import (
	"context"
	"testing"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
)

func sampleRecords(base time.Time) []LinkRecord {
	return []LinkRecord{
		{JournalSeq: 1, Type: linker.EventIndirectLink, TsEvent: base, SourceID: "app", TargetID: "render", Score: 0.9, WriterID: "isolinkd-1"},
		{JournalSeq: 2, Type: linker.EventCanonicalMerge, TsEvent: base.Add(10 * time.Minute), SourceID: "render-b", TargetID: "render", Score: 1, WriterID: "isolinkd-1"},
		{JournalSeq: 3, Type: linker.EventIndirectLink, TsEvent: base.Add(2 * time.Hour), SourceID: "app", TargetID: "audio", Score: 0.7, WriterID: "isolinkd-1"},
	}
}

func TestAppendAndQueryLinkEvents(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	if err := store.AppendLinkEvents(ctx, sampleRecords(base)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// 1. No filter returns everything in ingest order with assigned IDs.
	all, err := store.QueryLinkEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records, want 3", len(all))
	}
	for i, r := range all {
		if r.RecordID == "" {
			t.Errorf("record %d missing record_id", i)
		}
		if r.RowID == 0 {
			t.Errorf("record %d missing rowid", i)
		}
	}
	if all[0].SourceID != "app" || all[0].Score != 0.9 {
		t.Errorf("first record = %+v", all[0])
	}

	// 2. Type filter.
	merges, err := store.QueryLinkEvents(ctx, EventFilter{Types: []linker.LinkEventType{linker.EventCanonicalMerge}})
	if err != nil {
		t.Fatal(err)
	}
	if len(merges) != 1 || merges[0].SourceID != "render-b" {
		t.Errorf("merge filter = %+v", merges)
	}

	// 3. Source and target filters.
	bySource, err := store.QueryLinkEvents(ctx, EventFilter{SourceID: "app"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySource) != 2 {
		t.Errorf("source filter got %d, want 2", len(bySource))
	}
	byTarget, err := store.QueryLinkEvents(ctx, EventFilter{TargetID: "audio"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTarget) != 1 {
		t.Errorf("target filter got %d, want 1", len(byTarget))
	}

	// 4. Time window and limit.
	windowed, err := store.QueryLinkEvents(ctx, EventFilter{From: base.Add(time.Minute), To: base.Add(3 * time.Hour), Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(windowed) != 1 || windowed[0].JournalSeq != 2 {
		t.Errorf("windowed = %+v, want journal_seq 2", windowed)
	}
}

func TestReadLinkEventsAfterCursor(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.AppendLinkEvents(ctx, sampleRecords(time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	first, err := store.ReadLinkEventsAfter(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("first batch = %d, want 2", len(first))
	}

	rest, err := store.ReadLinkEventsAfter(ctx, first[len(first)-1].RowID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].JournalSeq != 3 {
		t.Fatalf("second batch = %+v, want journal_seq 3", rest)
	}

	empty, err := store.ReadLinkEventsAfter(ctx, rest[0].RowID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("drained cursor returned %d records", len(empty))
	}
}

func TestDeleteLinkEventsBefore(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	if err := store.AppendLinkEvents(ctx, sampleRecords(base)); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeleteLinkEventsBefore(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	left, err := store.QueryLinkEvents(ctx, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].JournalSeq != 3 {
		t.Errorf("remaining = %+v, want journal_seq 3", left)
	}
}

func TestResolutionStatsBuckets(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	records := []LinkRecord{
		{JournalSeq: 1, Type: linker.EventIndirectLink, TsEvent: base.Add(5 * time.Minute), SourceID: "a", TargetID: "b", Score: 0.6},
		{JournalSeq: 2, Type: linker.EventIndirectLink, TsEvent: base.Add(20 * time.Minute), SourceID: "a", TargetID: "c", Score: 1.0},
		{JournalSeq: 3, Type: linker.EventIndirectLink, TsEvent: base.Add(90 * time.Minute), SourceID: "a", TargetID: "d", Score: 0.8},
		{JournalSeq: 4, Type: linker.EventCanonicalMerge, TsEvent: base.Add(10 * time.Minute), SourceID: "x", TargetID: "y", Score: 1},
	}
	if err := store.AppendLinkEvents(ctx, records); err != nil {
		t.Fatal(err)
	}

	stats, err := store.ResolutionStats(ctx, StatsFilter{Bucket: "hour"})
	if err != nil {
		t.Fatal(err)
	}
	// Hour 09: 2 links + 1 merge (separate rows). Hour 10: 1 link.
	if len(stats) != 3 {
		t.Fatalf("stats rows = %d, want 3: %+v", len(stats), stats)
	}

	first := stats[0]
	if !first.BucketTs.Equal(base.Truncate(time.Hour)) {
		t.Errorf("first bucket = %v, want %v", first.BucketTs, base.Truncate(time.Hour))
	}
	if first.Type != linker.EventCanonicalMerge || first.Count != 1 {
		t.Errorf("first row = %+v, want one merge", first)
	}

	links := stats[1]
	if links.Type != linker.EventIndirectLink || links.Count != 2 {
		t.Fatalf("second row = %+v, want two links", links)
	}
	if links.MeanScore != 0.8 || links.MinScore != 0.6 || links.MaxScore != 1.0 {
		t.Errorf("scores = mean %v min %v max %v, want 0.8/0.6/1.0", links.MeanScore, links.MinScore, links.MaxScore)
	}

	daily, err := store.ResolutionStats(ctx, StatsFilter{Bucket: "day"})
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) != 2 {
		t.Errorf("daily rows = %d, want 2", len(daily))
	}
}
