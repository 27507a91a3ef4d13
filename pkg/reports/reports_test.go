package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

type mockReportStore struct {
	records []store.LinkRecord
}

func (m *mockReportStore) QueryLinkEvents(ctx context.Context, filter store.EventFilter) ([]store.LinkRecord, error) {
	var results []store.LinkRecord
	for _, rec := range m.records {
		// Basic time filtering
		if !filter.From.IsZero() && rec.TsEvent.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && rec.TsEvent.After(filter.To) {
			continue
		}
		// Type filtering
		if len(filter.Types) > 0 {
			found := false
			for _, t := range filter.Types {
				if rec.Type == t {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.SourceID != "" && rec.SourceID != filter.SourceID {
			continue
		}
		results = append(results, rec)
	}
	return results, nil
}

type mockComponentSource struct {
	views []linker.ComponentView
}

func (m *mockComponentSource) Components() []linker.ComponentView {
	return m.views
}

func TestJournalReportCSV(t *testing.T) {
	now := time.Now()
	records := []store.LinkRecord{
		{
			RecordID:   "rec1",
			JournalSeq: 7,
			Type:       linker.EventIndirectLink,
			TsEvent:    now,
			SourceID:   "app",
			TargetID:   "render",
			Score:      0.9,
			WriterID:   "isolinkd-1",
		},
	}
	s := &mockReportStore{records: records}
	r := NewJournalReport(s)

	params := ReportParams{
		Start:  now.Add(-1 * time.Hour),
		End:    now.Add(1 * time.Hour),
		Format: ReportFormatCSV,
	}

	reader, err := r.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	csvReader := csv.NewReader(reader)
	rows, err := csvReader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}

	if len(rows) != 2 { // Header + 1 row
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "rec1" {
		t.Errorf("Expected record ID rec1, got %s", rows[1][0])
	}
	if rows[1][2] != "INDIRECT_LINK" {
		t.Errorf("Expected event type INDIRECT_LINK, got %s", rows[1][2])
	}
	if rows[1][6] != "0.9" {
		t.Errorf("Expected score 0.9, got %s", rows[1][6])
	}
}

func TestJournalReportJSON(t *testing.T) {
	now := time.Now()
	s := &mockReportStore{records: []store.LinkRecord{
		{RecordID: "rec1", Type: linker.EventCanonicalMerge, TsEvent: now, SourceID: "dup", TargetID: "canon", Score: 1},
	}}
	r := NewJournalReport(s)

	reader, err := r.Generate(context.Background(), ReportParams{Format: ReportFormatJSON})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var decoded []store.LinkRecord
	if err := json.NewDecoder(reader).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].RecordID != "rec1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestJournalReportTypeFilter(t *testing.T) {
	now := time.Now()
	s := &mockReportStore{records: []store.LinkRecord{
		{RecordID: "l1", Type: linker.EventIndirectLink, TsEvent: now},
		{RecordID: "m1", Type: linker.EventCanonicalMerge, TsEvent: now},
	}}
	r := NewJournalReport(s)

	params := ReportParams{
		Format:  ReportFormatCSV,
		Filters: map[string]string{"type": string(linker.EventCanonicalMerge)},
	}
	reader, err := r.Generate(context.Background(), params)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	rows, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "m1" {
		t.Errorf("rows = %v, want header + m1", rows)
	}
}

func TestOutcomesReport(t *testing.T) {
	src := &mockComponentSource{views: []linker.ComponentView{
		{
			ID:             "render",
			Phase:          linker.PhaseDormant,
			Class:          linker.ClassRepresentative,
			Representative: "render",
			Anchors:        []string{"render"},
			Metrics:        linker.OutcomeSnapshot{TruePositiveLinks: 3, TrueNegativeSkips: 1},
		},
		{
			ID:             "render-copy",
			Phase:          linker.PhaseDormant,
			Class:          linker.ClassMember,
			Representative: "render",
		},
	}}
	r := NewOutcomesReport(src)

	reader, err := r.Generate(context.Background(), ReportParams{Format: ReportFormatCSV})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	rows, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "render" || rows[1][6] != "3" {
		t.Errorf("first row = %v", rows[1])
	}

	// Class filter narrows to members only.
	reader, err = r.Generate(context.Background(), ReportParams{
		Format:  ReportFormatCSV,
		Filters: map[string]string{"class": "member"},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	rows, _ = csv.NewReader(reader).ReadAll()
	if len(rows) != 2 || rows[1][0] != "render-copy" {
		t.Errorf("filtered rows = %v", rows)
	}
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	if _, err := NewReportGenerator("bogus", nil, nil); err == nil {
		t.Fatal("expected error for unknown report type")
	}
	if _, err := NewReportGenerator(ReportTypeJournal, &mockReportStore{}, nil); err != nil {
		t.Fatalf("journal generator failed: %v", err)
	}
	if _, err := NewReportGenerator(ReportTypeOutcomes, nil, &mockComponentSource{}); err != nil {
		t.Fatalf("outcomes generator failed: %v", err)
	}
}
