package reports

import (
	"context"
	"io"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

type ReportType string

const (
	ReportTypeJournal  ReportType = "journal"
	ReportTypeOutcomes ReportType = "outcomes"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

type ReportParams struct {
	Start   time.Time
	End     time.Time
	Format  ReportFormat
	Filters map[string]string
}

// ReportStore defines the interface for data access required by reports.
type ReportStore interface {
	QueryLinkEvents(ctx context.Context, filter store.EventFilter) ([]store.LinkRecord, error)
}

// ComponentSource supplies registry snapshots for the outcomes report. The
// linker engine satisfies it.
type ComponentSource interface {
	Components() []linker.ComponentView
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}

// ContentType returns the MIME type a format streams as.
func ContentType(format ReportFormat) string {
	if format == ReportFormatJSON {
		return "application/json"
	}
	return "text/csv"
}
