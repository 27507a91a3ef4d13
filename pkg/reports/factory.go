package reports

import "fmt"

// NewReportGenerator creates a report generator based on the report type.
func NewReportGenerator(reportType ReportType, s ReportStore, comps ComponentSource) (Generator, error) {
	switch reportType {
	case ReportTypeJournal:
		return NewJournalReport(s), nil
	case ReportTypeOutcomes:
		return NewOutcomesReport(comps), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}
}
