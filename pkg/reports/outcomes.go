package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/isolink-io/isolink/pkg/linker"
)

// OutcomesReport exports per-component resolution counters from the live
// registry. Time bounds do not apply; counters are cumulative.
type OutcomesReport struct {
	comps ComponentSource
}

// NewOutcomesReport creates a new OutcomesReport generator.
func NewOutcomesReport(c ComponentSource) *OutcomesReport {
	return &OutcomesReport{comps: c}
}

// Generate renders the outcome counters of every live component.
func (r *OutcomesReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	views := r.comps.Components()

	if class := params.Filters["class"]; class != "" {
		filtered := make([]linker.ComponentView, 0, len(views))
		for _, v := range views {
			if string(v.Class) == class {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	if params.Format == ReportFormatJSON {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(views); err != nil {
			return nil, fmt.Errorf("failed to encode components: %w", err)
		}
		return buf, nil
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"component_id", "phase", "class", "representative", "anchors", "edges",
		"true_positive_links", "false_positive_links", "true_negative_skips", "false_negative_misses"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for _, v := range views {
		row := []string{
			string(v.ID),
			string(v.Phase),
			string(v.Class),
			string(v.Representative),
			strconv.Itoa(len(v.Anchors)),
			strconv.Itoa(len(v.Edges)),
			strconv.FormatUint(v.Metrics.TruePositiveLinks, 10),
			strconv.FormatUint(v.Metrics.FalsePositiveLinks, 10),
			strconv.FormatUint(v.Metrics.TrueNegativeSkips, 10),
			strconv.FormatUint(v.Metrics.FalseNegativeMisses, 10),
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
