package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Training Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows In | %d |\n", r.DataSummary.RowsIn))
	sb.WriteString(fmt.Sprintf("| Rows Kept | %d |\n", r.DataSummary.RowsKept))
	sb.WriteString(fmt.Sprintf("| Rows Dropped | %d |\n", r.DataSummary.RowsDropped))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", r.DataSummary.DataFrom.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", r.DataSummary.DataTo.Format("2006-01-02")))
	sb.WriteString("\n")

	// Candidate comparison
	sb.WriteString("## Candidates\n\n")
	if len(r.Candidates) > 0 {
		sb.WriteString("| Model | Folds | Failed | Mean RMSE | Mean MAE | Mean R2 | Selected |\n")
		sb.WriteString("|-------|-------|--------|-----------|----------|---------|----------|\n")
		for _, c := range r.Candidates {
			selected := ""
			if c.Selected {
				selected = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.6f | %.6f | %.6f | %s |\n",
				c.ModelName, c.Folds, c.FailedFolds, c.MeanRMSE, c.MeanMAE, c.MeanR2, selected))
		}
	} else {
		sb.WriteString("No candidates evaluated.\n")
	}
	sb.WriteString("\n")

	// Per-fold metrics
	sb.WriteString("## Fold Metrics\n\n")
	if len(r.Folds) > 0 {
		sb.WriteString("| Model | Fold | Train | Val | RMSE | MAE | R2 | Status |\n")
		sb.WriteString("|-------|------|-------|-----|------|-----|----|--------|\n")
		for _, f := range r.Folds {
			status := "ok"
			if f.Failed {
				status = "failed: " + f.Reason
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.6f | %.6f | %.6f | %s |\n",
				f.ModelName, f.Fold, f.TrainRows, f.ValRows, f.RMSE, f.MAE, f.R2, status))
		}
	} else {
		sb.WriteString("No fold metrics available.\n")
	}
	sb.WriteString("\n")

	// Artifact
	sb.WriteString("## Artifact\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Model | %s |\n", r.Artifact.ModelName))
	sb.WriteString(fmt.Sprintf("| Version | %s |\n", r.Artifact.Version))
	sb.WriteString(fmt.Sprintf("| Path | %s |\n", r.Artifact.Path))
	sb.WriteString(fmt.Sprintf("| Features | %s |\n", strings.Join(r.Artifact.Features, ", ")))
	sb.WriteString("\n")

	return sb.String()
}
