package reporting

import (
	"fmt"
	"strings"

	"crypto-liquidity-lab/internal/domain"
)

// RenderCSV renders per-fold evaluation entries as CSV string.
func RenderCSV(folds []domain.FoldMetrics) string {
	var sb strings.Builder

	// Header
	sb.WriteString("model_name,fold,train_rows,val_rows,rmse,mae,r2,failed,reason\n")

	// Rows
	for _, f := range folds {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%.6f,%.6f,%.6f,%t,%s\n",
			f.ModelName,
			f.Fold,
			f.TrainRows,
			f.ValRows,
			f.RMSE,
			f.MAE,
			f.R2,
			f.Failed,
			f.Reason,
		))
	}

	return sb.String()
}
