package analysis

import (
	"fmt"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
)

// Assemble merges the original dataset with its predictions.
//
// The returned rows carry every original column plus "anomaly" and
// "anomaly_reason" (an upload that already has those columns gets them
// overwritten in place). Anomalies holds the label=1 rows only.
// preds must have exactly one entry per row; anything else is a caller bug
// and panics.
func Assemble(ds *dataset.Dataset, preds []Prediction, fileID string) *Result {
	if len(preds) != ds.Rows {
		panic(fmt.Sprintf("analysis: %d predictions for %d rows", len(preds), ds.Rows))
	}

	columns := ds.Names()
	labelIdx := indexOf(columns, ColumnAnomaly)
	if labelIdx < 0 {
		columns = append(columns, ColumnAnomaly)
		labelIdx = len(columns) - 1
	}
	reasonIdx := indexOf(columns, ColumnAnomalyReason)
	if reasonIdx < 0 {
		columns = append(columns, ColumnAnomalyReason)
		reasonIdx = len(columns) - 1
	}

	res := &Result{
		Summary:   Summary{Total: ds.Rows},
		Rows:      ResultSet{Columns: columns, Rows: make([][]any, ds.Rows)},
		FileID:    fileID,
		Anomalies: ResultSet{Columns: columns, Rows: [][]any{}},
	}

	for i, p := range preds {
		row := make([]any, len(columns))
		copy(row, ds.Row(i))

		label, reason := 0, ""
		if p.Label != 0 {
			label, reason = 1, p.Reason
		}
		row[labelIdx] = label
		row[reasonIdx] = reason
		res.Rows.Rows[i] = row

		if label == 1 {
			res.Summary.Anomalies++
			res.Anomalies.Rows = append(res.Anomalies.Rows, row)
		} else {
			res.Summary.Normal++
		}
	}
	return res
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
