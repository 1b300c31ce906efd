package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
)

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ParseCSV([]byte("Port,Bytes,Proto\n" +
		"443,100,tcp\n" +
		"22,,ssh\n" +
		"80,90000,tcp\n" +
		"53,120,udp\n"))
	require.NoError(t, err)
	return ds
}

func TestAssemble(t *testing.T) {
	ds := sampleDataset(t)
	preds := []Prediction{
		{Label: 0},
		{Label: 0, Reason: "ignored"},
		{Label: 1, Reason: "High Bytes (z=3.10)"},
		{Label: 0},
	}

	res := Assemble(ds, preds, "fid")

	assert.Equal(t, Summary{Total: 4, Anomalies: 1, Normal: 3}, res.Summary)
	assert.Equal(t, "fid", res.FileID)
	assert.Equal(t, []string{"Port", "Bytes", "Proto", "anomaly", "anomaly_reason"}, res.Rows.Columns)
	require.Len(t, res.Rows.Rows, 4)

	assert.Equal(t, []any{80.0, 90000.0, "tcp", 1, "High Bytes (z=3.10)"}, res.Rows.Rows[2])
	assert.Equal(t, "", res.Rows.Rows[1][4], "reason is blank for normal rows")
	assert.True(t, math.IsNaN(res.Rows.Rows[1][1].(float64)))

	require.Equal(t, 1, res.Anomalies.Len())
	assert.Equal(t, res.Rows.Columns, res.Anomalies.Columns)
	assert.Equal(t, res.Rows.Rows[2], res.Anomalies.Rows[0])
}

func TestAssemble_SummaryInvariant(t *testing.T) {
	ds := sampleDataset(t)
	tests := []struct {
		name   string
		labels []int
	}{
		{name: "none", labels: []int{0, 0, 0, 0}},
		{name: "all", labels: []int{1, 1, 1, 1}},
		{name: "mixed", labels: []int{1, 0, 1, 0}},
		{name: "non binary label counts as anomaly", labels: []int{-1, 0, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preds := make([]Prediction, len(tt.labels))
			for i, l := range tt.labels {
				preds[i] = Prediction{Label: l}
			}
			res := Assemble(ds, preds, "x")
			s := res.Summary
			assert.Equal(t, ds.Rows, s.Total)
			assert.Equal(t, s.Total, s.Anomalies+s.Normal)
			assert.Equal(t, s.Anomalies, res.Anomalies.Len())
			assert.Len(t, res.Rows.Rows, ds.Rows)
		})
	}
}

func TestAssemble_OverwritesExistingAnnotationColumns(t *testing.T) {
	ds, err := dataset.ParseCSV([]byte("v,anomaly\n1,5\n2,5\n"))
	require.NoError(t, err)

	res := Assemble(ds, []Prediction{{Label: 1, Reason: "r"}, {}}, "x")

	assert.Equal(t, []string{"v", "anomaly", "anomaly_reason"}, res.Rows.Columns)
	assert.Equal(t, []any{1.0, 1, "r"}, res.Rows.Rows[0])
	assert.Equal(t, []any{2.0, 0, ""}, res.Rows.Rows[1])
}

func TestAssemble_LengthMismatchPanics(t *testing.T) {
	ds := sampleDataset(t)
	assert.Panics(t, func() {
		Assemble(ds, []Prediction{{}}, "x")
	})
}

func TestAssemble_EmptyDataset(t *testing.T) {
	ds, err := dataset.ParseCSV([]byte("a,b\n"))
	require.NoError(t, err)

	res := Assemble(ds, nil, "x")

	assert.Equal(t, Summary{}, res.Summary)
	assert.Empty(t, res.Rows.Rows)
	assert.Equal(t, 0, res.Anomalies.Len())
}
