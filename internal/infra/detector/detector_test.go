package detector

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
)

func trafficMatrix(n int, seed int64) *dataset.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := &dataset.Matrix{Columns: []string{"Bytes", "Packets"}}
	for i := 0; i < n; i++ {
		m.Rows = append(m.Rows, []float64{5000 + rng.NormFloat64()*100, 250 + rng.NormFloat64()*10})
	}
	return m
}

func detect(t *testing.T, d *Detector, m *dataset.Matrix) []analysis.Prediction {
	t.Helper()
	preds, err := d.Detect(context.Background(), analysis.DetectRequest{Data: m, UserID: "u1", FileName: "t.csv"})
	require.NoError(t, err)
	require.Len(t, preds, len(m.Rows))
	return preds
}

func TestDetect_FlagsOutlier(t *testing.T) {
	m := trafficMatrix(200, 1)
	m.Rows[17] = []float64{90000, 250}

	preds := detect(t, New(Config{}), m)

	require.Equal(t, 1, preds[17].Label)
	assert.True(t, strings.HasPrefix(preds[17].Reason, "High Bytes (z="), preds[17].Reason)
	for i, p := range preds {
		if p.Label == 0 {
			assert.Empty(t, p.Reason, "row %d", i)
		}
	}
}

func TestDetect_TooFewRows(t *testing.T) {
	m := trafficMatrix(5, 1)
	m.Rows[0] = []float64{1e9, 1e9}

	for _, p := range detect(t, New(Config{}), m) {
		assert.Equal(t, analysis.Prediction{}, p)
	}
}

func TestDetect_NoUsableColumns(t *testing.T) {
	m := &dataset.Matrix{Columns: []string{"empty"}}
	for i := 0; i < 20; i++ {
		m.Rows = append(m.Rows, []float64{math.NaN()})
	}

	for _, p := range detect(t, New(Config{}), m) {
		assert.Equal(t, 0, p.Label)
	}

	none := &dataset.Matrix{Rows: make([][]float64, 20)}
	for i := range none.Rows {
		none.Rows[i] = []float64{}
	}
	assert.Len(t, detect(t, New(Config{}), none), 20)
}

func TestDetect_IgnoresAllMissingColumn(t *testing.T) {
	m := trafficMatrix(100, 2)
	m.Columns = append(m.Columns, "Missing")
	for i := range m.Rows {
		m.Rows[i] = append(m.Rows[i], math.NaN())
	}
	m.Rows[3][0] = 80000

	preds := detect(t, New(Config{}), m)

	assert.Equal(t, 1, preds[3].Label)
	assert.NotContains(t, preds[3].Reason, "Missing")
}

func TestDetect_ConstantDataAllNormal(t *testing.T) {
	m := &dataset.Matrix{Columns: []string{"v"}}
	for i := 0; i < 50; i++ {
		m.Rows = append(m.Rows, []float64{3})
	}

	for _, p := range detect(t, New(Config{}), m) {
		assert.Equal(t, 0, p.Label)
	}
}

func TestDetect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Detect(ctx, analysis.DetectRequest{Data: trafficMatrix(50, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetect_PretrainedModel(t *testing.T) {
	model, err := Train(Config{}, trafficMatrix(500, 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"Bytes", "Packets"}, model.Features)

	d := New(Config{})
	d.UseModel(model)

	// too few rows for a useful fit of its own; the trained statistics
	// name the spike
	m := trafficMatrix(20, 4)
	m.Rows[5] = []float64{20000, 900}
	preds := detect(t, d, m)

	assert.Equal(t, 1, preds[5].Label)
	assert.Contains(t, preds[5].Reason, "High Packets (z=")
}

func TestDetect_PretrainedModelFeatureMismatchRefits(t *testing.T) {
	model, err := Train(Config{}, trafficMatrix(100, 3))
	require.NoError(t, err)
	d := New(Config{})
	d.UseModel(model)

	m := &dataset.Matrix{Columns: []string{"Port"}}
	for i := 0; i < 30; i++ {
		m.Rows = append(m.Rows, []float64{443})
	}
	m.Rows[0] = []float64{65000}

	preds := detect(t, d, m)
	assert.Equal(t, 1, preds[0].Label)
}

func TestTrain_NoFeatures(t *testing.T) {
	_, err := Train(Config{}, &dataset.Matrix{Columns: []string{"a"}, Rows: [][]float64{{math.NaN()}}})
	assert.ErrorIs(t, err, ErrNoFeatures)
}

func TestSaveLoadModel(t *testing.T) {
	model, err := Train(Config{Trees: 20}, trafficMatrix(100, 5))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, SaveModel(&buf, model))

	loaded, err := LoadModel(&buf)
	require.NoError(t, err)
	assert.Equal(t, model.Features, loaded.Features)
	assert.Equal(t, model.Mean, loaded.Mean)
	assert.Equal(t, model.Std, loaded.Std)

	x := trafficMatrix(10, 6).Rows
	want, err := model.forest.Predict(x)
	require.NoError(t, err)
	got, err := loaded.forest.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadModel_Garbage(t *testing.T) {
	_, err := LoadModel(strings.NewReader("nope"))
	assert.Error(t, err)
}

func TestReason(t *testing.T) {
	m := &Model{
		Features: []string{"a", "b", "c", "d", "flat"},
		Mean:     []float64{0, 0, 0, 0, 1},
		Std:      []float64{1, 1, 1, 1, 0},
	}
	cfg := Config{}.withDefaults()

	got := m.reason([]float64{3.5, -6, 1, 4, 100}, 0.8, 0.6, cfg)
	assert.Equal(t, "Low b (z=-6.00); High d (z=4.00); High a (z=3.50)", got)

	got = m.reason([]float64{0.1, 0.2, 0, 0, 1}, 0.71, 0.62, cfg)
	assert.Equal(t, "Isolation score 0.71 above threshold 0.62", got)
}
