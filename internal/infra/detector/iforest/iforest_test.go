package iforest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
	}{
		{name: "default configuration", opts: nil, wantNTrees: 100},
		{name: "custom trees", opts: []Option{WithTrees(50)}, wantNTrees: 50},
		{name: "multiple options", opts: []Option{WithTrees(200), WithContamination(0.05), WithSeed(123)}, wantNTrees: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
		})
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		data    [][]float64
		wantErr bool
	}{
		{name: "empty data", data: [][]float64{}, wantErr: true},
		{name: "no features", data: [][]float64{{}, {}}, wantErr: true},
		{name: "ragged rows", data: [][]float64{{1, 2}, {3}}, wantErr: true},
		{name: "single sample", data: [][]float64{{1.0, 2.0, 3.0}}},
		{name: "normal data", data: generateTestData(1, 100, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.data)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, f.trained)
			assert.Len(t, f.trees, f.nTrees)
			assert.Equal(t, len(tt.data[0]), f.Features())
		})
	}
}

func TestPredict(t *testing.T) {
	trainData := generateTestData(2, 500, 3)
	f := New(WithTrees(100), WithSampleSize(128), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	scores, err := f.Predict(trainData)
	require.NoError(t, err)
	require.Len(t, scores, len(trainData))
	maxNormal := 0.0
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		maxNormal = max(maxNormal, s)
	}

	outlier, err := f.PredictOne([]float64{50, -50, 50})
	require.NoError(t, err)
	assert.Greater(t, outlier, maxNormal)
	assert.True(t, f.IsAnomaly(outlier))
}

func TestPredict_Errors(t *testing.T) {
	_, err := New().Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotTrained)

	_, err = New().PredictOne([]float64{1})
	assert.ErrorIs(t, err, ErrNotTrained)

	f := New(WithTrees(5))
	require.NoError(t, f.Fit(generateTestData(3, 20, 2)))
	_, err = f.Predict([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}

func TestFit_ConstantDataNotFlagged(t *testing.T) {
	data := make([][]float64, 50)
	for i := range data {
		data[i] = []float64{7, 7}
	}
	f := New(WithTrees(20), WithMinThreshold(0.6))
	require.NoError(t, f.Fit(data))

	scores, err := f.Predict(data)
	require.NoError(t, err)
	for _, s := range scores {
		assert.InDelta(t, 0.5, s, 1e-9)
		assert.False(t, f.IsAnomaly(s))
	}
	assert.Equal(t, 0.6, f.Threshold())
}

func TestFit_SingleSample(t *testing.T) {
	f := New(WithTrees(3))
	require.NoError(t, f.Fit([][]float64{{1, 2}}))

	s, err := f.PredictOne([]float64{100, 100})
	require.NoError(t, err)
	assert.Equal(t, 0.5, s)
}

func TestSaveLoad(t *testing.T) {
	trainData := generateTestData(4, 200, 4)
	original := New(WithTrees(30), WithContamination(0.15), WithSeed(42))
	require.NoError(t, original.Fit(trainData))

	testData := generateTestData(5, 50, 4)
	originalScores, err := original.Predict(testData)
	require.NoError(t, err)

	data, err := original.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	loaded := New()
	require.NoError(t, loaded.Load(data))

	loadedScores, err := loaded.Predict(testData)
	require.NoError(t, err)
	assert.Equal(t, originalScores, loadedScores)
	assert.Equal(t, original.Threshold(), loaded.Threshold())
	assert.Equal(t, 4, loaded.Features())
}

func TestSave_Untrained(t *testing.T) {
	_, err := New().Save()
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestLoad_Garbage(t *testing.T) {
	assert.Error(t, New().Load([]byte("not a model")))
}

func TestThreshold(t *testing.T) {
	f := New()
	f.trained = true

	assert.Equal(t, 0.5, f.Threshold())

	f.SetThreshold(0.7)
	assert.Equal(t, 0.7, f.Threshold())
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 5.0, percentile([]float64{9, 1, 5, 3, 7}, 50))
	assert.Equal(t, 9.0, percentile([]float64{9, 1, 5, 3, 7}, 100))
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(1, 10000, 10)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Fit(data)
	}
}

func BenchmarkPredict(b *testing.B) {
	trainData := generateTestData(1, 5000, 10)
	testData := generateTestData(2, 1000, 10)

	f := New(WithTrees(100), WithSampleSize(256))
	_ = f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = f.Predict(testData)
	}
}

func generateTestData(seed int64, n, features int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rng.NormFloat64()
		}
	}
	return data
}
