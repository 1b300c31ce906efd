// Package detector scores preprocessed uploads with an isolation forest and
// explains flagged rows by their most deviating features.
package detector

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/detector/iforest"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
)

// ErrNoFeatures is returned by Train when no column is usable.
var ErrNoFeatures = errors.New("no usable numeric features")

type Config struct {
	Trees         int
	SampleSize    int
	Contamination float64
	MinThreshold  float64
	Seed          int64
	// MinRows below which an upload is reported as all normal.
	MinRows int
	// ZThreshold is the |z| a feature needs to be named in a reason.
	ZThreshold float64
	// MaxReasons caps the features named per row.
	MaxReasons int
}

func (c Config) withDefaults() Config {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 256
	}
	if c.Contamination <= 0 {
		c.Contamination = 0.05
	}
	if c.MinThreshold <= 0 {
		c.MinThreshold = 0.6
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.MinRows <= 0 {
		c.MinRows = 10
	}
	if c.ZThreshold <= 0 {
		c.ZThreshold = 3
	}
	if c.MaxReasons <= 0 {
		c.MaxReasons = 3
	}
	return c
}

// Model is a fitted forest plus the feature statistics used for reasons.
type Model struct {
	Features []string
	Mean     []float64
	Std      []float64
	forest   *iforest.IsolationForest
}

// Detector implements analysis.Detector. A pre-trained model is used when
// the upload has exactly its features; otherwise a forest is fitted on the
// upload itself.
type Detector struct {
	cfg        Config
	pretrained *Model
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// UseModel installs a pre-trained model.
func (d *Detector) UseModel(m *Model) { d.pretrained = m }

func (d *Detector) Detect(ctx context.Context, req analysis.DetectRequest) ([]analysis.Prediction, error) {
	m := req.Data
	preds := make([]analysis.Prediction, len(m.Rows))

	names, x := project(m)
	if len(names) == 0 || len(x) < d.cfg.MinRows {
		logging.Ctx(ctx).Debug().
			Int("rows", len(x)).
			Int("features", len(names)).
			Msg("not enough data to score, reporting all rows normal")
		return preds, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := d.pretrained
	if model == nil || !slices.Equal(model.Features, names) {
		var err error
		if model, err = fit(d.cfg, names, x); err != nil {
			return nil, err
		}
	}

	scores, err := model.forest.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("score rows: %w", err)
	}
	threshold := model.forest.Threshold()
	for i, s := range scores {
		if !model.forest.IsAnomaly(s) {
			continue
		}
		preds[i] = analysis.Prediction{Label: 1, Reason: model.reason(x[i], s, threshold, d.cfg)}
	}
	return preds, nil
}

// Train fits a model on m for later use through UseModel.
func Train(cfg Config, m *dataset.Matrix) (*Model, error) {
	cfg = cfg.withDefaults()
	names, x := project(m)
	if len(names) == 0 || len(x) == 0 {
		return nil, ErrNoFeatures
	}
	return fit(cfg, names, x)
}

func fit(cfg Config, names []string, x [][]float64) (*Model, error) {
	forest := iforest.New(
		iforest.WithTrees(cfg.Trees),
		iforest.WithSampleSize(cfg.SampleSize),
		iforest.WithContamination(cfg.Contamination),
		iforest.WithMinThreshold(cfg.MinThreshold),
		iforest.WithSeed(cfg.Seed),
	)
	if err := forest.Fit(x); err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}
	mean, std := moments(x, len(names))
	return &Model{Features: names, Mean: mean, Std: std, forest: forest}, nil
}

// project keeps the columns without NaN. After mean imputation only
// all-missing columns still hold NaN.
func project(m *dataset.Matrix) ([]string, [][]float64) {
	var keep []int
	for j := range m.Columns {
		ok := true
		for _, row := range m.Rows {
			if math.IsNaN(row[j]) || math.IsInf(row[j], 0) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, j)
		}
	}

	names := make([]string, len(keep))
	for k, j := range keep {
		names[k] = m.Columns[j]
	}
	x := make([][]float64, len(m.Rows))
	for i, row := range m.Rows {
		x[i] = make([]float64, len(keep))
		for k, j := range keep {
			x[i][k] = row[j]
		}
	}
	return names, x
}

func moments(x [][]float64, n int) (mean, std []float64) {
	mean = make([]float64, n)
	std = make([]float64, n)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(x))
	}
	for _, row := range x {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(x)))
	}
	return mean, std
}

type deviation struct {
	feature string
	z       float64
}

func (m *Model) reason(row []float64, score, threshold float64, cfg Config) string {
	var devs []deviation
	for j, v := range row {
		if m.Std[j] == 0 {
			continue
		}
		z := (v - m.Mean[j]) / m.Std[j]
		if math.Abs(z) >= cfg.ZThreshold {
			devs = append(devs, deviation{feature: m.Features[j], z: z})
		}
	}
	if len(devs) == 0 {
		return fmt.Sprintf("Isolation score %.2f above threshold %.2f", score, threshold)
	}

	sort.SliceStable(devs, func(a, b int) bool { return math.Abs(devs[a].z) > math.Abs(devs[b].z) })
	if len(devs) > cfg.MaxReasons {
		devs = devs[:cfg.MaxReasons]
	}
	parts := make([]string, len(devs))
	for i, d := range devs {
		dir := "High"
		if d.z < 0 {
			dir = "Low"
		}
		parts[i] = fmt.Sprintf("%s %s (z=%.2f)", dir, d.feature, d.z)
	}
	return strings.Join(parts, "; ")
}

type modelFile struct {
	Features []string
	Mean     []float64
	Std      []float64
	Forest   []byte
}

// SaveModel writes m as gob.
func SaveModel(w io.Writer, m *Model) error {
	forest, err := m.forest.Save()
	if err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(modelFile{
		Features: m.Features,
		Mean:     m.Mean,
		Std:      m.Std,
		Forest:   forest,
	})
}

// LoadModel reads a model written by SaveModel.
func LoadModel(r io.Reader) (*Model, error) {
	var f modelFile
	if err := gob.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(f.Features) == 0 || len(f.Mean) != len(f.Features) || len(f.Std) != len(f.Features) {
		return nil, errors.New("model file has inconsistent features")
	}
	forest := iforest.New()
	if err := forest.Load(f.Forest); err != nil {
		return nil, fmt.Errorf("load forest: %w", err)
	}
	if forest.Features() != len(f.Features) {
		return nil, errors.New("model file has inconsistent features")
	}
	return &Model{Features: f.Features, Mean: f.Mean, Std: f.Std, forest: forest}, nil
}
