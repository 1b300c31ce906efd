package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/dataset"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/detector"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
)

func trainCmd() *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit an isolation forest on a CSV or JSON file and save it",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = cfg.Detector.ModelPath
			}
			if output == "" {
				return errors.New("--model is required when detector.modelPath is not set")
			}
			return train(input, output, detectorConfig(cfg))
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "training data (.csv or .json)")
	cmd.Flags().StringVar(&output, "model", "", "where to write the model (default detector.modelPath)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func train(input, output string, cfg detector.Config) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	ds, err := dataset.Parse(filepath.Base(input), data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}

	m, err := detector.Train(cfg, dataset.Preprocess(ds))
	if err != nil {
		return err
	}

	// tulis ke file sementara dulu, baru rename
	tmp := output + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := detector.SaveModel(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, output); err != nil {
		return err
	}

	logging.Info().
		Str("input", input).
		Str("model", output).
		Int("rows", ds.Rows).
		Strs("features", m.Features).
		Msg("model trained")
	return nil
}
