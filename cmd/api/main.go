package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/pattern-analyzer/internal/config"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Tabular anomaly analysis API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml when present)")

	root.AddCommand(serveCmd(), trainCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig resolves the config path, loads it and sets up logging.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		// config.yaml opsional, tanpa file pakai default + env
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	return cfg, nil
}
