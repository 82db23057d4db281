package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StrathCole/poster-oracle/pkg/config"
	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/version"
)

var (
	configFile string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "poster-oracle",
	Short: "Price oracle fed by a trusted poster",
	Long: `poster-oracle keeps per-asset prices posted by a trusted poster, bounded
by an hourly anchor and a maximum swing, and serves them together with
external feed quotes through a single oracle.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config is parsed")
}

// loadConfig reads env files, then the YAML config, and validates it.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	return logger, nil
}
