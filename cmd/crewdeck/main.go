package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agusx1211/crewdeck/config"
	"github.com/agusx1211/crewdeck/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "crewdeck",
	Short:        "Streaming conversation client for agent crews",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file path")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "crewdeck.json"
	}
	return filepath.Join(home, ".crewdeck", "config.json")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
