package cli

import (
	"os"

	"github.com/spf13/cobra"

	"coworkshell/internal/config"
	"coworkshell/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "coworkshell",
	Short:        "Launch gate and embedded browser shell",
	Long:         "Decides once per install whether to show the native app or redirect into an embedded browser session, then drives that session over the Chrome DevTools protocol.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "coworkshell.yaml", "Path to the YAML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log), nil
}
