package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/logger"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Embedding-based document retrieval",
	Long: `docrag ingests documents into fixed-size overlapping chunks, embeds each
chunk, and answers top-k nearest-chunk queries with provenance.

Example usage:
  docrag ingest data/*.pdf            # Build the corpus
  docrag query -q "what is an SIP"    # Retrieve the 4 nearest chunks
  docrag info                         # Describe the stored corpus`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := config.LoadEnv(wd); err != nil {
			return err
		}

		log = logger.New(cfg.Logging, os.Stderr)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./docrag.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}
