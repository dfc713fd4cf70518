package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/justineyoo1/PDFResearchAssistant/config"
	"github.com/justineyoo1/PDFResearchAssistant/internal/app"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Document assistant - ask questions about your PDFs and notes",
	Long: `assistant ingests documents, indexes their passages as vectors, and answers
questions grounded in those passages with citations.

Example usage:
  assistant ingest ./papers              # Ingest every supported file
  assistant ask -q "what is attention?"  # Answer with citations
  assistant list                         # Show ingested documents`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			if err := config.LoadEnv(rootDir); err != nil {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(os.Stderr, level, cfg.Logging.Format)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./assistant.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory holding the data dir (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// openRuntime opens the assistant for the current project.
func openRuntime() (*app.Runtime, error) {
	rt, err := app.Open(cfg, rootDir, logger)
	if err != nil {
		return nil, err
	}
	if rt.Rebuilt != "" {
		fmt.Printf("Index cleared: %s. Re-ingest your documents.\n", rt.Rebuilt)
	}
	if rt.Repaired > 0 {
		fmt.Printf("Dropped %d incompletely stored document(s). Re-ingest them.\n", rt.Repaired)
	}
	return rt, nil
}
