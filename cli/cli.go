package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/config"
	"github.com/javanhut/contentsync/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "contentsync",
	Short: "Keep a local content directory in sync with a content server",
	Long: `contentsync downloads content blocks listed in a server manifest, verifies
them, and installs their files into a local content directory. Blocks that
are unchanged are left alone; blocks the server no longer lists are removed.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

var (
	configPath string
	baseURL    string
	rootDir    string
	logLevel   string
	noColor    bool

	cfg *config.Config
	log *slog.Logger
)

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, colors.ErrorText("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Config file (.yaml, .yml, .json or .jsonc)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Content server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Local content directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(checkCmd, updateCmd, statusCmd, verifyCmd, publishCmd, serveCmd, configCmd)
}

func defaultConfigPath() string {
	if v := os.Getenv("CONTENTSYNC_CONFIG"); v != "" {
		return v
	}
	return "contentsync.yaml"
}

// loadSettings resolves config file, environment, and flags, in that order
// of increasing precedence.
func loadSettings(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if rootDir != "" {
		cfg.Storage.Root = rootDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if noColor {
		colors.SetColorEnabled(false)
	}

	log = logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	return nil
}
