package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/contentsync/internal/colors"
	"github.com/javanhut/contentsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get and set configuration options",
	Long: `Get and set contentsync configuration options in the config file.

Environment variables (CONTENTSYNC_BASE_URL, CONTENTSYNC_ROOT,
CONTENTSYNC_LOG_LEVEL, CONTENTSYNC_LOG_FORMAT) override the file.

Examples:
  contentsync config server.base_url https://cdn.example.com/content
  contentsync config retry.backoff 1s
  contentsync config storage.root
  contentsync config --list`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

var configList bool

func init() {
	configCmd.Flags().BoolVar(&configList, "list", false, "List all configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configList || len(args) == 0 {
		return listConfig()
	}
	if len(args) == 1 {
		return getConfigValue(args[0])
	}
	return setConfigValue(args[0], args[1])
}

func listConfig() error {
	fmt.Printf("%s %s\n\n", colors.SectionHeader("Config file:"), absPath(configPath))
	for _, key := range config.Keys() {
		value, err := cfg.GetValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = colors.Gray("(not set)")
		} else {
			value = colors.InfoText(value)
		}
		fmt.Printf("  %s = %s\n", key, value)
	}
	return nil
}

func getConfigValue(key string) error {
	value, err := cfg.GetValue(key)
	if err != nil {
		return err
	}
	if value == "" {
		fmt.Printf("%s is %s\n", key, colors.Gray("(not set)"))
	} else {
		fmt.Println(value)
	}
	return nil
}

func setConfigValue(key, value string) error {
	fileCfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := fileCfg.SetValue(key, value); err != nil {
		return err
	}
	if err := config.Save(configPath, fileCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s %s = %s\n",
		colors.SuccessText("Set"),
		colors.Bold(key),
		colors.InfoText(value))
	return nil
}
