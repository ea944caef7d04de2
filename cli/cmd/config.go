package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/webminifier/cli/util"
	"github.com/fluxbase-eu/webminifier/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage build configuration",
	Long:  `Create and inspect the webminifier configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Long: `Create a new configuration file with default settings.

Examples:
  webminifier config init
  webminifier config init --config config/webminifier.yaml`,
	RunE: runConfigInit,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Long: `Show the configuration after defaults, the config file and
WEBMINIFIER_* environment variables have been applied.

Examples:
  webminifier config view
  webminifier config view --output yaml`,
	RunE: runConfigView,
}

var forceInit bool

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing configuration file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configViewCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigPath()

	if _, err := os.Stat(configPath); err == nil && !forceInit {
		if !util.IsInteractive() {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
		ok, err := util.Confirm(os.Stdin, os.Stdout, fmt.Sprintf("Overwrite %s?", configPath), false)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := config.Default().Save(configPath); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("Run 'webminifier plan' to preview the bundles.")
	return nil
}

func runConfigView(cmd *cobra.Command, args []string) error {
	formatter, err := GetFormatter()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Mask credentials in output
	if cfg.Publish.AccessKey != "" {
		cfg.Publish.AccessKey = util.MaskToken(cfg.Publish.AccessKey)
	}
	if cfg.Publish.SecretKey != "" {
		cfg.Publish.SecretKey = "****"
	}

	return formatter.Print(cfg)
}
