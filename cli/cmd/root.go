// Package cmd provides the Cobra commands for the webminifier CLI.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/webminifier/cli/output"
	"github.com/fluxbase-eu/webminifier/internal/config"
	"github.com/fluxbase-eu/webminifier/internal/logging"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool

	// Shared across commands
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "webminifier",
	Short: "Bundle and minify the scripts referenced by HTML documents",
	Long: `webminifier consolidates the JavaScript referenced by a tree of HTML
documents into bundles, minifies them and rewrites the documents to load the
bundles instead.

The source folder is copied into the destination folder first; the source is
never modified. Bundles already present in the destination are reused, so
repeated builds skip minification that was done before.

Get started:
  webminifier config init    Write a webminifier.yaml with the defaults
  webminifier plan           Show the bundles a build would produce
  webminifier build          Run the build`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Silence errors only when --quiet is used
		cmd.SilenceErrors = quiet
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./webminifier.yaml or ./config/webminifier.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}

// loadConfig reads the configuration and sets up logging from it
func loadConfig() (*config.Config, error) {
	// Console logging until the configured format is known
	bootstrap := logging.Config{Level: "info", Format: logging.FormatConsole}
	if IsDebug() {
		bootstrap.Level = "debug"
	}
	if _, err := logging.Setup(bootstrap); err != nil {
		return nil, err
	}

	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, err
	}

	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	if _, err := logging.Setup(cfg.Log); err != nil {
		return nil, err
	}
	cfg.Tracing.Version = Version

	return cfg, nil
}

// GetFormatter returns the output formatter (for use by subcommands)
func GetFormatter() (*output.Formatter, error) {
	if formatter == nil {
		format, err := output.ParseFormat(outputFmt)
		if err != nil {
			return nil, err
		}
		formatter = output.NewFormatter(format, noHeaders, quiet)
	}
	return formatter, nil
}

// GetConfigPath returns the config file path used by config init
func GetConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "webminifier.yaml"
}

// IsDebug returns true if debug mode is enabled
func IsDebug() bool {
	return debug || viper.GetBool("debug")
}
