// Package cmd provides the CLI commands for housecost.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"housecost/core/output"
	"housecost/internal/config"
	"housecost/internal/logging"
)

const version = "1.0.0"

var (
	cfgFile       string
	verbose       bool
	noColor       bool
	outputFormat  string
	cataloguePath string

	// appConfig is the effective configuration after initConfig
	appConfig = config.Default()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "housecost",
	Short: "Choose house material quality levels within a budget",
	Long: `housecost picks one quality level per house constituent so that the
total cost stays within a budget and the quality mix best matches the
requested ceilings and priorities.

Examples:
  housecost optimize house.hcl
  housecost optimize --format json request.json
  housecost catalogue show
  housecost runs list
  housecost serve`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (json, yaml or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&cataloguePath, "catalogue", "", "catalogue CSV (overrides catalogue.path)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cataloguePath != "" {
		cfg.Catalogue.Path = cataloguePath
	}
	appConfig = cfg

	// Initialize logging
	if verbose {
		cfg.Logging.Level = "debug"
	} else if cfgFile == "" {
		cfg.Logging.Level = "warn"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

func format() (output.Format, error) {
	return output.ParseFormat(outputFormat)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "housecost version %s\n", version)
	},
}
