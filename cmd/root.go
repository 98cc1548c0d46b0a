// =============================================================================
// Cash Sales IIF Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (cashiif)
//   ├── processCmd  (cashiif process)
//   ├── validateCmd (cashiif validate)
//   └── versionCmd  (cashiif version)
//
// The root command owns the global flags (--config, --verbose) and the
// helpers every subcommand uses to load configuration and build the logger.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/cash-iif-converter/internal/config"
	"github.com/ginjaninja78/cash-iif-converter/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging regardless of log_level.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "cashiif",
	Short: "Cash Sales IIF Converter - turn cash-sale statements into QuickBooks IIF",
	Long: `Cash Sales IIF Converter reads the sales statements exported by the
point-of-sale system (.xlsx, .xls or .csv), picks out the cash sales, and
writes a balanced IIF document ready for the accounting package's import.

Key Features:
  - Per-export profiles: start row, header shape, columns, accounts
  - Bad rows are skipped and reported, never silently dropped
  - Every transaction balances to zero; output is byte-for-byte repeatable
  - Concurrent processing of a whole input directory
  - Automatic archival of processed statements

Example Usage:
  cashiif process                          # Process every file in the input directory
  cashiif process --file may.xlsx --stdout # Convert one file and print the IIF
  cashiif validate                         # Check configuration without processing`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadMainConfig reads --config.
func loadMainConfig() (*config.MainConfig, error) {
	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return mainConfig, nil
}

// newLogger builds the run logger from the main configuration.
func newLogger(mainConfig *config.MainConfig) (*zap.Logger, error) {
	level := mainConfig.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, mainConfig.LogFile)
}
