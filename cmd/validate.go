// =============================================================================
// Cash Sales IIF Converter - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   cashiif validate
//
// Loads the main configuration and every profile, reports every problem
// found, and builds the pipeline for each profile without reading any
// statement. Exits non-zero when anything is invalid.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cash-iif-converter/internal/config"
	"github.com/ginjaninja78/cash-iif-converter/internal/converter"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the main configuration and all profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(out io.Writer) error {
	mainConfig, err := loadMainConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Main configuration %s: OK\n", cfgFile)

	invalid, err := validateProfiles(out, mainConfig.ConfigsDir)
	if err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid profile(s)", invalid)
	}
	return nil
}

// validateProfiles checks every profile file in dir and returns how many are
// invalid.
func validateProfiles(out io.Writer, dir string) (int, error) {
	files, err := config.ProfileFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no profiles found in %s", dir)
	}

	invalid := 0
	seen := make(map[string]string)
	for _, file := range files {
		name := filepath.Base(file)

		profile, err := config.LoadProfile(file)
		if err == nil {
			err = checkProfile(profile)
		}
		if err == nil {
			if other, dup := seen[profile.Key()]; dup {
				err = fmt.Errorf("profile code %q is also used by %s", profile.Key(), other)
			}
		}
		if err != nil {
			invalid++
			fmt.Fprintf(out, "  ✗ %s\n", name)
			if errs, ok := config.AsValidationErrors(err); ok {
				for _, e := range errs {
					fmt.Fprintf(out, "      - %s\n", e.Error())
				}
			} else {
				fmt.Fprintf(out, "      - %v\n", err)
			}
			continue
		}

		seen[profile.Key()] = name
		fmt.Fprintf(out, "  ✓ %s (%s)\n", name, profile.Key())
	}

	return invalid, nil
}

// checkProfile builds the pipeline the profile describes.
func checkProfile(p *config.ProfileConfig) error {
	opts, err := converter.OptionsFromProfile(p)
	if err != nil {
		return err
	}
	_, err = converter.New(opts, nil)
	return err
}
