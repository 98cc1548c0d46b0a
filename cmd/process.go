// =============================================================================
// Cash Sales IIF Converter - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command for converting
// statements into IIF documents.
//
// COMMAND USAGE:
//   cashiif process [flags]
//
// FLAGS:
//   --dry-run  : Convert and report, but write and move nothing
//   --file     : Process only this file (any path)
//   --profile  : Use this profile code instead of file name matching
//   --stdout   : Print the document instead of writing it (single file only)
//
// PROCESSING PIPELINE:
//   1. Load the main configuration and every profile
//   2. Discover input files (or take --file)
//   3. Match each file to a profile by its file_matching_patterns
//   4. Convert files concurrently, at most max_concurrency at a time
//   5. Write each .iif document and its diagnostics report
//   6. Archive converted inputs
//   7. Print and write the run summary
//
// A file that fails never stops the others. Failed inputs stay in place.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/cash-iif-converter/internal/columns"
	"github.com/ginjaninja78/cash-iif-converter/internal/config"
	"github.com/ginjaninja78/cash-iif-converter/internal/converter"
	"github.com/ginjaninja78/cash-iif-converter/internal/iif"
	"github.com/ginjaninja78/cash-iif-converter/internal/layout"
	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
	"github.com/ginjaninja78/cash-iif-converter/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun      bool
	filePath    string
	profileCode string
	toStdout    bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert cash-sale statements to IIF documents",
	Long: `The process command scans the input directory for statements, matches
each one to a profile, and converts it into an IIF document.

Processing is done concurrently. Each file is processed independently, and
errors in one file do not affect the processing of others.

On success:
  - The .iif document is placed in the output directory
  - Skipped rows are listed in <document>_diagnostics.txt
  - The original statement is moved to the input archive

On error:
  - No document is written for that file
  - The original statement remains in the input directory
  - Processing continues for other files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Convert without writing or moving any file")
	processCmd.Flags().StringVar(&filePath, "file", "", "Process only this file")
	processCmd.Flags().StringVar(&profileCode, "profile", "", "Profile code to use for every file")
	processCmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the IIF document to stdout (single file only)")
}

// =============================================================================
// BATCH
// =============================================================================

// batch is one process run.
type batch struct {
	mainConfig  *config.MainConfig
	profiles    map[string]*config.ProfileConfig
	converters  map[string]*converter.Converter
	fileManager *utils.FileManager
	logger      *zap.Logger

	// forceProfile skips file name matching when set.
	forceProfile string
	dryRun       bool

	// stdout receives the document instead of the output directory.
	stdout io.Writer
}

// fileOutcome is the result of one input file.
type fileOutcome struct {
	input   string
	profile string
	output  string
	result  *converter.Result
	err     error
}

// runProcess is the main function that orchestrates the run.
func runProcess(out io.Writer) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	mainConfig, err := loadMainConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(mainConfig)
	if err != nil {
		return err
	}
	defer logger.Sync()

	profiles, err := config.LoadProfiles(mainConfig.ConfigsDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles found in %s", mainConfig.ConfigsDir)
	}
	if profileCode != "" && profiles[profileCode] == nil {
		return fmt.Errorf("unknown profile %q", profileCode)
	}
	logger.Info("loaded profiles", zap.Int("count", len(profiles)))

	b, err := newBatch(mainConfig, profiles, logger)
	if err != nil {
		return err
	}
	b.forceProfile = profileCode
	b.dryRun = dryRun || toStdout

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	if !b.dryRun {
		if err := mainConfig.EnsureDirectories(); err != nil {
			return err
		}
	}

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = b.fileManager.DiscoverInputFiles()
		if err != nil {
			return err
		}
	}

	if toStdout {
		if len(inputFiles) != 1 {
			return fmt.Errorf("--stdout needs exactly one input file, found %d", len(inputFiles))
		}
		b.stdout = out
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No statements found in the input directory.")
		return nil
	}
	logger.Info("discovered input files", zap.Int("count", len(inputFiles)))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	outcomes := b.run(inputFiles)

	// =========================================================================
	// STEP 4: SUMMARY
	// =========================================================================

	summary := summarize(outcomes, startTime)
	if !toStdout {
		printSummary(out, outcomes, summary)
	}
	if !b.dryRun {
		if path, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir); err != nil {
			logger.Warn("failed to write summary", zap.Error(err))
		} else {
			logger.Debug("wrote summary", zap.String("path", path))
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// newBatch builds one Converter per profile up front, so a broken profile
// fails the run before any file is touched.
func newBatch(mainConfig *config.MainConfig, profiles map[string]*config.ProfileConfig, logger *zap.Logger) (*batch, error) {
	converters := make(map[string]*converter.Converter, len(profiles))
	for key, profile := range profiles {
		opts, err := converter.OptionsFromProfile(profile)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", key, err)
		}
		conv, err := converter.New(opts, logger.With(zap.String("profile", key)))
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", key, err)
		}
		converters[key] = conv
	}

	fm := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir)
	fm.ArchiveOnSuccess = mainConfig.ShouldArchive()

	return &batch{
		mainConfig:  mainConfig,
		profiles:    profiles,
		converters:  converters,
		fileManager: fm,
		logger:      logger,
	}, nil
}

// run converts files with at most max_concurrency in flight. Outcomes keep
// the input order.
func (b *batch) run(files []string) []fileOutcome {
	outcomes := make([]fileOutcome, len(files))

	var g errgroup.Group
	if b.mainConfig.MaxConcurrency > 0 {
		g.SetLimit(b.mainConfig.MaxConcurrency)
	}
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = fileOutcome{input: file, err: fmt.Errorf("conversion panicked: %v", r)}
					b.logger.Error("conversion panicked", zap.String("file", filepath.Base(file)), zap.Any("panic", r))
				}
			}()
			outcomes[i] = b.processFile(file)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// processFile converts one input and handles its files.
func (b *batch) processFile(input string) fileOutcome {
	outcome := fileOutcome{input: input}
	log := b.logger.With(zap.String("file", filepath.Base(input)))

	key := b.forceProfile
	if key == "" {
		key = findMatchingProfile(input, b.profiles)
	}
	if key == "" {
		outcome.err = fmt.Errorf("no matching profile found")
		log.Error("skipping file", zap.Error(outcome.err))
		return outcome
	}
	outcome.profile = key

	data, err := os.ReadFile(input)
	if err != nil {
		outcome.err = fmt.Errorf("failed to read input: %w", err)
		log.Error("skipping file", zap.Error(outcome.err))
		return outcome
	}

	result, err := b.converters[key].Convert(data, filepath.Base(input))
	if err != nil {
		outcome.err = err
		log.Error("conversion failed", zap.String("error_type", errorType(err)), zap.Error(err))
		return outcome
	}
	outcome.result = result

	if b.stdout != nil {
		if _, err := b.stdout.Write(result.Document); err != nil {
			outcome.err = fmt.Errorf("failed to write document: %w", err)
		}
		return outcome
	}
	if b.dryRun {
		return outcome
	}

	name := utils.GenerateOutputFileName(b.mainConfig.OutputNameFormat, map[string]string{
		"profile":  key,
		"original": utils.OriginalName(input),
	})
	outcome.output, err = b.fileManager.WriteOutput(name, result.Document)
	if err != nil {
		outcome.err = err
		log.Error("failed to write document", zap.Error(err))
		return outcome
	}

	entries := make([]utils.DiagnosticEntry, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		entries[i] = utils.DiagnosticEntry{RowNumber: d.RowNumber(), Reason: string(d.Reason), Detail: d.Detail}
	}
	if _, err := utils.WriteDiagnosticsReport(input, outcome.output, entries); err != nil {
		log.Warn("failed to write diagnostics report", zap.Error(err))
	}

	if archived, err := b.fileManager.ArchiveInputFile(input); err != nil {
		// The document exists; a failed move is only worth a warning.
		log.Warn("failed to archive input", zap.Error(err))
	} else {
		log.Debug("archived input", zap.String("path", archived))
	}

	return outcome
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// findMatchingProfile returns the key of the first profile, in key order,
// whose file_matching_patterns match the file name (case-insensitively).
// It returns "" when nothing matches.
func findMatchingProfile(path string, profiles map[string]*config.ProfileConfig) string {
	fileName := filepath.Base(path)

	keys := make([]string, 0, len(profiles))
	for key := range profiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, pattern := range profiles[key].FileMatchingPatterns {
			matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(fileName))
			if err != nil {
				continue
			}
			if matched {
				return key
			}
		}
	}
	return ""
}

// errorType names the pipeline stage behind a fatal error.
func errorType(err error) string {
	var (
		loadErr    *workbook.LoadError
		layoutErr  *layout.LayoutError
		columnsErr *columns.MissingColumnError
		serialErr  *iif.SerializationError
	)
	switch {
	case errors.As(err, &loadErr):
		return "LoadError"
	case errors.As(err, &layoutErr):
		return "LayoutError"
	case errors.As(err, &columnsErr):
		return "MissingColumnError"
	case errors.As(err, &serialErr):
		return "SerializationError"
	default:
		return "Error"
	}
}

func summarize(outcomes []fileOutcome, startTime time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{StartTime: startTime}
	for _, o := range outcomes {
		if o.err != nil {
			summary.Fail(utils.FailedFileInfo{
				InputFile:    o.input,
				ErrorType:    errorType(o.err),
				ErrorMessage: o.err.Error(),
			})
			continue
		}
		summary.Add(utils.ProcessedFileInfo{
			InputFile:   o.input,
			OutputFile:  o.output,
			Profile:     o.profile,
			Rows:        o.result.Stats.TotalRows,
			Accepted:    o.result.Stats.Accepted,
			Skipped:     o.result.Stats.Skipped,
			ProcessTime: o.result.Stats.ProcessingTime,
		})
	}
	summary.EndTime = time.Now()
	return summary
}

func printSummary(out io.Writer, outcomes []fileOutcome, summary utils.ProcessingSummary) {
	for _, o := range outcomes {
		name := filepath.Base(o.input)
		switch {
		case o.err != nil:
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, o.err)
		case o.output != "":
			fmt.Fprintf(out, "  ✓ %s -> %s (%d accepted, %d skipped)\n", name, filepath.Base(o.output), o.result.Stats.Accepted, o.result.Stats.Skipped)
		default:
			fmt.Fprintf(out, "  ✓ %s (dry run: %d accepted, %d skipped)\n", name, o.result.Stats.Accepted, o.result.Stats.Skipped)
		}
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Rows accepted:   %d\n", summary.Accepted)
	fmt.Fprintf(out, "Rows skipped:    %d\n", summary.Skipped)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))
}
