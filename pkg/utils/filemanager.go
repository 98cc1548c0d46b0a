// =============================================================================
// Cash Sales IIF Converter - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a conversion run:
//   - Input discovery (.xlsx, .xls, .csv)
//   - Output naming and writing of .iif documents
//   - Input archival after a document was written
//   - Diagnostics reports and the run summary
//
// ARCHIVAL STRATEGY:
//   - Inputs are moved to input_archive only after their document is written
//   - Failed inputs stay where they are so they can be fixed and re-run
//   - A name clash in the archive or the output directory gets a numeric
//     suffix, nothing is replaced
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InputExtensions lists the spreadsheet formats picked up from the input
// directory.
var InputExtensions = []string{".xlsx", ".xls", ".csv"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// InputDir is the directory where input spreadsheets are placed.
	InputDir string

	// OutputDir receives .iif documents and diagnostics reports.
	OutputDir string

	// InputArchiveDir receives inputs after successful processing.
	InputArchiveDir string

	// ArchiveOnSuccess determines whether inputs are moved after success.
	ArchiveOnSuccess bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		ArchiveOnSuccess: true,
	}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the spreadsheets in the input directory, sorted
// by name. Hidden files and editor lock files ("~$report.xlsx") are ignored.
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if IsInputFile(name) {
			result = append(result, filepath.Join(fm.InputDir, name))
		}
	}
	sort.Strings(result)

	return result, nil
}

// IsInputFile reports whether the name has a supported spreadsheet extension.
func IsInputFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range InputExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// =============================================================================
// OUTPUT
// =============================================================================

// WriteOutput writes data to OutputDir/name through a temporary file, so a
// reader never sees a half-written document. An existing document is never
// replaced: when name is taken, "_1", "_2"... is added before the extension.
// The name is claimed with a hard link, which fails if the target exists,
// so concurrent writers cannot pick the same path.
//
// RETURNS:
//   - The path of the written file.
//   - An error if writing fails.
func (fm *FileManager) WriteOutput(name string, data []byte) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(fm.OutputDir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	path := filepath.Join(fm.OutputDir, name)
	for i := 0; ; i++ {
		candidate := suffixed(path, i)
		err := os.Link(tmp.Name(), candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to move output file into place: %w", err)
		}
	}
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file (filePath itself when archiving is off).
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	if err := os.MkdirAll(fm.InputArchiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	archivePath := freePath(filepath.Join(fm.InputArchiveDir, filepath.Base(filePath)))

	// Move the file.
	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// freePath returns path, or path with "_1", "_2"... before the extension if
// it is taken.
func freePath(path string) string {
	for i := 0; ; i++ {
		if candidate := suffixed(path, i); !FileExists(candidate) {
			return candidate
		}
	}
}

// suffixed returns path for n == 0, else path with "_n" before the extension.
func suffixed(path string, n int) string {
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates the output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {profile}   - Profile code
//               {original}  - Input file name (without extension)
//   - params: Values for the {profile} and {original} style placeholders.
//
// RETURNS:
//   - The generated file name, always ending in ".iif".
//
// EXAMPLE:
//   format: "{profile}_{original}_{date}.iif"
//   params: {"profile": "CASH", "original": "cash_may"}
//   output: "CASH_cash_may_20240501.iif"
func GenerateOutputFileName(format string, params map[string]string) string {
	return generateOutputFileName(format, params, time.Now())
}

func generateOutputFileName(format string, params map[string]string, now time.Time) string {
	pairs := []string{
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", sanitizeFileName(params[key]))
	}

	result := strings.NewReplacer(pairs...).Replace(format)

	// Ensure .iif extension.
	if !strings.HasSuffix(strings.ToLower(result), ".iif") {
		result += ".iif"
	}

	return result
}

// OriginalName returns the base name of path without its extension.
func OriginalName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

// =============================================================================
// DIAGNOSTICS REPORT
// =============================================================================

// DiagnosticEntry is one rejected row.
type DiagnosticEntry struct {
	RowNumber int
	Reason    string
	Detail    string
}

// WriteDiagnosticsReport writes the rejected rows of one input next to its
// document, as "<document>_diagnostics.txt".
//
// PARAMETERS:
//   - inputFile: The input the rows came from.
//   - documentPath: The .iif path the report belongs to.
//   - entries: The rejected rows, in row order.
//
// RETURNS:
//   - The path to the report ("" when there is nothing to report).
//   - An error if writing fails.
func WriteDiagnosticsReport(inputFile, documentPath string, entries []DiagnosticEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	reportPath := strings.TrimSuffix(documentPath, filepath.Ext(documentPath)) + "_diagnostics.txt"

	file, err := os.Create(reportPath)
	if err != nil {
		return "", fmt.Errorf("failed to create diagnostics report: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Cash Sales IIF Converter - Diagnostics Report\n"+
		"Generated: %s\n"+
		"Input:     %s\n"+
		"Document:  %s\n"+
		"Skipped:   %d\n"+
		"================================================================================\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		inputFile,
		filepath.Base(documentPath),
		len(entries))

	for _, entry := range entries {
		fmt.Fprintf(writer, "  Row %-6d %-14s %s\n", entry.RowNumber, entry.Reason, entry.Detail)
	}

	writer.WriteString("\n================================================================================\n" +
		"End of Diagnostics Report\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush diagnostics report: %w", err)
	}

	return reportPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalRows       int
	Accepted        int
	Skipped         int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	Profile     string
	Rows        int
	Accepted    int
	Skipped     int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// Add records the outcome of one file.
func (s *ProcessingSummary) Add(info ProcessedFileInfo) {
	s.TotalFiles++
	s.SuccessfulFiles++
	s.TotalRows += info.Rows
	s.Accepted += info.Accepted
	s.Skipped += info.Skipped
	s.ProcessedFiles = append(s.ProcessedFiles, info)
}

// Fail records a file that produced no document.
func (s *ProcessingSummary) Fail(info FailedFileInfo) {
	s.TotalFiles++
	s.FailedFiles++
	s.FailedFilesList = append(s.FailedFilesList, info)
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writeSummary(writer, summary)

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

func writeSummary(w io.Writer, summary ProcessingSummary) {
	fmt.Fprintf(w, "Cash Sales IIF Converter - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Total Rows:     %d\n"+
		"  Accepted Rows:  %d\n"+
		"  Skipped Rows:   %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRows,
		summary.Accepted,
		summary.Skipped)

	if len(summary.ProcessedFiles) > 0 {
		fmt.Fprint(w, "Successful Files:\n"+
			"--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(w, "  Output:       %s\n", pf.OutputFile)
			fmt.Fprintf(w, "  Profile:      %s\n", pf.Profile)
			fmt.Fprintf(w, "  Rows:         %d (accepted %d, skipped %d)\n", pf.Rows, pf.Accepted, pf.Skipped)
			fmt.Fprintf(w, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		fmt.Fprint(w, "Failed Files:\n"+
			"--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
			if ff.ErrorType != "" {
				fmt.Fprintf(w, "  Type:  %s\n", ff.ErrorType)
			}
			fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	fmt.Fprint(w, "================================================================================\n"+
		"End of Summary\n")
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
