// =============================================================================
// Cash Sales IIF Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the per-source
// profiles that describe how a given spreadsheet export is laid out and how
// its rows are posted to the ledger.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Profiles (configs/*.yaml): Layout, column and account rules per export
//
// LOADING FLOW:
//   Every file goes through the same three steps:
//   read + parse YAML -> apply defaults -> validate
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file. Every setting can be
// overridden with a CASHIIF_* environment variable named after its key,
// e.g. CASHIIF_OUTPUT_DIR or CASHIIF_MAX_CONCURRENCY.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory where input spreadsheets are placed.
	// The application scans it for .xlsx, .xls and .csv files.
	// Default: "./input"
	InputDir string `yaml:"input_dir" split_words:"true"`

	// OutputDir is the directory where generated IIF documents and
	// diagnostics reports are placed.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" split_words:"true"`

	// InputArchiveDir is the directory where processed inputs are moved.
	// Files are only moved here after a document was written for them.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir" split_words:"true"`

	// ConfigsDir is the directory containing profile configurations.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir" split_words:"true"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional path that receives a copy of the log stream.
	// When empty, logs only go to stderr.
	LogFile string `yaml:"log_file" split_words:"true"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" split_words:"true"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the format for output file names.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYYMMDD)
	//   {time}      - Current time (HHMMSS)
	//   {profile}   - Profile code
	//   {original}  - Input file name without extension
	//
	// Default: "{original}_{timestamp}.iif"
	OutputNameFormat string `yaml:"output_name_format" split_words:"true"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files to process concurrently.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" split_words:"true"`

	// ArchiveInputs moves each successfully converted input to
	// InputArchiveDir. A nil value means "not set" and defaults to true.
	ArchiveInputs *bool `yaml:"archive_inputs" split_words:"true"`
}

// EnvPrefix namespaces the environment overrides of MainConfig.
const EnvPrefix = "CASHIIF"

// ShouldArchive reports whether processed inputs are moved to the archive.
func (c *MainConfig) ShouldArchive() bool {
	return c.ArchiveInputs == nil || *c.ArchiveInputs
}

// =============================================================================
// PROFILE CONFIGURATION STRUCTURE
// =============================================================================

// ProfileConfig holds the configuration for one kind of spreadsheet export.
// Each profile carries its own rules for file matching, layout detection,
// column mapping, date parsing and ledger posting.
type ProfileConfig struct {
	// =========================================================================
	// PROFILE IDENTIFICATION
	// =========================================================================

	// ProfileName is the human-readable name used in logs and reports.
	ProfileName string `yaml:"profile_name"`

	// ProfileCode is a short code used as the profile key and in output
	// file names.
	ProfileCode string `yaml:"profile_code"`

	// =========================================================================
	// FILE MATCHING RULES
	// =========================================================================

	// FileMatchingPatterns is a list of glob patterns to match input files.
	// If a file name matches any of these patterns, this profile is used.
	// Examples:
	//   - "cash_*.xlsx"
	//   - "*statement*.xls*"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Source describes how the raw bytes are decoded.
	Source SourceSettings `yaml:"source"`

	// Layout describes where the data region starts and ends.
	Layout LayoutSettings `yaml:"layout"`

	// Columns binds canonical fields to grid columns.
	Columns ColumnSettings `yaml:"columns"`

	// Date lists extra time layouts tried before generic date coercion.
	Date DateSettings `yaml:"date"`

	// Accounts is the account mapping used for every composed transaction.
	// All four values are required; nothing is inferred.
	Accounts AccountSettings `yaml:"accounts"`

	// MemoTemplate renders the memo of each transaction.
	// Placeholders: {till}, {bill}, {date}, {amount}
	// Default: "Till {till} - Bill {bill}"
	MemoTemplate string `yaml:"memo_template"`

	// Transformations are field-level rewrite rules for till_number and
	// bill_number, applied in order after trimming.
	Transformations []TransformationRule `yaml:"transformations"`
}

// Key returns the identifier used to index the profile.
func (p *ProfileConfig) Key() string {
	if p.ProfileCode != "" {
		return p.ProfileCode
	}
	return p.ProfileName
}

// SourceSettings contains settings for decoding the input bytes.
type SourceSettings struct {
	// Format is one of "auto", "xlsx", "xls" or "csv".
	// Default: "auto" (detected from the content, then the extension)
	Format string `yaml:"format"`

	// Sheet selects a worksheet by name. The first sheet is used when empty.
	Sheet string `yaml:"sheet"`

	// CSVDelimiter is the field separator for CSV sources.
	// Common values: "," (comma), ";" (semicolon), "tab", "|"
	// Default: ","
	CSVDelimiter string `yaml:"csv_delimiter"`

	// Encoding is the character encoding of CSV sources.
	// Valid values: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// LAYOUT SETTINGS
// =============================================================================

// Start strategies.
const (
	StartFixedOffset = "fixed_offset"
	StartMarkerScan  = "marker_scan"
)

// Header kinds.
const (
	HeaderNone      = "none"
	HeaderSingle    = "single"
	HeaderComposite = "composite"
)

// Mismatch actions.
const (
	MismatchStop = "stop"
	MismatchSkip = "skip"
)

// LayoutSettings groups the start, header and end rules.
type LayoutSettings struct {
	Start  StartSettings  `yaml:"start"`
	Header HeaderSettings `yaml:"header"`
	End    EndSettings    `yaml:"end"`

	// Discriminant is the column/pattern pair that identifies target rows.
	// When omitted and the start strategy is marker_scan, the marker column
	// and pattern are used. The column may instead come from the column map
	// (columns.fixed_index.discriminant or columns.name_match.discriminant),
	// which takes precedence.
	Discriminant *DiscriminantSettings `yaml:"discriminant"`
}

// StartSettings selects how the first data row is found.
type StartSettings struct {
	// Strategy is "fixed_offset" or "marker_scan".
	Strategy string `yaml:"strategy"`

	// Offset is the number of leading rows skipped by fixed_offset.
	Offset int `yaml:"offset"`

	// Column and Pattern drive marker_scan: the first row whose Column
	// matches Pattern (case-insensitive regular expression) starts the data.
	Column  *ColumnRef `yaml:"column"`
	Pattern string     `yaml:"pattern"`
}

// HeaderSettings selects the header shape.
type HeaderSettings struct {
	// Kind is "none", "single" or "composite" (two rows joined per column).
	// Default: "none"
	Kind string `yaml:"kind"`

	// Row is the 0-based row of the (first) header row.
	Row int `yaml:"row"`

	// Relative makes Row an offset from the detected start row.
	Relative bool `yaml:"relative"`
}

// EndSettings selects which conditions close the data region.
// End of sheet always closes it; the first condition met wins.
type EndSettings struct {
	// BlankRow ends the region at the first fully blank row.
	// A nil value means "not set" and defaults to true.
	BlankRow *bool `yaml:"blank_row"`

	// DiscriminantMismatch reacts to rows whose discriminant does not match.
	DiscriminantMismatch bool `yaml:"discriminant_mismatch"`

	// OnMismatch is "stop" (end the region) or "skip" (report the row and
	// keep going).
	// Default: "stop"
	OnMismatch string `yaml:"on_mismatch"`
}

// StopsOnBlankRow reports whether a blank row ends the region.
func (e EndSettings) StopsOnBlankRow() bool {
	return e.BlankRow == nil || *e.BlankRow
}

// DiscriminantSettings identifies target rows.
type DiscriminantSettings struct {
	Column  *ColumnRef `yaml:"column"`
	Pattern string     `yaml:"pattern"`
}

// =============================================================================
// COLUMN SETTINGS
// =============================================================================

// Column strategies.
const (
	ColumnsFixedIndex = "fixed_index"
	ColumnsNameMatch  = "name_match"
)

// Canonical field names accepted in column maps and transformations.
const (
	FieldTillNumber = "till_number"
	FieldBillDate   = "bill_date"
	FieldBillNumber = "bill_number"
	FieldAmount     = "amount"

	// FieldDiscriminant may be mapped but never transformed.
	FieldDiscriminant = "discriminant"
)

// ColumnSettings binds canonical fields to grid columns.
type ColumnSettings struct {
	// Strategy is "fixed_index" or "name_match".
	Strategy string `yaml:"strategy"`

	// FixedIndex maps a field to a column letter ("E") or 0-based index.
	FixedIndex map[string]ColumnRef `yaml:"fixed_index"`

	// NameMatch maps a field to a substring of its header label.
	NameMatch map[string]string `yaml:"name_match"`
}

// Maps reports whether the active strategy binds field.
func (c ColumnSettings) Maps(field string) bool {
	if c.Strategy == ColumnsNameMatch {
		_, ok := c.NameMatch[field]
		return ok
	}
	_, ok := c.FixedIndex[field]
	return ok
}

// DateSettings holds additional date layouts.
type DateSettings struct {
	// Layouts are Go reference-time layouts, e.g. "02/01/2006".
	Layouts []string `yaml:"layouts"`
}

// AccountSettings is the debit/credit orientation for every transaction.
type AccountSettings struct {
	DebitAccount    string `yaml:"debit_account"`
	CreditAccount   string `yaml:"credit_account"`
	TransactionType string `yaml:"transaction_type"`
	PayeeName       string `yaml:"payee_name"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines a transformation to apply to a specific field.
type TransformationRule struct {
	// Field is the canonical field to transform: "till_number" or
	// "bill_number".
	Field string `yaml:"field"`

	// Actions is a list of transformations to apply to this field.
	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is the type of transformation to apply. See the transform
	// package for the supported list.
	Type string `yaml:"type"`

	// Value is the parameter for the transformation. Its meaning depends
	// on the type (the prefix, the target length, the replacement...).
	Value string `yaml:"value"`

	// Find is used for "replace" and "regex_replace" transformations.
	Find string `yaml:"find,omitempty"`

	// LookupTable is used for "lookup" transformations.
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseMainConfig(data)
}

// ParseMainConfig parses, defaults and validates a main configuration.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables take precedence over the file.
	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{original}_{timestamp}.iif"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	var errs ValidationErrors

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", config.LogLevel)})
	}
	if config.MaxConcurrency < 0 {
		errs = append(errs, ValidationError{Field: "max_concurrency", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EnsureDirectories creates the working directories if they don't exist.
func (c *MainConfig) EnsureDirectories() error {
	dirs := []string{
		c.InputDir,
		c.OutputDir,
		c.InputArchiveDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LoadProfiles loads all profile configurations from a directory.
//
// PARAMETERS:
//   - configsDir: The path to the directory containing profile files.
//
// RETURNS:
//   - A map of profiles, keyed by profile code.
//   - An error if the directory cannot be read or any profile is invalid.
func LoadProfiles(configsDir string) (map[string]*ProfileConfig, error) {
	configs := make(map[string]*ProfileConfig)

	files, err := ProfileFiles(configsDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		profile, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		// Use the profile code as the key.
		// If no code is specified, use the file name.
		key := profile.Key()
		if key == "" {
			key = filepath.Base(file)
		}
		if _, exists := configs[key]; exists {
			return nil, fmt.Errorf("duplicate profile %q in %s", key, file)
		}

		configs[key] = profile
	}

	return configs, nil
}

// ProfileFiles lists the *.yaml and *.yml files of a directory, sorted.
func ProfileFiles(configsDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	return files, nil
}

// LoadProfile loads a single profile configuration file.
func LoadProfile(filePath string) (*ProfileConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseProfile(data)
}

// ParseProfile parses, defaults and validates a profile.
func ParseProfile(data []byte) (*ProfileConfig, error) {
	var profile ProfileConfig
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	applyProfileDefaults(&profile)

	if err := ValidateProfile(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

// applyProfileDefaults sets default values for a profile.
// Accounts are deliberately left alone: an empty account is a validation
// error, never a default.
func applyProfileDefaults(p *ProfileConfig) {
	if p.Source.Format == "" {
		p.Source.Format = "auto"
	}
	if p.Source.CSVDelimiter == "" {
		p.Source.CSVDelimiter = ","
	}
	if p.Source.Encoding == "" {
		p.Source.Encoding = "UTF-8"
	}

	if p.Layout.Start.Strategy == "" {
		p.Layout.Start.Strategy = StartFixedOffset
	}
	if p.Layout.Header.Kind == "" {
		p.Layout.Header.Kind = HeaderNone
	}
	if p.Layout.End.OnMismatch == "" {
		p.Layout.End.OnMismatch = MismatchStop
	}

	if p.Columns.Strategy == "" {
		if len(p.Columns.NameMatch) > 0 && len(p.Columns.FixedIndex) == 0 {
			p.Columns.Strategy = ColumnsNameMatch
		} else {
			p.Columns.Strategy = ColumnsFixedIndex
		}
	}

	if p.MemoTemplate == "" {
		p.MemoTemplate = "Till {till} - Bill {bill}"
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one file.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsValidationErrors extracts the list of problems from err, if any.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

var mappableFields = map[string]bool{
	FieldTillNumber:   true,
	FieldBillDate:     true,
	FieldBillNumber:   true,
	FieldAmount:       true,
	FieldDiscriminant: true,
}

var transformableFields = map[string]bool{
	FieldTillNumber: true,
	FieldBillNumber: true,
}

// ValidateProfile checks a profile for structural problems. All problems
// are reported at once.
func ValidateProfile(p *ProfileConfig) error {
	var errs ValidationErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch p.Source.Format {
	case "auto", "xlsx", "xls", "csv":
	default:
		add("source.format", "unknown format %q", p.Source.Format)
	}
	switch strings.ToUpper(p.Source.Encoding) {
	case "UTF-8", "UTF8", "ISO-8859-1", "LATIN1", "WINDOWS-1252", "CP1252":
	default:
		add("source.encoding", "unsupported encoding %q", p.Source.Encoding)
	}

	// Start strategy.
	start := p.Layout.Start
	switch start.Strategy {
	case StartFixedOffset:
		if start.Offset < 0 {
			add("layout.start.offset", "must not be negative")
		}
	case StartMarkerScan:
		if start.Column == nil {
			add("layout.start.column", "required for marker_scan")
		}
		if strings.TrimSpace(start.Pattern) == "" {
			add("layout.start.pattern", "required for marker_scan")
		} else if err := checkPattern(start.Pattern); err != nil {
			add("layout.start.pattern", "%v", err)
		}
	default:
		add("layout.start.strategy", "unknown strategy %q", start.Strategy)
	}

	// Header.
	switch p.Layout.Header.Kind {
	case HeaderNone, HeaderSingle, HeaderComposite:
	default:
		add("layout.header.kind", "unknown kind %q", p.Layout.Header.Kind)
	}
	if p.Layout.Header.Kind != HeaderNone && !p.Layout.Header.Relative && p.Layout.Header.Row < 0 {
		add("layout.header.row", "must not be negative")
	}

	// End policy and discriminant.
	switch p.Layout.End.OnMismatch {
	case MismatchStop, MismatchSkip:
	default:
		add("layout.end.on_mismatch", "unknown action %q", p.Layout.End.OnMismatch)
	}
	if d := p.Layout.Discriminant; d != nil {
		if strings.TrimSpace(d.Pattern) == "" {
			add("layout.discriminant.pattern", "required")
		} else if err := checkPattern(d.Pattern); err != nil {
			add("layout.discriminant.pattern", "%v", err)
		}
	}
	if p.Layout.End.DiscriminantMismatch {
		d := p.Layout.Discriminant
		switch {
		case d == nil && start.Strategy != StartMarkerScan:
			add("layout.discriminant", "required when discriminant_mismatch is enabled without marker_scan")
		case d != nil && d.Column == nil && start.Strategy != StartMarkerScan && !p.Columns.Maps(FieldDiscriminant):
			add("layout.discriminant.column", "required unless the columns map a discriminant")
		}
	}

	// Columns.
	switch p.Columns.Strategy {
	case ColumnsFixedIndex:
		for field := range p.Columns.FixedIndex {
			if !mappableFields[field] {
				add("columns.fixed_index", "unknown field %q", field)
			}
		}
	case ColumnsNameMatch:
		if p.Layout.Header.Kind == HeaderNone {
			add("columns.strategy", "name_match needs a header (layout.header.kind)")
		}
		for field, name := range p.Columns.NameMatch {
			if !mappableFields[field] {
				add("columns.name_match", "unknown field %q", field)
			}
			if strings.TrimSpace(name) == "" {
				add("columns.name_match."+field, "empty label")
			}
		}
	default:
		add("columns.strategy", "unknown strategy %q", p.Columns.Strategy)
	}

	// Accounts: no defaults, the orientation must be explicit.
	if strings.TrimSpace(p.Accounts.DebitAccount) == "" {
		add("accounts.debit_account", "required")
	}
	if strings.TrimSpace(p.Accounts.CreditAccount) == "" {
		add("accounts.credit_account", "required")
	}
	if strings.TrimSpace(p.Accounts.TransactionType) == "" {
		add("accounts.transaction_type", "required")
	}
	if strings.TrimSpace(p.Accounts.PayeeName) == "" {
		add("accounts.payee_name", "required")
	}
	if p.Accounts.DebitAccount != "" && p.Accounts.DebitAccount == p.Accounts.CreditAccount {
		add("accounts", "debit and credit accounts must differ")
	}

	// Transformations.
	for i, rule := range p.Transformations {
		if !transformableFields[rule.Field] {
			add(fmt.Sprintf("transformations[%d].field", i), "only till_number and bill_number can be transformed, got %q", rule.Field)
		}
		for j, action := range rule.Actions {
			if action.Type == "" {
				add(fmt.Sprintf("transformations[%d].actions[%d].type", i, j), "required")
			}
			if action.Type == "regex_replace" {
				if _, err := regexp.Compile(action.Find); err != nil {
					add(fmt.Sprintf("transformations[%d].actions[%d].find", i, j), "%v", err)
				}
			}
		}
	}

	for i, pattern := range p.FileMatchingPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			add(fmt.Sprintf("file_matching_patterns[%d]", i), "invalid glob %q", pattern)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
