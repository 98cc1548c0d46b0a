package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProfile = `
profile_name: Cash Sales Statement
profile_code: CASH
file_matching_patterns: ["cash_*.xlsx"]
layout:
  start: {strategy: fixed_offset, offset: 16}
columns:
  fixed_index: {till_number: E, bill_date: J, bill_number: P, amount: 25}
accounts:
  debit_account: Cash in Drawer
  credit_account: Accounts Receivable
  transaction_type: CASH
  payee_name: Walk In
`

func TestParseMainConfigDefaults(t *testing.T) {
	config, err := ParseMainConfig([]byte("max_concurrency: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, "./input", config.InputDir)
	assert.Equal(t, "./output", config.OutputDir)
	assert.Equal(t, "./input_archive", config.InputArchiveDir)
	assert.Equal(t, "./configs", config.ConfigsDir)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "{original}_{timestamp}.iif", config.OutputNameFormat)
	assert.Equal(t, 2, config.MaxConcurrency)
	assert.True(t, config.ShouldArchive())

	config, err = ParseMainConfig([]byte("archive_inputs: false\n"))
	require.NoError(t, err)
	assert.False(t, config.ShouldArchive())
	assert.Equal(t, 4, config.MaxConcurrency)
}

func TestParseMainConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("CASHIIF_OUTPUT_DIR", "/srv/iif")
	t.Setenv("CASHIIF_MAX_CONCURRENCY", "8")
	t.Setenv("CASHIIF_ARCHIVE_INPUTS", "false")

	config, err := ParseMainConfig([]byte("output_dir: ./out\nmax_concurrency: 2\ninput_dir: ./in\n"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/iif", config.OutputDir)
	assert.Equal(t, 8, config.MaxConcurrency)
	assert.False(t, config.ShouldArchive())
	assert.Equal(t, "./in", config.InputDir)

	t.Setenv("CASHIIF_MAX_CONCURRENCY", "many")
	_, err = ParseMainConfig(nil)
	assert.ErrorContains(t, err, "failed to read environment overrides")
}

func TestParseMainConfigInvalid(t *testing.T) {
	_, err := ParseMainConfig([]byte("log_level: loud\nmax_concurrency: -1\n"))
	require.Error(t, err)

	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "log_level", errs[0].Field)
	assert.Equal(t, "max_concurrency", errs[1].Field)

	_, err = ParseMainConfig([]byte("input_dir: [unclosed\n"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestParseProfileDefaults(t *testing.T) {
	p, err := ParseProfile([]byte(validProfile))
	require.NoError(t, err)

	assert.Equal(t, "CASH", p.Key())
	assert.Equal(t, "auto", p.Source.Format)
	assert.Equal(t, ",", p.Source.CSVDelimiter)
	assert.Equal(t, "UTF-8", p.Source.Encoding)
	assert.Equal(t, HeaderNone, p.Layout.Header.Kind)
	assert.Equal(t, MismatchStop, p.Layout.End.OnMismatch)
	assert.True(t, p.Layout.End.StopsOnBlankRow())
	assert.Equal(t, ColumnsFixedIndex, p.Columns.Strategy)
	assert.Equal(t, "Till {till} - Bill {bill}", p.MemoTemplate)

	assert.Equal(t, 4, p.Columns.FixedIndex[FieldTillNumber].Index)
	assert.Equal(t, 9, p.Columns.FixedIndex[FieldBillDate].Index)
	assert.Equal(t, 15, p.Columns.FixedIndex[FieldBillNumber].Index)
	assert.Equal(t, 25, p.Columns.FixedIndex[FieldAmount].Index)
}

func TestParseProfileInfersNameMatch(t *testing.T) {
	p, err := ParseProfile([]byte(`
layout:
  start: {strategy: marker_scan, column: A, pattern: "^cash$"}
  header: {kind: single, row: 0}
columns:
  name_match: {amount: AMOUNT}
accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}
`))
	require.NoError(t, err)
	assert.Equal(t, ColumnsNameMatch, p.Columns.Strategy)
	assert.Equal(t, 0, p.Layout.Start.Column.Index)
}

func TestParseProfileDiscriminantFromColumns(t *testing.T) {
	p, err := ParseProfile([]byte(`
layout:
  start: {strategy: fixed_offset, offset: 1}
  header: {kind: single, row: 0}
  end: {discriminant_mismatch: true, on_mismatch: skip}
  discriminant: {pattern: "^cash$"}
columns:
  name_match: {bill_date: DATE, bill_number: BILL, amount: AMOUNT, discriminant: TENDER}
accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}
`))
	require.NoError(t, err)
	assert.True(t, p.Columns.Maps(FieldDiscriminant))
	assert.Nil(t, p.Layout.Discriminant.Column)

	_, err = ParseProfile([]byte(`
transformations: [{field: discriminant, actions: [{type: trim}]}]
accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}
`))
	errs, ok := AsValidationErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	assert.Equal(t, "transformations[0].field", errs[0].Field)
}

func TestValidateProfileReportsEverything(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		fields []string
	}{
		{
			name: "missing accounts",
			yaml: "columns: {fixed_index: {amount: 0}}\n",
			fields: []string{
				"accounts.debit_account",
				"accounts.credit_account",
				"accounts.transaction_type",
				"accounts.payee_name",
			},
		},
		{
			name: "same debit and credit",
			yaml: "accounts: {debit_account: Cash, credit_account: Cash, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"accounts"},
		},
		{
			name: "marker scan without column or pattern",
			yaml: "layout: {start: {strategy: marker_scan}}\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"layout.start.column", "layout.start.pattern"},
		},
		{
			name: "bad regular expressions and glob",
			yaml: "layout: {start: {strategy: marker_scan, column: A, pattern: \"(\"}}\n" +
				"file_matching_patterns: [\"[x\"]\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"layout.start.pattern", "file_matching_patterns[0]"},
		},
		{
			name: "name match without header",
			yaml: "columns: {strategy: name_match, name_match: {amount: AMT, bogus: X}}\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"columns.strategy", "columns.name_match"},
		},
		{
			name: "mismatch end without discriminant",
			yaml: "layout: {end: {discriminant_mismatch: true, on_mismatch: explode}}\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"layout.end.on_mismatch", "layout.discriminant"},
		},
		{
			name: "discriminant without a column",
			yaml: "layout: {end: {discriminant_mismatch: true}, discriminant: {pattern: cash}}\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"layout.discriminant.column"},
		},
		{
			name: "transforming a date",
			yaml: "transformations: [{field: bill_date, actions: [{type: trim}, {type: \"\"}]}]\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"transformations[0].field", "transformations[0].actions[1].type"},
		},
		{
			name: "unknown source format and encoding",
			yaml: "source: {format: ods, encoding: EBCDIC}\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n",
			fields: []string{"source.format", "source.encoding"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.yaml))
			require.Error(t, err)

			errs, ok := AsValidationErrors(err)
			require.True(t, ok, "expected validation errors, got %v", err)

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestParseColumnRef(t *testing.T) {
	tests := []struct {
		in      string
		index   int
		label   string
		wantErr bool
	}{
		{in: "A", index: 0, label: "A"},
		{in: "e", index: 4, label: "E"},
		{in: "Z", index: 25, label: "Z"},
		{in: "AA", index: 26, label: "AA"},
		{in: " 7 ", index: 7, label: "7"},
		{in: "", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "A1", wantErr: true},
	}

	for _, tt := range tests {
		ref, err := ParseColumnRef(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.index, ref.Index, tt.in)
		assert.Equal(t, tt.label, ref.String(), tt.in)
	}
}

func TestColumnRefRejectsNonScalar(t *testing.T) {
	_, err := ParseProfile([]byte("columns: {fixed_index: {amount: [1, 2]}}\n"))
	assert.ErrorContains(t, err, "column must be a letter or an index")
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	write("b.yml", validProfile)
	write("a.yaml", "profile_name: Till Export\n"+
		"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n")
	write("notes.txt", "ignored")

	files, err := ProfileFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Contains(t, profiles, "CASH")
	assert.Contains(t, profiles, "Till Export")

	write("c.yaml", validProfile)
	_, err = LoadProfiles(dir)
	assert.ErrorContains(t, err, `duplicate profile "CASH"`)
}

func TestLoadProfilesReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("layout: {start: {strategy: sideways}}\n"), 0644))

	_, err := LoadProfiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")

	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, "layout.start.strategy", errs[0].Field)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	config := &MainConfig{
		InputDir:        filepath.Join(root, "in"),
		OutputDir:       filepath.Join(root, "out", "iif"),
		InputArchiveDir: filepath.Join(root, "archive"),
	}
	require.NoError(t, config.EnsureDirectories())
	assert.DirExists(t, config.OutputDir)
	assert.DirExists(t, config.InputArchiveDir)
}
