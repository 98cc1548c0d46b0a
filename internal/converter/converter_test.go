package converter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ginjaninja78/cash-iif-converter/internal/columns"
	"github.com/ginjaninja78/cash-iif-converter/internal/config"
	"github.com/ginjaninja78/cash-iif-converter/internal/extract"
	"github.com/ginjaninja78/cash-iif-converter/internal/iif"
	"github.com/ginjaninja78/cash-iif-converter/internal/layout"
	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

const statementProfile = `
profile_name: Cash Sales Statement
profile_code: CASH
layout:
  start: {strategy: fixed_offset, offset: 16}
columns:
  fixed_index: {till_number: E, bill_date: J, bill_number: P, amount: Z}
accounts:
  debit_account: Cash in Drawer
  credit_account: Accounts Receivable
  transaction_type: CASH
  payee_name: Walk In
`

const markerProfile = `
profile_name: Mixed Tender Report
profile_code: MIXED
source: {format: csv}
layout:
  start: {strategy: marker_scan, column: A, pattern: cash}
  header: {kind: single, row: 1}
  end: {discriminant_mismatch: true}
columns:
  strategy: name_match
  name_match: {till_number: TILL, bill_date: BILL DATE, bill_number: BILL NO, amount: AMOUNT}
accounts:
  debit_account: Cash in Drawer
  credit_account: Sales
  transaction_type: CASH
  payee_name: Walk In
`

func newConverter(t *testing.T, profileYAML string) *Converter {
	t.Helper()
	profile, err := config.ParseProfile([]byte(profileYAML))
	require.NoError(t, err)
	opts, err := OptionsFromProfile(profile)
	require.NoError(t, err)
	c, err := New(opts, zap.NewNop())
	require.NoError(t, err)
	return c
}

// statementXLSX builds a sheet shaped like the point-of-sale export: a merged
// title block, sixteen preamble rows, then data in columns E, J, P and Z.
func statementXLSX(t *testing.T, rows [][4]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetCellValue(sheet, "A1", "Daily Sales Statement"))
	require.NoError(t, f.MergeCell(sheet, "A1", "F2"))
	require.NoError(t, f.SetCellValue(sheet, "A4", "Branch: Main Street"))
	require.NoError(t, f.SetCellValue(sheet, "E16", "Till"))
	require.NoError(t, f.SetCellValue(sheet, "Z16", "Amount"))

	for i, r := range rows {
		n := 17 + i
		for j, col := range []string{"E", "J", "P", "Z"} {
			if r[j] == nil {
				continue
			}
			cell, err := excelize.JoinCellName(col, n)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, r[j]))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

var may1 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestConvertStatementScenario(t *testing.T) {
	data := statementXLSX(t, [][4]interface{}{
		{5, may1, 1001, 100.00},
		{6, "01-May-2024 02.30.00 PM", 1002, 123.456},
		{7, may1, 1003, 0},
		{nil, nil, nil, nil},
		{8, may1, 1004, 50},
	})

	result, err := newConverter(t, statementProfile).Convert(data, "cash_2024-05-01.xlsx")
	require.NoError(t, err)

	want := iif.Preamble +
		"TRNS\tCASH\t05/01/2024\tCash in Drawer\tWalk In\tTill 5 - Bill 1001\t100.00\t1001\n" +
		"SPL\tCASH\t05/01/2024\tAccounts Receivable\tWalk In\tTill 5 - Bill 1001\t-100.00\t\t\n" +
		"ENDTRNS\n" +
		"TRNS\tCASH\t05/01/2024\tCash in Drawer\tWalk In\tTill 6 - Bill 1002\t123.46\t1002\n" +
		"SPL\tCASH\t05/01/2024\tAccounts Receivable\tWalk In\tTill 6 - Bill 1002\t-123.46\t\t\n" +
		"ENDTRNS\n"
	assert.Equal(t, want, string(result.Document))

	assert.Equal(t, 16, result.Region.Start)
	assert.Equal(t, 19, result.Region.End, "blank row ends the region")
	assert.Equal(t, ProcessingStats{TotalRows: 3, Accepted: 2, Skipped: 1, ProcessingTime: result.Stats.ProcessingTime}, result.Stats)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, extract.InvalidAmount, result.Diagnostics[0].Reason)
	assert.Equal(t, 19, result.Diagnostics[0].RowNumber())

	for _, txn := range result.Transactions {
		assert.True(t, txn.Debit.Amount.Add(txn.Credit.Amount).IsZero())
	}
}

func TestConvertIsIdempotent(t *testing.T) {
	data := statementXLSX(t, [][4]interface{}{
		{5, may1, 1001, 100.00},
		{5, may1, 1002, 19.99},
	})
	c := newConverter(t, statementProfile)

	first, err := c.Convert(data, "a.xlsx")
	require.NoError(t, err)
	second, err := c.Convert(data, "a.xlsx")
	require.NoError(t, err)

	assert.Equal(t, first.Document, second.Document)
}

func TestConvertMarkerScanStopsAtOtherTender(t *testing.T) {
	csv := strings.Join([]string{
		"Sales report,,,,",
		"Type,Till,Bill Date,Bill No,Amount",
		"Cash,5,2024-05-01,1001,100.00",
		`Cash,5,2024-05-02,1002,"1,250.50"`,
		"Card,5,2024-05-02,1003,20.00",
		"Cash,5,2024-05-03,1004,30.00",
	}, "\n")

	result, err := newConverter(t, markerProfile).Convert([]byte(csv), "mixed.csv")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "1001", result.Transactions[0].ReferenceID)
	assert.Equal(t, "1002", result.Transactions[1].ReferenceID)
	assert.Equal(t, "1250.50", result.Transactions[1].Debit.Amount.StringFixed(2))
	assert.Equal(t, "Sales", result.Transactions[1].Credit.Account)
	assert.NotContains(t, string(result.Document), "1004")
	assert.Empty(t, result.Diagnostics)
}

func TestConvertEmptyRegion(t *testing.T) {
	data := statementXLSX(t, nil)

	result, err := newConverter(t, statementProfile).Convert(data, "empty.xlsx")
	require.NoError(t, err)

	assert.Equal(t, iif.Preamble, string(result.Document))
	assert.Empty(t, result.Transactions)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, extract.EmptyRegion, result.Diagnostics[0].Reason)
	assert.Equal(t, 0, result.Stats.Skipped)
}

func TestConvertHeaderOnlyExport(t *testing.T) {
	profile := `
profile_name: Till Export
source: {format: csv}
layout:
  start: {strategy: fixed_offset, offset: 1}
  header: {kind: single, row: 0}
columns:
  name_match: {till_number: till, bill_date: date, bill_number: bill, amount: amount}
accounts: {debit_account: Cash in Drawer, credit_account: Sales, transaction_type: CASH, payee_name: Walk In}
`

	result, err := newConverter(t, profile).Convert([]byte("till,date,bill,amount\n"), "till.csv")
	require.NoError(t, err)

	assert.Equal(t, iif.Preamble, string(result.Document))
	assert.Empty(t, result.Transactions)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, extract.EmptyRegion, result.Diagnostics[0].Reason)
}

func TestConvertDiscriminantFromColumnMap(t *testing.T) {
	profile := `
profile_name: Tender Export
source: {format: csv}
layout:
  start: {strategy: fixed_offset, offset: 1}
  header: {kind: single, row: 0}
  end: {discriminant_mismatch: true, on_mismatch: skip}
  discriminant: {pattern: "^cash$"}
columns:
  name_match: {till_number: TILL, bill_date: BILL DATE, bill_number: BILL NO, amount: AMOUNT, discriminant: TENDER}
accounts: {debit_account: Cash in Drawer, credit_account: Sales, transaction_type: CASH, payee_name: Walk In}
`
	csv := strings.Join([]string{
		"Till,Tender,Bill Date,Bill No,Amount",
		"5,Cash,2024-05-01,1001,100.00",
		"5,Card,2024-05-01,1002,20.00",
		"5,Cash,2024-05-02,1003,30.00",
	}, "\n")

	result, err := newConverter(t, profile).Convert([]byte(csv), "tender.csv")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "1001", result.Transactions[0].ReferenceID)
	assert.Equal(t, "1003", result.Transactions[1].ReferenceID)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, extract.NotTarget, result.Diagnostics[0].Reason)
	assert.Equal(t, 2, result.Diagnostics[0].RowIndex)
	assert.Equal(t, map[int]bool{2: true}, result.Region.Interleaved)

	t.Run("unmatched discriminant label", func(t *testing.T) {
		csv := "Till,Bill Date,Bill No,Amount\n5,2024-05-01,1001,100.00\n"
		_, err := newConverter(t, profile).Convert([]byte(csv), "no_tender.csv")
		var target *columns.MissingColumnError
		require.True(t, errors.As(err, &target), "got %v", err)
		assert.Equal(t, []columns.Field{columns.Discriminant}, target.Fields)
	})
}

func TestConvertFatalErrors(t *testing.T) {
	t.Run("unreadable workbook", func(t *testing.T) {
		result, err := newConverter(t, statementProfile).Convert([]byte("PK\x03\x04 not really a zip"), "broken.xlsx")
		var target *workbook.LoadError
		assert.True(t, errors.As(err, &target), "got %v", err)
		assert.Nil(t, result)
	})

	t.Run("marker not found", func(t *testing.T) {
		result, err := newConverter(t, markerProfile).Convert([]byte("Type,Till\nCard,5\n"), "card.csv")
		var target *layout.LayoutError
		assert.True(t, errors.As(err, &target), "got %v", err)
		assert.Nil(t, result)
	})

	t.Run("missing columns", func(t *testing.T) {
		csv := "x\nType,Till,Date,Amount\nCash,5,2024-05-01,10\n"
		result, err := newConverter(t, markerProfile).Convert([]byte(csv), "cols.csv")
		var target *columns.MissingColumnError
		require.True(t, errors.As(err, &target), "got %v", err)
		assert.ElementsMatch(t, []columns.Field{columns.BillDate, columns.BillNumber}, target.Fields)
		assert.Nil(t, result)
	})
}

func TestNewRejectsIncompleteAccounts(t *testing.T) {
	profile, err := config.ParseProfile([]byte(statementProfile))
	require.NoError(t, err)
	opts, err := OptionsFromProfile(profile)
	require.NoError(t, err)

	opts.Accounts.CreditAccount = ""
	_, err = New(opts, nil)
	assert.Error(t, err)
}

func TestOptionsDiscriminantColumn(t *testing.T) {
	tests := []struct {
		name   string
		layout string
		want   int
	}{
		{name: "explicit column", layout: "{start: {strategy: fixed_offset}, discriminant: {column: C, pattern: cash}}", want: 2},
		{name: "marker column", layout: "{start: {strategy: marker_scan, column: B, pattern: cash}, discriminant: {pattern: cash}}", want: 1},
		{name: "left to the column map", layout: "{start: {strategy: fixed_offset}, discriminant: {pattern: cash}}", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := config.ParseProfile([]byte("layout: " + tt.layout + "\n" +
				"accounts: {debit_account: D, credit_account: C, transaction_type: CASH, payee_name: P}\n"))
			require.NoError(t, err)
			opts, err := OptionsFromProfile(profile)
			require.NoError(t, err)
			require.NotNil(t, opts.Layout.End.Discriminant)
			assert.Equal(t, tt.want, opts.Layout.End.Discriminant.Column)
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{in: "", want: ','},
		{in: ";", want: ';'},
		{in: "tab", want: '\t'},
		{in: "|", want: '|'},
		{in: ";;", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
