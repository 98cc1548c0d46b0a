// =============================================================================
// Cash Sales IIF Converter - Record Extraction Module
// =============================================================================
//
// This module walks the detected data region row by row and turns each row
// into either a CashSaleRecord or a RowDiagnostic, never both.
//
// ROW CHECKS (in order, first failure wins):
//   1. Interleaved non-target row        -> NotTarget
//   2. Mandatory field blank             -> MissingField (lists every one)
//   3. Amount not numeric or <= 0        -> InvalidAmount
//   4. Bill date unreadable              -> InvalidDate
//   5. Till/bill transformation failed   -> InvalidField
//
// A bad row is skipped and extraction continues; nothing here aborts the
// batch. Records and diagnostics both keep the original row order.
//
// =============================================================================

package extract

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/cash-iif-converter/internal/columns"
	"github.com/ginjaninja78/cash-iif-converter/internal/dates"
	"github.com/ginjaninja78/cash-iif-converter/internal/layout"
	"github.com/ginjaninja78/cash-iif-converter/internal/transform"
	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

// =============================================================================
// DATA STRUCTURES
// =============================================================================

// CashSaleRecord is one accepted statement row.
type CashSaleRecord struct {
	// RowIndex is the 0-based grid row the record came from.
	RowIndex int

	// TillNumber is optional and may be empty.
	TillNumber string

	BillDate   civil.Date
	BillNumber string

	// Amount is strictly positive and not yet rounded.
	Amount decimal.Decimal
}

// Reason classifies a row diagnostic.
type Reason string

const (
	MissingField  Reason = "MissingField"
	InvalidAmount Reason = "InvalidAmount"
	InvalidDate   Reason = "InvalidDate"
	InvalidField  Reason = "InvalidField"
	NotTarget     Reason = "NotTarget"
	EmptyRegion   Reason = "EmptyRegion"
)

// RowDiagnostic explains why a row produced no record.
type RowDiagnostic struct {
	RowIndex int
	Reason   Reason
	Detail   string
}

// RowNumber is the 1-based row number a spreadsheet user sees.
func (d RowDiagnostic) RowNumber() int { return d.RowIndex + 1 }

func (d RowDiagnostic) String() string {
	return fmt.Sprintf("row %d: %s: %s", d.RowNumber(), d.Reason, d.Detail)
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor holds the per-profile helpers. It keeps no per-run state and can
// be shared between goroutines.
type Extractor struct {
	dates       *dates.Parser
	transformer *transform.Transformer
}

// New creates an Extractor. transformer may be nil.
func New(parser *dates.Parser, transformer *transform.Transformer) *Extractor {
	if parser == nil {
		parser = dates.NewParser()
	}
	return &Extractor{dates: parser, transformer: transformer}
}

// Extract walks rows [region.Start, region.End) of g.
//
// RETURNS:
//   - The accepted records, in row order.
//   - One diagnostic per rejected row, in row order. An empty region yields
//     exactly one EmptyRegion diagnostic.
func (e *Extractor) Extract(g *workbook.Grid, region layout.Region, cols columns.Map) ([]CashSaleRecord, []RowDiagnostic) {
	if region.Len() == 0 {
		return nil, []RowDiagnostic{{
			RowIndex: region.Start,
			Reason:   EmptyRegion,
			Detail:   "no data rows after layout detection",
		}}
	}

	var records []CashSaleRecord
	var diagnostics []RowDiagnostic

	for row := region.Start; row < region.End; row++ {
		if region.Interleaved[row] {
			diagnostics = append(diagnostics, RowDiagnostic{RowIndex: row, Reason: NotTarget, Detail: "row is not a target transaction"})
			continue
		}

		record, diag := e.extractRow(g, row, cols)
		if diag != nil {
			diagnostics = append(diagnostics, *diag)
			continue
		}
		records = append(records, record)
	}

	return records, diagnostics
}

func (e *Extractor) extractRow(g *workbook.Grid, row int, cols columns.Map) (CashSaleRecord, *RowDiagnostic) {
	cell := func(f columns.Field) workbook.Cell {
		col, ok := cols.Column(f)
		if !ok {
			return workbook.Cell{}
		}
		return g.Cell(row, col)
	}
	reject := func(reason Reason, format string, args ...interface{}) (CashSaleRecord, *RowDiagnostic) {
		return CashSaleRecord{}, &RowDiagnostic{RowIndex: row, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	var missing []string
	for _, f := range columns.Mandatory {
		if cell(f).IsBlank() {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return reject(MissingField, "blank %s", strings.Join(missing, ", "))
	}

	amountCell := cell(columns.Amount)
	amount, err := ParseAmount(amountCell)
	if err != nil {
		return reject(InvalidAmount, "%v", err)
	}
	if !amount.IsPositive() {
		return reject(InvalidAmount, "amount %s is not positive", amount.String())
	}

	billDate, err := e.dates.Parse(cell(columns.BillDate))
	if err != nil {
		return reject(InvalidDate, "%v", err)
	}

	till, err := e.transformer.Transform(string(columns.TillNumber), Stringify(cell(columns.TillNumber)))
	if err != nil {
		return reject(InvalidField, "till_number: %v", err)
	}
	bill, err := e.transformer.Transform(string(columns.BillNumber), Stringify(cell(columns.BillNumber)))
	if err != nil {
		return reject(InvalidField, "bill_number: %v", err)
	}
	if strings.TrimSpace(bill) == "" {
		return reject(InvalidField, "bill_number is empty after transformation")
	}

	return CashSaleRecord{
		RowIndex:   row,
		TillNumber: till,
		BillDate:   billDate,
		BillNumber: bill,
		Amount:     amount,
	}, nil
}

// Stringify renders an identifier cell: whole numbers lose their ".0",
// dates become YYYY-MM-DD and text is trimmed.
func Stringify(c workbook.Cell) string {
	return strings.TrimSpace(c.String())
}
