// =============================================================================
// Cash Sales IIF Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It runs the whole pipeline
// for a single document, from raw spreadsheet bytes to the IIF text.
//
// CONVERSION PIPELINE:
//   1. Load the workbook into a merge-resolved grid
//   2. Locate the data region (start row and header labels)
//   3. Map canonical fields to columns
//   4. Bound the region (blank row, discriminant mismatch, sheet end)
//   5. Extract records, collecting row diagnostics
//   6. Compose balanced ledger transactions
//   7. Serialize the IIF document
//
// The discriminant column may come from the column map, which is why the
// region is bounded only after mapping.
//
// Steps 1 to 4 and 7 fail the whole run. Bad rows in step 5 only produce
// diagnostics; the document is still written for the accepted rows.
//
// CONCURRENCY:
//   A Converter holds only immutable per-profile settings. Convert keeps all
//   run state on its own stack, so one Converter can serve many goroutines.
//
// =============================================================================

package converter

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/cash-iif-converter/internal/columns"
	"github.com/ginjaninja78/cash-iif-converter/internal/dates"
	"github.com/ginjaninja78/cash-iif-converter/internal/extract"
	"github.com/ginjaninja78/cash-iif-converter/internal/iif"
	"github.com/ginjaninja78/cash-iif-converter/internal/layout"
	"github.com/ginjaninja78/cash-iif-converter/internal/ledger"
	"github.com/ginjaninja78/cash-iif-converter/internal/transform"
	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of converting a single document.
type Result struct {
	// FileName is the name the input was submitted under.
	FileName string

	// Document is the complete IIF text.
	Document []byte

	// Records are the accepted rows, in row order.
	Records []extract.CashSaleRecord

	// Transactions map 1:1 onto Records.
	Transactions []ledger.Transaction

	// Diagnostics explain every rejected row, in row order.
	Diagnostics []extract.RowDiagnostic

	// Region is the detected data block.
	Region layout.Region

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// TotalRows is the number of rows inside the data region.
	TotalRows int

	// Accepted is the number of rows that became transactions.
	Accepted int

	// Skipped is the number of rows rejected with a diagnostic.
	Skipped int

	// ProcessingTime is the time taken to convert the document.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter converts documents for one profile.
type Converter struct {
	opts      Options
	extractor *extract.Extractor
	composer  *ledger.Composer
	logger    *zap.Logger
}

// New creates a Converter.
//
// PARAMETERS:
//   - opts: The pipeline settings, usually from OptionsFromProfile.
//   - logger: Receives stage and outcome logs; nil disables logging.
//
// RETURNS:
//   - A new Converter.
//   - An error if the account mapping or transformations are invalid.
func New(opts Options, logger *zap.Logger) (*Converter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	composer, err := ledger.NewComposer(opts.Accounts, opts.MemoTemplate)
	if err != nil {
		return nil, err
	}

	transformer, err := transform.New(opts.Transformations)
	if err != nil {
		return nil, fmt.Errorf("invalid transformations: %w", err)
	}

	return &Converter{
		opts:      opts,
		extractor: extract.New(dates.NewParser(opts.DateLayouts...), transformer),
		composer:  composer,
		logger:    logger,
	}, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Convert runs the pipeline over one document.
//
// PARAMETERS:
//   - data: The raw spreadsheet bytes.
//   - fileName: The submitted name, used for format sniffing and logs.
//
// RETURNS:
//   - The Result with the document and diagnostics.
//   - A fatal error (*workbook.LoadError, *layout.LayoutError,
//     *columns.MissingColumnError or *iif.SerializationError). No document
//     is returned in that case.
func (c *Converter) Convert(data []byte, fileName string) (*Result, error) {
	startTime := time.Now()
	log := c.logger.With(zap.String("file", fileName))

	// =========================================================================
	// STEP 1: LOAD WORKBOOK
	// =========================================================================

	source := c.opts.Source
	source.FileName = fileName

	grid, err := workbook.Load(data, source)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded workbook",
		zap.String("sheet", grid.Sheet),
		zap.Int("rows", grid.RowCount()),
		zap.Int("columns", grid.Width()))

	// =========================================================================
	// STEP 2: LOCATE DATA REGION
	// =========================================================================

	region, err := layout.Locate(grid, c.opts.Layout)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 3: MAP COLUMNS
	// =========================================================================

	cols, err := columns.Resolve(region.Labels, c.opts.Columns)
	if err != nil {
		return nil, err
	}
	log.Debug("mapped columns", zap.Any("columns", cols))

	// =========================================================================
	// STEP 4: BOUND DATA REGION
	// =========================================================================

	l := c.opts.Layout
	if col, ok := cols.Column(columns.Discriminant); ok {
		l = l.WithDiscriminantColumn(col)
	}
	region, err = layout.Bound(grid, region, l)
	if err != nil {
		return nil, err
	}
	log.Debug("detected data region",
		zap.Int("start_row", region.Start+1),
		zap.Int("end_row", region.End),
		zap.Int("interleaved", len(region.Interleaved)))

	// =========================================================================
	// STEP 5: EXTRACT RECORDS
	// =========================================================================

	records, diagnostics := c.extractor.Extract(grid, region, cols)
	for _, d := range diagnostics {
		log.Warn("row skipped",
			zap.Int("row", d.RowNumber()),
			zap.String("reason", string(d.Reason)),
			zap.String("detail", d.Detail))
	}

	// =========================================================================
	// STEP 6: COMPOSE TRANSACTIONS
	// =========================================================================

	txns := c.composer.Compose(records)

	// =========================================================================
	// STEP 7: SERIALIZE
	// =========================================================================

	doc, err := iif.Serialize(txns)
	if err != nil {
		return nil, err
	}

	result := &Result{
		FileName:     fileName,
		Document:     doc,
		Records:      records,
		Transactions: txns,
		Diagnostics:  diagnostics,
		Region:       region,
		Stats: ProcessingStats{
			TotalRows:      region.Len(),
			Accepted:       len(records),
			Skipped:        skippedRows(diagnostics),
			ProcessingTime: time.Since(startTime),
		},
	}

	log.Info("converted",
		zap.Int("rows", result.Stats.TotalRows),
		zap.Int("accepted", result.Stats.Accepted),
		zap.Int("skipped", result.Stats.Skipped),
		zap.Duration("elapsed", result.Stats.ProcessingTime))

	return result, nil
}

// skippedRows counts diagnostics tied to a real row.
func skippedRows(diagnostics []extract.RowDiagnostic) int {
	n := 0
	for _, d := range diagnostics {
		if d.Reason != extract.EmptyRegion {
			n++
		}
	}
	return n
}
