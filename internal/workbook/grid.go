// =============================================================================
// Cash Sales IIF Converter - Workbook Module
// =============================================================================
//
// This module decodes raw spreadsheet bytes into a Grid of typed cells.
//
// SUPPORTED SOURCES:
//   - .xlsx  (excelize)       typed numbers and dates, merged regions
//   - .xls   (xlsReader)      legacy BIFF workbooks, cells re-typed from text
//   - .csv   (encoding/csv)   configurable delimiter and source encoding
//
// MERGED REGIONS:
//   Every merged region is resolved during loading: the top-left value is
//   copied into each cell the region covers. Nothing downstream ever sees a
//   partially empty merged block, and the regions are not kept afterwards.
//
// =============================================================================

package workbook

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// CellKind classifies a cell value.
type CellKind int

const (
	Empty CellKind = iota
	Text
	Number
	Date
)

func (k CellKind) String() string {
	switch k {
	case Text:
		return "text"
	case Number:
		return "number"
	case Date:
		return "date"
	default:
		return "empty"
	}
}

// Cell is one typed grid value. Only the field matching Kind is set.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

// TextCell, NumberCell and DateCell build cells of the given kind.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Text: s}
}

func NumberCell(v float64) Cell { return Cell{Kind: Number, Number: v} }

func DateCell(t time.Time) Cell { return Cell{Kind: Date, Time: t} }

// parseFinite parses s as a float. NaN and the infinities ("nan", "inf",
// "infinity" in any case) are rejected so they stay text.
func parseFinite(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// IsBlank reports whether the cell holds nothing but whitespace.
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case Empty:
		return true
	case Text:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// String renders the cell the way a reader sees it. Whole numbers have no
// fractional part ("5", not "5.0").
func (c Cell) String() string {
	switch c.Kind {
	case Text:
		return c.Text
	case Number:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case Date:
		if h, m, s := c.Time.Clock(); h == 0 && m == 0 && s == 0 {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// =============================================================================
// GRID
// =============================================================================

// Grid is a rectangular, merge-resolved sheet. It is never modified after
// Load returns, so it can be shared freely between goroutines.
type Grid struct {
	Sheet string
	rows  [][]Cell
	width int
}

// MergedRegion is an inclusive rectangle of 0-based coordinates.
type MergedRegion struct {
	StartRow, StartCol int
	EndRow, EndCol     int
}

// newGrid pads ragged rows with Empty cells and resolves merges.
func newGrid(sheet string, rows [][]Cell, merges []MergedRegion) *Grid {
	width := 0
	height := len(rows)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for _, m := range merges {
		if m.EndCol+1 > width {
			width = m.EndCol + 1
		}
		if m.EndRow+1 > height {
			height = m.EndRow + 1
		}
	}

	padded := make([][]Cell, height)
	for i := range padded {
		row := make([]Cell, width)
		if i < len(rows) {
			copy(row, rows[i])
		}
		padded[i] = row
	}

	g := &Grid{Sheet: sheet, rows: padded, width: width}
	for _, m := range merges {
		g.fill(m)
	}
	return g
}

func (g *Grid) fill(m MergedRegion) {
	if m.StartRow < 0 || m.StartCol < 0 || m.EndRow < m.StartRow || m.EndCol < m.StartCol {
		return
	}
	src := g.rows[m.StartRow][m.StartCol]
	for r := m.StartRow; r <= m.EndRow; r++ {
		for c := m.StartCol; c <= m.EndCol; c++ {
			g.rows[r][c] = src
		}
	}
}

// NewGrid builds a Grid from in-memory cells. Used by callers that already
// hold decoded data.
func NewGrid(sheet string, rows [][]Cell, merges ...MergedRegion) *Grid {
	return newGrid(sheet, rows, merges)
}

// RowCount returns the number of rows.
func (g *Grid) RowCount() int { return len(g.rows) }

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Cell returns the cell at (row, col); coordinates outside the grid yield an
// Empty cell.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= g.width {
		return Cell{}
	}
	return g.rows[row][col]
}

// IsBlankRow reports whether every cell of the row is blank. Rows outside
// the grid count as blank.
func (g *Grid) IsBlankRow(row int) bool {
	if row < 0 || row >= len(g.rows) {
		return true
	}
	for _, c := range g.rows[row] {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}
