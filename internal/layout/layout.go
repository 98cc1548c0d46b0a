// =============================================================================
// Cash Sales IIF Converter - Layout Detection Module
// =============================================================================
//
// This module finds the data region inside a sheet. Statement exports differ
// in where the data starts, how the header looks and what ends the block, so
// each concern is a small strategy picked by the profile:
//
//   START:  FixedOffset(n)          skip the first n rows
//           MarkerScan(col, regex)  first row whose column matches
//
//   HEADER: none | single row | composite (two rows joined per column)
//
//   END:    first blank row, first discriminant mismatch, end of sheet;
//           whichever comes first
//
// Detection runs in two phases. Locate finds the start row and the header
// labels; Bound applies the end policy. Callers that bind the discriminant
// through the column map resolve columns in between.
//
// Detection never mutates the grid and keeps no state between calls.
//
// =============================================================================

package layout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

// StartKind selects the start strategy.
type StartKind int

const (
	StartFixedOffset StartKind = iota
	StartMarkerScan
)

// Start locates the first data row.
type Start struct {
	Kind    StartKind
	Offset  int
	Column  int
	Pattern string
}

// FixedOffset skips the first n rows.
func FixedOffset(n int) Start { return Start{Kind: StartFixedOffset, Offset: n} }

// MarkerScan starts at the first row whose column matches pattern,
// case-insensitively.
func MarkerScan(column int, pattern string) Start {
	return Start{Kind: StartMarkerScan, Column: column, Pattern: pattern}
}

// HeaderKind selects the header shape.
type HeaderKind int

const (
	NoHeader HeaderKind = iota
	SingleHeader
	CompositeHeader
)

// Header describes where the labels are. Row is absolute unless Relative,
// in which case it is an offset from the detected start row.
type Header struct {
	Kind     HeaderKind
	Row      int
	Relative bool
}

// Discriminant identifies target rows.
type Discriminant struct {
	Column  int
	Pattern string
}

// MismatchAction decides what a non-matching discriminant does.
type MismatchAction int

const (
	// StopOnMismatch closes the region at the first non-target row.
	StopOnMismatch MismatchAction = iota
	// SkipOnMismatch keeps the region open and marks the row as interleaved.
	SkipOnMismatch
)

// End lists the conditions that close the region.
type End struct {
	BlankRow             bool
	DiscriminantMismatch bool
	OnMismatch           MismatchAction

	// Discriminant overrides the marker-scan column/pattern. A negative
	// Column means the column comes from the column map; see
	// Layout.WithDiscriminantColumn.
	Discriminant *Discriminant
}

// Layout is the full detection configuration.
type Layout struct {
	Start  Start
	Header Header
	End    End
}

// Region is the bounded data block: rows [Start, End) of the grid.
type Region struct {
	Start int
	End   int

	// Labels is the resolved header, one label per grid column. Nil when the
	// layout has no header.
	Labels []string

	// Interleaved holds rows inside the region whose discriminant did not
	// match under SkipOnMismatch.
	Interleaved map[int]bool
}

// Len returns the number of rows in the region.
func (r Region) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// LayoutError reports that the configured layout does not fit the sheet.
type LayoutError struct {
	Reason string
}

func (e *LayoutError) Error() string {
	return "detect layout: " + e.Reason
}

func layoutErr(format string, args ...interface{}) *LayoutError {
	return &LayoutError{Reason: fmt.Sprintf(format, args...)}
}

// Detect applies the layout to the grid: Locate followed by Bound.
func Detect(g *workbook.Grid, l Layout) (Region, error) {
	region, err := Locate(g, l)
	if err != nil {
		return Region{}, err
	}
	return Bound(g, region, l)
}

// Locate finds the first data row and resolves the header labels. The
// returned region is open: End equals Start until Bound closes it.
//
// The header is read even when the start lies past the last row, so a
// header-only export still carries its labels. A header that falls outside
// the sheet is an error unless the sheet has no data rows at all.
func Locate(g *workbook.Grid, l Layout) (Region, error) {
	start, err := findStart(g, l.Start)
	if err != nil {
		return Region{}, err
	}

	region := Region{Start: start, End: start}
	empty := start >= g.RowCount()

	headerRows, err := headerRows(g, l.Header, start)
	if err != nil {
		if empty {
			return region, nil
		}
		return Region{}, err
	}
	if len(headerRows) > 0 {
		region.Labels = ResolveHeader(g, headerRows)
		if last := headerRows[len(headerRows)-1]; last >= region.Start {
			region.Start = last + 1
		}
	}
	region.End = region.Start

	return region, nil
}

// Bound closes a located region by applying the end policy. Rows before
// region.Start are never inspected.
func Bound(g *workbook.Grid, region Region, l Layout) (Region, error) {
	region.End = region.Start
	region.Interleaved = nil
	if region.Start >= g.RowCount() {
		return region, nil
	}

	var disc *discriminant
	if l.End.DiscriminantMismatch {
		var err error
		disc, err = resolveDiscriminant(l)
		if err != nil {
			return Region{}, err
		}
	}

	region.End = g.RowCount()
	for row := region.Start; row < g.RowCount(); row++ {
		if l.End.BlankRow && g.IsBlankRow(row) {
			region.End = row
			break
		}
		if disc != nil && !disc.matches(g, row) {
			if l.End.OnMismatch == StopOnMismatch {
				region.End = row
				break
			}
			if region.Interleaved == nil {
				region.Interleaved = make(map[int]bool)
			}
			region.Interleaved[row] = true
		}
	}
	if region.End < region.Start {
		region.End = region.Start
	}

	return region, nil
}

// WithDiscriminantColumn returns a copy of l whose discriminant reads the
// given column. The pattern is kept from the configured discriminant, or
// taken from the start marker when none is configured.
func (l Layout) WithDiscriminantColumn(column int) Layout {
	var pattern string
	switch {
	case l.End.Discriminant != nil:
		pattern = l.End.Discriminant.Pattern
	case l.Start.Kind == StartMarkerScan:
		pattern = l.Start.Pattern
	}
	l.End.Discriminant = &Discriminant{Column: column, Pattern: pattern}
	return l
}

// ResolveHeader joins the given rows column by column into one label per
// column: non-blank parts are trimmed and space-joined.
func ResolveHeader(g *workbook.Grid, rows []int) []string {
	labels := make([]string, g.Width())
	for col := range labels {
		var parts []string
		for _, row := range rows {
			if v := strings.TrimSpace(g.Cell(row, col).String()); v != "" {
				parts = append(parts, v)
			}
		}
		labels[col] = strings.Join(parts, " ")
	}
	return labels
}

func findStart(g *workbook.Grid, s Start) (int, error) {
	switch s.Kind {
	case StartFixedOffset:
		if s.Offset < 0 {
			return 0, layoutErr("negative start offset %d", s.Offset)
		}
		return s.Offset, nil
	case StartMarkerScan:
		re, err := CompilePattern(s.Pattern)
		if err != nil {
			return 0, layoutErr("bad marker pattern %q: %v", s.Pattern, err)
		}
		for row := 0; row < g.RowCount(); row++ {
			if re.MatchString(g.Cell(row, s.Column).String()) {
				return row, nil
			}
		}
		return 0, layoutErr("no row matches marker %q in column %d", s.Pattern, s.Column)
	default:
		return 0, layoutErr("unknown start strategy %d", s.Kind)
	}
}

func headerRows(g *workbook.Grid, h Header, start int) ([]int, error) {
	var count int
	switch h.Kind {
	case NoHeader:
		return nil, nil
	case SingleHeader:
		count = 1
	case CompositeHeader:
		count = 2
	default:
		return nil, layoutErr("unknown header kind %d", h.Kind)
	}

	first := h.Row
	if h.Relative {
		first += start
	}
	if first < 0 || first+count > g.RowCount() {
		return nil, layoutErr("header rows %d..%d are outside the sheet (%d rows)", first, first+count-1, g.RowCount())
	}

	rows := make([]int, count)
	for i := range rows {
		rows[i] = first + i
	}
	return rows, nil
}

type discriminant struct {
	column int
	re     *regexp.Regexp
}

func (d *discriminant) matches(g *workbook.Grid, row int) bool {
	return d.re.MatchString(g.Cell(row, d.column).String())
}

func resolveDiscriminant(l Layout) (*discriminant, error) {
	var column int
	var pattern string
	switch {
	case l.End.Discriminant != nil:
		column, pattern = l.End.Discriminant.Column, l.End.Discriminant.Pattern
	case l.Start.Kind == StartMarkerScan:
		column, pattern = l.Start.Column, l.Start.Pattern
	default:
		return nil, layoutErr("discriminant mismatch needs a discriminant column")
	}
	if column < 0 {
		return nil, layoutErr("discriminant column is not mapped")
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, layoutErr("bad discriminant pattern %q: %v", pattern, err)
	}
	return &discriminant{column: column, re: re}, nil
}

// CompilePattern compiles a case-insensitive marker or discriminant
// pattern. Blank patterns are rejected because they would match every row.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	return regexp.Compile("(?i)" + pattern)
}
