package workbook

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// xlsxSheet carries the per-sheet state needed to type cells.
type xlsxSheet struct {
	f        *excelize.File
	sheet    string
	date1904 bool

	// dateStyles caches "is this style a date format" per style ID.
	dateStyles map[int]bool
}

func loadXLSX(data []byte, sheet string) (*Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, loadErr(FormatXLSX, "cannot open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, loadErr(FormatXLSX, "workbook has no sheets", nil)
	}
	name := sheets[0]
	if sheet != "" {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil || idx < 0 {
			return nil, loadErr(FormatXLSX, fmt.Sprintf("sheet %q not found", sheet), err)
		}
		name = sheet
	}

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, loadErr(FormatXLSX, "cannot read rows", err)
	}

	s := &xlsxSheet{f: f, sheet: name, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		s.date1904 = *props.Date1904
	}

	rows := make([][]Cell, len(raw))
	for i, values := range raw {
		row := make([]Cell, len(values))
		for j, v := range values {
			if v == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, loadErr(FormatXLSX, "bad coordinates", err)
			}
			row[j] = s.cell(axis, v)
		}
		rows[i] = row
	}

	merged, err := f.GetMergeCells(name)
	if err != nil {
		return nil, loadErr(FormatXLSX, "cannot read merged cells", err)
	}
	regions := make([]MergedRegion, 0, len(merged))
	for _, mc := range merged {
		startCol, startRow, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			return nil, loadErr(FormatXLSX, "bad merged region", err)
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			return nil, loadErr(FormatXLSX, "bad merged region", err)
		}
		regions = append(regions, MergedRegion{
			StartRow: startRow - 1, StartCol: startCol - 1,
			EndRow: endRow - 1, EndCol: endCol - 1,
		})
	}

	return newGrid(name, rows, regions), nil
}

// cell types a raw value. Strings stay text even when they look numeric
// ("1001" typed as text is a bill number, not an amount).
func (s *xlsxSheet) cell(axis, value string) Cell {
	typ, err := s.f.GetCellType(s.sheet, axis)
	if err == nil {
		switch typ {
		case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
			excelize.CellTypeBool, excelize.CellTypeError:
			return TextCell(value)
		case excelize.CellTypeDate:
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, value); err == nil {
					return DateCell(t)
				}
			}
			return TextCell(value)
		}
	}

	n, ok := parseFinite(value)
	if !ok {
		return TextCell(value)
	}
	if s.isDateStyled(axis) {
		if t, err := excelize.ExcelDateToTime(n, s.date1904); err == nil {
			return DateCell(t)
		}
	}
	return NumberCell(n)
}

func (s *xlsxSheet) isDateStyled(axis string) bool {
	styleID, err := s.f.GetCellStyle(s.sheet, axis)
	if err != nil {
		return false
	}
	if isDate, ok := s.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := s.f.GetStyle(styleID); err == nil && style != nil {
		isDate = isBuiltInDateFormat(style.NumFmt)
		if !isDate && style.CustomNumFmt != nil {
			isDate = IsDateFormatCode(*style.CustomNumFmt)
		}
	}
	s.dateStyles[styleID] = isDate
	return isDate
}

// isBuiltInDateFormat covers the built-in date and date-time number formats.
func isBuiltInDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// IsDateFormatCode reports whether a custom number format renders a date.
// Quoted literals, escaped characters and bracketed sections ([Red],
// [$-409]) are ignored before looking for day or year tokens.
func IsDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	lower := strings.ToLower(b.String())
	return strings.ContainsAny(lower, "dy")
}
