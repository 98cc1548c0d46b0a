package workbook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shakinm/xlsReader/xls"
)

// loadXLS reads a legacy BIFF workbook. The reader hands every cell back as
// text, so numeric text is re-typed as Number. Date cells arrive as serial
// numbers and are left to the date parser.
func loadXLS(data []byte, sheet string) (*Grid, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, loadErr(FormatXLS, "cannot open workbook", err)
	}

	sheets := wb.GetSheets()
	if len(sheets) == 0 {
		return nil, loadErr(FormatXLS, "workbook has no sheets", nil)
	}

	idx := 0
	if sheet != "" {
		idx = -1
		for i := range sheets {
			if sheets[i].GetName() == sheet {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, loadErr(FormatXLS, fmt.Sprintf("sheet %q not found", sheet), nil)
		}
	}

	ws, err := wb.GetSheet(idx)
	if err != nil {
		return nil, loadErr(FormatXLS, "cannot read sheet", err)
	}

	var rows [][]Cell
	for _, row := range ws.GetRows() {
		var cells []Cell
		for _, col := range row.GetCols() {
			cells = append(cells, typeText(col.GetString()))
		}
		rows = append(rows, cells)
	}

	return newGrid(ws.GetName(), rows, nil), nil
}

// typeText turns an untyped value into a Number when it parses as a finite
// one.
func typeText(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	if n, ok := parseFinite(s); ok {
		return NumberCell(n)
	}
	return TextCell(s)
}
