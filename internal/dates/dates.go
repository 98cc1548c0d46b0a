// Package dates turns heterogeneous spreadsheet date values into calendar
// dates.
package dates

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

// StatementLayout matches "01-May-2024 02.30.00 PM". Day and hour accept one
// or two digits.
const StatementLayout = "2-Jan-2006 3.04.05 PM"

// Excel serials outside this range are not dates (1900-01-01 .. 9999-12-31).
const (
	minSerial = 1
	maxSerial = 2958465
)

// DateParseError reports a value no strategy could read. Callers treat it
// as a row-level problem.
type DateParseError struct {
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse date %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("parse date %q", e.Value)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// Parser tries, in order: a typed date, the statement layout, any extra
// layouts, then an unambiguous generic parse. The first success wins and the
// time of day is dropped.
type Parser struct {
	layouts []string
}

// NewParser returns a Parser that also tries the given Go layouts before
// falling back to generic parsing.
func NewParser(layouts ...string) *Parser {
	return &Parser{layouts: layouts}
}

// Parse converts a cell to a calendar date.
func (p *Parser) Parse(c workbook.Cell) (civil.Date, error) {
	switch c.Kind {
	case workbook.Date:
		return civil.DateOf(c.Time), nil
	case workbook.Number:
		if c.Number >= minSerial && c.Number <= maxSerial {
			if t, err := excelize.ExcelDateToTime(c.Number, false); err == nil {
				return civil.DateOf(t), nil
			}
		}
		return civil.Date{}, &DateParseError{Value: c.String(), Err: fmt.Errorf("number is not a date serial")}
	case workbook.Text:
		return p.ParseString(c.Text)
	default:
		return civil.Date{}, &DateParseError{Value: "", Err: fmt.Errorf("empty value")}
	}
}

// ParseString reads a date from text.
func (p *Parser) ParseString(s string) (civil.Date, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return civil.Date{}, &DateParseError{Value: s, Err: fmt.Errorf("empty value")}
	}

	// Month names are matched case-insensitively, AM/PM only in upper case.
	if t, err := time.Parse(StatementLayout, strings.ToUpper(value)); err == nil {
		return civil.DateOf(t), nil
	}

	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return civil.DateOf(t), nil
		}
	}

	t, err := dateparse.ParseStrict(value)
	if err != nil {
		return civil.Date{}, &DateParseError{Value: s, Err: err}
	}
	return civil.DateOf(t), nil
}
