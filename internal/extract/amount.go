package extract

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

var currencyMarks = []string{"R$", "US$", "Rs.", "Rs", "USD", "$", "€", "£", "₹", " ", "\u00a0", "'"}

// ParseAmount reads a monetary amount from a cell. Number cells are taken
// as-is; text goes through ParseAmountString.
func ParseAmount(c workbook.Cell) (decimal.Decimal, error) {
	switch c.Kind {
	case workbook.Number:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero, fmt.Errorf("amount %v is not a finite number", c.Number)
		}
		return decimal.NewFromFloat(c.Number), nil
	case workbook.Text:
		return ParseAmountString(c.Text)
	case workbook.Date:
		return decimal.Zero, fmt.Errorf("amount %q is a date", c.String())
	default:
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
}

// ParseAmountString accepts currency marks, thousands separators, either
// "." or "," as decimal separator, and accounting parentheses for negatives.
// When both separators appear, the rightmost one is the decimal separator.
func ParseAmountString(val string) (decimal.Decimal, error) {
	s := strings.TrimSpace(val)
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", val)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", val)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
