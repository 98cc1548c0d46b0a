package converter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/cash-iif-converter/internal/columns"
	"github.com/ginjaninja78/cash-iif-converter/internal/config"
	"github.com/ginjaninja78/cash-iif-converter/internal/layout"
	"github.com/ginjaninja78/cash-iif-converter/internal/ledger"
	"github.com/ginjaninja78/cash-iif-converter/internal/workbook"
)

// Options holds everything one conversion needs besides the input bytes.
type Options struct {
	Source          workbook.Options
	Layout          layout.Layout
	Columns         columns.Mapping
	DateLayouts     []string
	Accounts        ledger.AccountMapping
	MemoTemplate    string
	Transformations []config.TransformationRule
}

// OptionsFromProfile translates a validated profile into pipeline options.
func OptionsFromProfile(p *config.ProfileConfig) (Options, error) {
	delimiter, err := parseDelimiter(p.Source.CSVDelimiter)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Source: workbook.Options{
			Format:    workbook.Format(strings.ToLower(p.Source.Format)),
			Sheet:     p.Source.Sheet,
			Delimiter: delimiter,
			Encoding:  p.Source.Encoding,
		},
		DateLayouts: p.Date.Layouts,
		Accounts: ledger.AccountMapping{
			DebitAccount:    p.Accounts.DebitAccount,
			CreditAccount:   p.Accounts.CreditAccount,
			TransactionType: p.Accounts.TransactionType,
			PayeeName:       p.Accounts.PayeeName,
		},
		MemoTemplate:    p.MemoTemplate,
		Transformations: p.Transformations,
	}

	if opts.Layout, err = layoutFromProfile(p.Layout); err != nil {
		return Options{}, err
	}
	if opts.Columns, err = columnsFromProfile(p.Columns); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func layoutFromProfile(s config.LayoutSettings) (layout.Layout, error) {
	var l layout.Layout

	switch s.Start.Strategy {
	case config.StartFixedOffset, "":
		l.Start = layout.FixedOffset(s.Start.Offset)
	case config.StartMarkerScan:
		if s.Start.Column == nil {
			return l, fmt.Errorf("layout.start.column is required for marker_scan")
		}
		l.Start = layout.MarkerScan(s.Start.Column.Index, s.Start.Pattern)
	default:
		return l, fmt.Errorf("unknown start strategy %q", s.Start.Strategy)
	}

	switch s.Header.Kind {
	case config.HeaderNone, "":
		l.Header.Kind = layout.NoHeader
	case config.HeaderSingle:
		l.Header.Kind = layout.SingleHeader
	case config.HeaderComposite:
		l.Header.Kind = layout.CompositeHeader
	default:
		return l, fmt.Errorf("unknown header kind %q", s.Header.Kind)
	}
	l.Header.Row = s.Header.Row
	l.Header.Relative = s.Header.Relative

	l.End.BlankRow = s.End.StopsOnBlankRow()
	l.End.DiscriminantMismatch = s.End.DiscriminantMismatch
	if s.End.OnMismatch == config.MismatchSkip {
		l.End.OnMismatch = layout.SkipOnMismatch
	}
	if d := s.Discriminant; d != nil {
		// -1 leaves the column to the column map.
		column := -1
		switch {
		case d.Column != nil:
			column = d.Column.Index
		case l.Start.Kind == layout.StartMarkerScan:
			column = l.Start.Column
		}
		l.End.Discriminant = &layout.Discriminant{Column: column, Pattern: d.Pattern}
	}

	return l, nil
}

func columnsFromProfile(s config.ColumnSettings) (columns.Mapping, error) {
	switch s.Strategy {
	case config.ColumnsFixedIndex, "":
		m := columns.Mapping{Kind: columns.FixedIndex, Indexes: make(map[columns.Field]int)}
		for field, ref := range s.FixedIndex {
			if !columns.Known(columns.Field(field)) {
				return columns.Mapping{}, fmt.Errorf("unknown column field %q", field)
			}
			m.Indexes[columns.Field(field)] = ref.Index
		}
		return m, nil
	case config.ColumnsNameMatch:
		m := columns.Mapping{Kind: columns.NameMatch, Names: make(map[columns.Field]string)}
		for field, name := range s.NameMatch {
			if !columns.Known(columns.Field(field)) {
				return columns.Mapping{}, fmt.Errorf("unknown column field %q", field)
			}
			m.Names[columns.Field(field)] = name
		}
		return m, nil
	default:
		return columns.Mapping{}, fmt.Errorf("unknown column strategy %q", s.Strategy)
	}
}

// parseDelimiter accepts a single character or the word "tab".
func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("csv delimiter must be a single character, got %q", s)
	}
	return r, nil
}
