// Package columns binds canonical record fields to grid columns.
package columns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is a canonical record field.
type Field string

const (
	TillNumber Field = "till_number"
	BillDate   Field = "bill_date"
	BillNumber Field = "bill_number"
	Amount     Field = "amount"

	// Discriminant is the column whose value tells target rows (cash
	// sales) from other rows. It drives the layout end policy and is
	// never extracted into a record.
	Discriminant Field = "discriminant"
)

// Mandatory fields must resolve for a run to proceed. TillNumber is optional.
var Mandatory = []Field{BillDate, BillNumber, Amount}

// All lists every field in canonical order. Resolution walks this list, so
// maps and errors come out in the same order on every run.
var All = []Field{TillNumber, BillDate, BillNumber, Amount, Discriminant}

// Known reports whether f is a canonical field.
func Known(f Field) bool {
	for _, known := range All {
		if f == known {
			return true
		}
	}
	return false
}

// Kind selects the mapping strategy.
type Kind int

const (
	FixedIndex Kind = iota
	NameMatch
)

// Mapping is the configured column strategy.
type Mapping struct {
	Kind Kind

	// Indexes binds fields to 0-based column positions (FixedIndex).
	Indexes map[Field]int

	// Names binds fields to a required label substring (NameMatch).
	Names map[Field]string
}

// Map is a resolved field → column binding.
type Map map[Field]int

// Column returns the column bound to f.
func (m Map) Column(f Field) (int, bool) {
	col, ok := m[f]
	return col, ok
}

// MissingColumnError names every required field that did not resolve. It
// is fatal to the run.
type MissingColumnError struct {
	Fields []Field

	// Suggestions holds the closest header label per unresolved field, when
	// the sheet had a header.
	Suggestions map[Field]string
}

func (e *MissingColumnError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
		if s, ok := e.Suggestions[f]; ok && s != "" {
			names[i] += fmt.Sprintf(" (closest header: %q)", s)
		}
	}
	return "map columns: missing required columns: " + strings.Join(names, ", ")
}

// Resolve applies m to the header labels. labels may be nil for FixedIndex.
//
// Mandatory fields must resolve. A configured Discriminant must resolve as
// well, since the region bound depends on it. TillNumber may stay unbound.
func Resolve(labels []string, m Mapping) (Map, error) {
	resolved := make(Map)

	switch m.Kind {
	case FixedIndex:
		for _, f := range All {
			if col, ok := m.Indexes[f]; ok && col >= 0 {
				resolved[f] = col
			}
		}
	case NameMatch:
		normalized := make([]string, len(labels))
		for i, l := range labels {
			normalized[i] = Normalize(l)
		}
		for _, f := range All {
			needle := Normalize(m.Names[f])
			if needle == "" {
				continue
			}
			for col, label := range normalized {
				if strings.Contains(label, needle) {
					resolved[f] = col
					break
				}
			}
		}
	default:
		return nil, fmt.Errorf("map columns: unknown strategy %d", m.Kind)
	}

	required := Mandatory
	if m.configured(Discriminant) {
		required = append(append([]Field(nil), Mandatory...), Discriminant)
	}

	var missing []Field
	for _, f := range required {
		if _, ok := resolved[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Fields: missing, Suggestions: suggest(labels, m, missing)}
	}

	return resolved, nil
}

func (m Mapping) configured(f Field) bool {
	switch m.Kind {
	case FixedIndex:
		_, ok := m.Indexes[f]
		return ok
	case NameMatch:
		_, ok := m.Names[f]
		return ok
	}
	return false
}

// suggest finds, for each missing NameMatch field, the most similar
// non-empty header label.
func suggest(labels []string, m Mapping, missing []Field) map[Field]string {
	if m.Kind != NameMatch {
		return nil
	}
	var candidates []string
	original := make(map[string]string)
	for _, l := range labels {
		n := Normalize(l)
		if n == "" {
			continue
		}
		if _, seen := original[n]; !seen {
			candidates = append(candidates, n)
			original[n] = strings.TrimSpace(l)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Strings(candidates)

	cm := closestmatch.New(candidates, []int{2, 3})
	out := make(map[Field]string)
	for _, f := range missing {
		needle := Normalize(m.Names[f])
		if needle == "" {
			continue
		}
		if best := cm.Closest(needle); best != "" {
			out[f] = original[best]
		}
	}
	return out
}

var (
	nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9 ]+`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// Normalize folds a header label for comparison: accents are stripped,
// letters upper-cased and punctuation collapsed to single spaces.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	result = strings.ToUpper(result)
	result = nonAlphanumeric.ReplaceAllString(result, " ")
	result = whitespace.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
