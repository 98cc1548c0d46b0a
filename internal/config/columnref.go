package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/cash-iif-converter/internal/layout"
)

// ColumnRef is a worksheet column given either as a letter ("E", "AA") or
// as a 0-based index (4).
type ColumnRef struct {
	Index int
	Label string
}

// ParseColumnRef converts a letter or a decimal index into a ColumnRef.
func ParseColumnRef(s string) (ColumnRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ColumnRef{}, fmt.Errorf("empty column reference")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return ColumnRef{}, fmt.Errorf("column index %d is negative", n)
		}
		return ColumnRef{Index: n, Label: s}, nil
	}
	n, err := excelize.ColumnNameToNumber(strings.ToUpper(s))
	if err != nil {
		return ColumnRef{}, fmt.Errorf("invalid column %q: %w", s, err)
	}
	return ColumnRef{Index: n - 1, Label: strings.ToUpper(s)}, nil
}

// UnmarshalYAML accepts scalars only.
func (c *ColumnRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column must be a letter or an index", node.Line)
	}
	ref, err := ParseColumnRef(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = ref
	return nil
}

func (c ColumnRef) String() string {
	if c.Label != "" {
		return c.Label
	}
	return strconv.Itoa(c.Index)
}

// checkPattern compiles pattern the way layout detection will.
func checkPattern(pattern string) error {
	_, err := layout.CompilePattern(pattern)
	return err
}
