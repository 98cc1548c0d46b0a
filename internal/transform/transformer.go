// =============================================================================
// Cash Sales IIF Converter - Transformation Engine
// =============================================================================
//
// This module rewrites identifier fields (till number, bill number) before a
// record is created. Statement exports often carry identifiers in a slightly
// different shape than the accounting package expects: missing prefixes,
// stripped zeros, branch codes that need translating.
//
// TRANSFORMATION TYPES:
//   - String manipulations (prepend, append, trim, case conversion, replace)
//   - Length handling (zero padding, ensure length, leading zero removal)
//   - Lookup table replacements
//   - Regular expression replacements and digit extraction
//
// Rules come from the profile's "transformations" list; actions of a rule are
// applied in order.
//
// =============================================================================

package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/cash-iif-converter/internal/config"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer handles field value transformations.
type Transformer struct {
	rules map[string][]config.TransformationAction
}

// New creates a Transformer from profile rules. Rules naming the same field
// are applied one after the other. Unknown action types and bad regular
// expressions are rejected up front.
func New(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{rules: make(map[string][]config.TransformationAction)}
	for _, rule := range rules {
		for _, action := range rule.Actions {
			if err := check(action); err != nil {
				return nil, fmt.Errorf("field %s: %w", rule.Field, err)
			}
		}
		t.rules[rule.Field] = append(t.rules[rule.Field], rule.Actions...)
	}
	return t, nil
}

// Transform applies every action configured for the field.
//
// PARAMETERS:
//   - field: The canonical field name (e.g. "bill_number").
//   - value: The current, already trimmed value.
//
// RETURNS:
//   - The transformed value.
//   - An error if any action fails.
func (t *Transformer) Transform(field, value string) (string, error) {
	if t == nil {
		return value, nil
	}

	result := value
	for _, action := range t.rules[field] {
		var err error
		result, err = Apply(result, action)
		if err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", action.Type, err)
		}
	}
	return result, nil
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

var digits = regexp.MustCompile(`\d+`)

// Apply applies a single transformation action.
//
// SUPPORTED TRANSFORMATIONS:
//   See the switch statement below for all supported transformation types.
func Apply(value string, action config.TransformationAction) (string, error) {
	switch action.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		// EXAMPLE: "1001" with value "B-" -> "B-1001"
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		// EXAMPLE: "TILL-05" with find "^TILL-0*" and value "" -> "5"
		if action.Find == "" {
			return value, nil
		}
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return "", fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.ReplaceAllString(value, action.Value), nil

	case "extract_digits":
		// EXAMPLE: "BL/2024/001001" -> "2024001001"
		return strings.Join(digits.FindAllString(value, -1), ""), nil

	// =========================================================================
	// LENGTH HANDLING
	// =========================================================================

	case "pad_zeros_to_length":
		// EXAMPLE: "1001" with value "6" -> "001001"
		n, err := length(action.Value)
		if err != nil {
			return "", err
		}
		return PadLeft(value, n, '0'), nil

	case "ensure_length":
		// Truncate from the right, or pad with leading zeros.
		n, err := length(action.Value)
		if err != nil {
			return "", err
		}
		if len(value) > n {
			return value[:n], nil
		}
		return PadLeft(value, n, '0'), nil

	case "remove_leading_zeros":
		result := strings.TrimLeft(value, "0")
		if result == "" && value != "" {
			return "0", nil
		}
		return result, nil

	// =========================================================================
	// LOOKUP TABLE REPLACEMENTS
	// =========================================================================

	case "lookup":
		// Values missing from the table pass through unchanged.
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return action.Value, nil

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// check validates an action without a value to transform.
func check(action config.TransformationAction) error {
	switch action.Type {
	case "pad_zeros_to_length", "ensure_length":
		_, err := length(action.Value)
		return err
	case "regex_replace":
		if _, err := regexp.Compile(action.Find); err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		return nil
	}
	_, err := Apply("", action)
	return err
}

func length(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	return n, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// PadLeft pads a string with a character on the left to reach the target length.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
