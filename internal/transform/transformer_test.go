package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/cash-iif-converter/internal/config"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		action config.TransformationAction
		want   string
	}{
		{name: "prepend", value: "1001", action: config.TransformationAction{Type: "prepend_string", Value: "B-"}, want: "B-1001"},
		{name: "append", value: "1001", action: config.TransformationAction{Type: "append_string", Value: "/A"}, want: "1001/A"},
		{name: "pad zeros", value: "1001", action: config.TransformationAction{Type: "pad_zeros_to_length", Value: "6"}, want: "001001"},
		{name: "pad zeros longer input", value: "1234567", action: config.TransformationAction{Type: "pad_zeros_to_length", Value: "6"}, want: "1234567"},
		{name: "ensure length truncates", value: "1234567", action: config.TransformationAction{Type: "ensure_length", Value: "4"}, want: "1234"},
		{name: "ensure length pads", value: "12", action: config.TransformationAction{Type: "ensure_length", Value: "4"}, want: "0012"},
		{name: "remove leading zeros", value: "000123", action: config.TransformationAction{Type: "remove_leading_zeros"}, want: "123"},
		{name: "remove leading zeros all zero", value: "000", action: config.TransformationAction{Type: "remove_leading_zeros"}, want: "0"},
		{name: "replace", value: "T-05", action: config.TransformationAction{Type: "replace", Find: "T-", Value: ""}, want: "05"},
		{name: "regex replace", value: "TILL-005", action: config.TransformationAction{Type: "regex_replace", Find: "^TILL-0*", Value: ""}, want: "5"},
		{name: "extract digits", value: "BL/2024/001", action: config.TransformationAction{Type: "extract_digits"}, want: "2024001"},
		{name: "uppercase", value: "ab", action: config.TransformationAction{Type: "uppercase"}, want: "AB"},
		{name: "lookup hit", value: "01", action: config.TransformationAction{Type: "lookup", LookupTable: map[string]string{"01": "Front"}}, want: "Front"},
		{name: "lookup miss", value: "02", action: config.TransformationAction{Type: "lookup", LookupTable: map[string]string{"01": "Front"}}, want: "02"},
		{name: "lookup default", value: "02", action: config.TransformationAction{Type: "lookup_with_default", Value: "Other", LookupTable: map[string]string{"01": "Front"}}, want: "Other"},
		{name: "empty default", value: "", action: config.TransformationAction{Type: "if_empty_use_default", Value: "0"}, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.value, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransformChainsRulesInOrder(t *testing.T) {
	tr, err := New([]config.TransformationRule{
		{Field: "bill_number", Actions: []config.TransformationAction{
			{Type: "extract_digits"},
			{Type: "pad_zeros_to_length", Value: "6"},
		}},
		{Field: "bill_number", Actions: []config.TransformationAction{
			{Type: "prepend_string", Value: "B"},
		}},
	})
	require.NoError(t, err)

	got, err := tr.Transform("bill_number", "No. 1001")
	require.NoError(t, err)
	assert.Equal(t, "B001001", got)

	got, err = tr.Transform("till_number", "5")
	require.NoError(t, err)
	assert.Equal(t, "5", got, "fields without rules pass through")
}

func TestNewRejectsBadActions(t *testing.T) {
	tests := []config.TransformationAction{
		{Type: "explode"},
		{Type: "pad_zeros_to_length", Value: "six"},
		{Type: "regex_replace", Find: "("},
	}
	for _, action := range tests {
		_, err := New([]config.TransformationRule{{Field: "till_number", Actions: []config.TransformationAction{action}}})
		assert.Error(t, err, action.Type)
	}
}

func TestNilTransformerPassesThrough(t *testing.T) {
	var tr *Transformer
	got, err := tr.Transform("bill_number", "1001")
	require.NoError(t, err)
	assert.Equal(t, "1001", got)
}
