package columns

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFixedIndex(t *testing.T) {
	m := Mapping{Kind: FixedIndex, Indexes: map[Field]int{
		TillNumber: 4,
		BillDate:   9,
		BillNumber: 15,
		Amount:     25,
	}}

	got, err := Resolve(nil, m)
	require.NoError(t, err)
	assert.Equal(t, Map{TillNumber: 4, BillDate: 9, BillNumber: 15, Amount: 25}, got)
}

func TestResolveFixedIndexTillIsOptional(t *testing.T) {
	m := Mapping{Kind: FixedIndex, Indexes: map[Field]int{BillDate: 0, BillNumber: 1, Amount: 2}}

	got, err := Resolve(nil, m)
	require.NoError(t, err)
	_, ok := got.Column(TillNumber)
	assert.False(t, ok)
}

func TestResolveNameMatch(t *testing.T) {
	labels := []string{"", "Till No.", "Bill Date", "Bill No.", "Net Amount", "Gross Amount"}
	m := Mapping{Kind: NameMatch, Names: map[Field]string{
		TillNumber: "till",
		BillDate:   "bill date",
		BillNumber: "BILL NO",
		Amount:     "amount",
	}}

	got, err := Resolve(labels, m)
	require.NoError(t, err)
	assert.Equal(t, 1, got[TillNumber])
	assert.Equal(t, 2, got[BillDate])
	assert.Equal(t, 3, got[BillNumber])
	assert.Equal(t, 4, got[Amount], "first match in document order wins")
}

func TestResolveNameMatchIgnoresAccentsAndPunctuation(t *testing.T) {
	labels := []string{"Número da Nota", "Data-Emissão", "Valor (R$)"}
	m := Mapping{Kind: NameMatch, Names: map[Field]string{
		BillNumber: "numero",
		BillDate:   "data emissao",
		Amount:     "valor r",
	}}

	got, err := Resolve(labels, m)
	require.NoError(t, err)
	assert.Equal(t, Map{BillNumber: 0, BillDate: 1, Amount: 2}, got)
}

func TestResolveReportsEveryMissingField(t *testing.T) {
	labels := []string{"Till", "Bill Dt", "Receipt"}
	m := Mapping{Kind: NameMatch, Names: map[Field]string{
		TillNumber: "till",
		BillDate:   "bill date",
		BillNumber: "bill no",
		Amount:     "amount",
	}}

	_, err := Resolve(labels, m)
	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Field{BillDate, BillNumber, Amount}, missing.Fields)
	assert.Equal(t, "Bill Dt", missing.Suggestions[BillDate])
	assert.Contains(t, err.Error(), "bill_date")
	assert.Contains(t, err.Error(), "bill_number")
	assert.Contains(t, err.Error(), "amount")
	assert.NotContains(t, err.Error(), "till_number")
}

func TestResolveFixedIndexMissingMandatory(t *testing.T) {
	_, err := Resolve(nil, Mapping{Kind: FixedIndex, Indexes: map[Field]int{TillNumber: 0, Amount: 3}})

	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Field{BillDate, BillNumber}, missing.Fields)
	assert.Empty(t, missing.Suggestions)
}

func TestResolveDiscriminant(t *testing.T) {
	labels := []string{"Tender Type", "Till", "Bill Date", "Bill No", "Amount"}

	got, err := Resolve(labels, Mapping{Kind: NameMatch, Names: map[Field]string{
		BillDate:     "bill date",
		BillNumber:   "bill no",
		Amount:       "amount",
		Discriminant: "tender",
	}})
	require.NoError(t, err)
	assert.Equal(t, Map{BillDate: 2, BillNumber: 3, Amount: 4, Discriminant: 0}, got)

	got, err = Resolve(nil, Mapping{Kind: FixedIndex, Indexes: map[Field]int{
		BillDate: 1, BillNumber: 2, Amount: 3, Discriminant: 0,
	}})
	require.NoError(t, err)
	col, ok := got.Column(Discriminant)
	require.True(t, ok)
	assert.Equal(t, 0, col)
}

func TestResolveConfiguredDiscriminantMustResolve(t *testing.T) {
	labels := []string{"Till", "Bill Date", "Bill No", "Amount"}

	_, err := Resolve(labels, Mapping{Kind: NameMatch, Names: map[Field]string{
		TillNumber:   "register",
		BillDate:     "bill date",
		BillNumber:   "bill no",
		Amount:       "amount",
		Discriminant: "tender",
	}})
	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Field{Discriminant}, missing.Fields, "an unmatched till number stays optional")
}

func TestKnown(t *testing.T) {
	for _, f := range All {
		assert.True(t, Known(f), f)
	}
	assert.False(t, Known("payee"))
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Bill   No. ": "BILL NO",
		"Date/Time":     "DATE TIME",
		"Émission":      "EMISSION",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}
