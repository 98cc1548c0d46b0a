// =============================================================================
// Cash Sales IIF Converter - Ledger Composition Module
// =============================================================================
//
// This module turns accepted cash-sale records into balanced two-leg ledger
// transactions:
//
//   debit  leg: AccountMapping.DebitAccount   +amount
//   credit leg: AccountMapping.CreditAccount  -amount
//
// The amount is rounded exactly once, half-up to two decimals, and the credit
// leg is the negation of that rounded value. Records map 1:1 onto
// transactions in input order.
//
// =============================================================================

package ledger

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/cash-iif-converter/internal/extract"
)

// DefaultMemoTemplate is used when a profile does not set memo_template.
const DefaultMemoTemplate = "Till {till} - Bill {bill}"

// AccountMapping names the accounts and labels of every transaction. There is
// no implicit orientation: all four values must be configured.
type AccountMapping struct {
	DebitAccount    string
	CreditAccount   string
	TransactionType string
	PayeeName       string
}

// Validate reports the first missing or conflicting value.
func (m AccountMapping) Validate() error {
	switch {
	case strings.TrimSpace(m.DebitAccount) == "":
		return fmt.Errorf("account mapping: debit account is required")
	case strings.TrimSpace(m.CreditAccount) == "":
		return fmt.Errorf("account mapping: credit account is required")
	case strings.TrimSpace(m.TransactionType) == "":
		return fmt.Errorf("account mapping: transaction type is required")
	case strings.TrimSpace(m.PayeeName) == "":
		return fmt.Errorf("account mapping: payee name is required")
	case m.DebitAccount == m.CreditAccount:
		return fmt.Errorf("account mapping: debit and credit account are both %q", m.DebitAccount)
	}
	return nil
}

// Leg is one side of a transaction.
type Leg struct {
	Account string
	Amount  decimal.Decimal
}

// Transaction is a balanced cash receipt.
type Transaction struct {
	Date        civil.Date
	Type        string
	Payee       string
	Memo        string
	ReferenceID string
	Debit       Leg
	Credit      Leg

	// RowIndex is the grid row of the source record.
	RowIndex int
}

// Balanced reports whether both legs are whole cents and sum to exactly
// zero. A leg with finer precision is unbalanced even if it would round
// to its counterpart.
func (t Transaction) Balanced() bool {
	return isCents(t.Debit.Amount) && isCents(t.Credit.Amount) &&
		t.Debit.Amount.Add(t.Credit.Amount).IsZero()
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Composer builds transactions for one account mapping. It holds no per-run
// state.
type Composer struct {
	mapping AccountMapping
	memo    string
}

// NewComposer validates the mapping. An empty template falls back to
// DefaultMemoTemplate.
func NewComposer(mapping AccountMapping, memoTemplate string) (*Composer, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(memoTemplate) == "" {
		memoTemplate = DefaultMemoTemplate
	}
	return &Composer{mapping: mapping, memo: memoTemplate}, nil
}

// Compose produces exactly one transaction per record, preserving order.
func (c *Composer) Compose(records []extract.CashSaleRecord) []Transaction {
	txns := make([]Transaction, 0, len(records))
	for _, r := range records {
		txns = append(txns, c.compose(r))
	}
	return txns
}

func (c *Composer) compose(r extract.CashSaleRecord) Transaction {
	amount := r.Amount.Round(2)
	return Transaction{
		Date:        r.BillDate,
		Type:        c.mapping.TransactionType,
		Payee:       c.mapping.PayeeName,
		Memo:        RenderMemo(c.memo, r.TillNumber, r.BillNumber, r.BillDate, amount),
		ReferenceID: r.BillNumber,
		Debit:       Leg{Account: c.mapping.DebitAccount, Amount: amount},
		Credit:      Leg{Account: c.mapping.CreditAccount, Amount: amount.Neg()},
		RowIndex:    r.RowIndex,
	}
}

// RenderMemo fills {till}, {bill}, {date} (MM/DD/YYYY) and {amount}.
func RenderMemo(template, till, bill string, date civil.Date, amount decimal.Decimal) string {
	return strings.NewReplacer(
		"{till}", till,
		"{bill}", bill,
		"{date}", FormatDate(date),
		"{amount}", amount.StringFixed(2),
	).Replace(template)
}

// FormatDate renders a date as MM/DD/YYYY.
func FormatDate(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", int(d.Month), d.Day, d.Year)
}
