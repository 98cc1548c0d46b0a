// =============================================================================
// Cash Sales IIF Converter - IIF Writer Module
// =============================================================================
//
// This module renders ledger transactions as an Intuit Interchange Format
// document. The consumer reads the file positionally, so every line keeps its
// field count even when trailing fields are empty.
//
// DOCUMENT STRUCTURE:
//
//   !TRNS  TRNSTYPE DATE ACCNT NAME MEMO AMOUNT DOCNUM        <- preamble
//   !SPL   TRNSTYPE DATE ACCNT NAME MEMO AMOUNT QNTY INVITEM
//   !ENDTRNS
//   TRNS   CASH 05/01/2024 Cash in Drawer      Walk In memo  100.00 1001
//   SPL    CASH 05/01/2024 Accounts Receivable Walk In memo -100.00 (empty) (empty)
//   ENDTRNS
//
// Fields are separated by a single tab and lines end with "\n". Dates are
// MM/DD/YYYY and amounts carry exactly two decimals.
//
// =============================================================================

package iif

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/cash-iif-converter/internal/ledger"
)

// Preamble is the fixed schema header of every document.
const Preamble = "!TRNS\tTRNSTYPE\tDATE\tACCNT\tNAME\tMEMO\tAMOUNT\tDOCNUM\n" +
	"!SPL\tTRNSTYPE\tDATE\tACCNT\tNAME\tMEMO\tAMOUNT\tQNTY\tINVITEM\n" +
	"!ENDTRNS\n"

// SerializationError is returned when a transaction does not balance. No
// output is produced in that case.
type SerializationError struct {
	Index       int
	ReferenceID string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize iif: transaction %d (ref %q) does not balance: debit %s, credit %s",
		e.Index, e.ReferenceID, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize renders the whole document in memory.
//
// PARAMETERS:
//   - txns: Composed transactions, in output order.
//
// RETURNS:
//   - The document bytes (preamble only when txns is empty).
//   - A *SerializationError if any transaction is unbalanced.
func Serialize(txns []ledger.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, txns); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write checks every transaction before writing the first byte to w.
func Write(w io.Writer, txns []ledger.Transaction) error {
	for i, txn := range txns {
		if !txn.Balanced() {
			return &SerializationError{
				Index:       i,
				ReferenceID: txn.ReferenceID,
				Debit:       txn.Debit.Amount,
				Credit:      txn.Credit.Amount,
			}
		}
	}

	var b strings.Builder
	b.WriteString(Preamble)
	for _, txn := range txns {
		writeTransaction(&b, txn)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write iif: %w", err)
	}
	return nil
}

func writeTransaction(b *strings.Builder, txn ledger.Transaction) {
	date := FormatDate(txn.Date)
	kind := sanitize(txn.Type)
	name := sanitize(txn.Payee)
	memo := sanitize(txn.Memo)

	writeLine(b, "TRNS", kind, date, sanitize(txn.Debit.Account), name, memo,
		FormatAmount(txn.Debit.Amount), sanitize(txn.ReferenceID))
	writeLine(b, "SPL", kind, date, sanitize(txn.Credit.Account), name, memo,
		FormatAmount(txn.Credit.Amount), "", "")
	writeLine(b, "ENDTRNS")
}

func writeLine(b *strings.Builder, fields ...string) {
	b.WriteString(strings.Join(fields, "\t"))
	b.WriteByte('\n')
}

// FormatDate renders MM/DD/YYYY.
func FormatDate(d civil.Date) string { return ledger.FormatDate(d) }

// FormatAmount renders exactly two decimals, e.g. "100.00" or "-12.50".
func FormatAmount(d decimal.Decimal) string { return d.StringFixed(2) }

// sanitize trims a field, drops embedded tabs and line breaks and turns
// other control characters into spaces.
func sanitize(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		if r == '\r' || r == '\n' || r == '\t' {
			continue
		}
		if r < 32 || r == 0x7f {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
