package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Labels written into Notes/Subcategory by the categorization stages.
const (
	LabelDeposit        = "Deposit"
	LabelDepositReturn  = "Deposit Return"
	NoteDeposit         = "DEPOSIT"
	NoteDepositReturn   = "DEPOSIT RETURN"
	NoteMatchedSuffix   = " (Matched)"
	NoteDuplicate       = "Duplicate Transaction"
	LabelIgnore         = "Ignore These"
	LabelJoinDelimiter  = " | "
	ExportDateLayout    = "02/01/2006"
	MaxIssueDetailBytes = 2000
)

// Transaction represents one ledger entry after normalization.
// Every downstream stage works on this struct, never on raw worksheet rows.
type Transaction struct {
	Date        civil.Date
	Description string
	PaidIn      decimal.Decimal // zero when absent
	Withdrawn   decimal.Decimal // zero when absent
	Balance     decimal.Decimal // running balance as stated by the source

	Notes       string
	Subcategory string

	SourcePartition string
	SourceRow       int // 1-based row in the source worksheet
	RowOrdinal      int // position in the merged run table

	// Duplicate is set by the duplicate detector; later stages leave such rows alone.
	Duplicate bool
}

// FlowAmount returns the amount that moved, preferring PaidIn.
// ok is false when both PaidIn and Withdrawn are non-zero.
func (t *Transaction) FlowAmount() (amount decimal.Decimal, ok bool) {
	switch {
	case !t.PaidIn.IsZero() && !t.Withdrawn.IsZero():
		return decimal.Zero, false
	case !t.PaidIn.IsZero():
		return t.PaidIn, true
	default:
		return t.Withdrawn, true
	}
}

// FormatDate renders the date the way statement exports show it (DD/MM/YYYY).
func (t *Transaction) FormatDate() string {
	return FormatDate(t.Date)
}

// FormatDate renders a civil date as DD/MM/YYYY; the zero date renders empty.
func FormatDate(d civil.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.In(time.UTC).Format(ExportDateLayout)
}
