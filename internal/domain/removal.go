package domain

// RemovalReason says why the normalizer dropped a row.
type RemovalReason string

const (
	RemovalBalanceForward         RemovalReason = "Balance Forward"
	RemovalKnownRecurringTransfer RemovalReason = "Known Recurring Transfer"
	RemovalEmptyRow               RemovalReason = "Empty Row"
	RemovalInvalidDate            RemovalReason = "Invalid Date"
	RemovalExclusionRule          RemovalReason = "Exclusion Rule"
)

// ParseRemovalReason maps a configured reason name onto a RemovalReason.
// Matching ignores case, spaces and underscores.
func ParseRemovalReason(s string) (RemovalReason, bool) {
	key := compactKey(s)
	for _, r := range []RemovalReason{
		RemovalBalanceForward,
		RemovalKnownRecurringTransfer,
		RemovalEmptyRow,
		RemovalInvalidDate,
		RemovalExclusionRule,
	} {
		if compactKey(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

// RemovedRow is a row that left the valid set. It never re-enters it.
type RemovedRow struct {
	Transaction
	RawDate string // the unparsed date cell, kept for InvalidDate rows
	Reason  RemovalReason
	Detail  string
}

// ExclusionReason says why the exclusion classifier set a transaction aside.
type ExclusionReason string

const (
	ExclusionEmptyTransaction ExclusionReason = "Empty Transaction"
	ExclusionMarkedForIgnore  ExclusionReason = "Marked for Ignore"
	ExclusionBroughtForward   ExclusionReason = "Brought Forward"
	ExclusionClosingBalance   ExclusionReason = "Closing Balance"
)

// ExclusionReasons lists the reasons in evaluation order.
var ExclusionReasons = []ExclusionReason{
	ExclusionEmptyTransaction,
	ExclusionMarkedForIgnore,
	ExclusionBroughtForward,
	ExclusionClosingBalance,
}

// ExcludedTransaction is a valid transaction the classifier set aside.
type ExcludedTransaction struct {
	Transaction
	Reason ExclusionReason
}

// AsRemovedRow converts an exclusion into the removed-row export shape.
func (e ExcludedTransaction) AsRemovedRow() RemovedRow {
	return RemovedRow{
		Transaction: e.Transaction,
		Reason:      RemovalExclusionRule,
		Detail:      string(e.Reason),
	}
}

func compactKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r == ' ' || r == '_' || r == '-':
			continue
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
