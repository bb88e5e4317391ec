package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// IssueKind classifies an advisory diagnostic.
type IssueKind string

const (
	IssueMultipleCategories           IssueKind = "Multiple Categories"
	IssueNonStandardAmountWithKeyword IssueKind = "Non-standard amount with deposit keyword"
	IssueQuickReturn                  IssueKind = "Quick Return"
	IssueDelayedReturn                IssueKind = "Delayed Return"
	IssueProcessingError              IssueKind = "Processing Error"
)

// Issue is an append-only diagnostic record. Issues never remove or block a row.
type Issue struct {
	RowOrdinal  int
	Partition   string
	Description string
	Kind        IssueKind
	Detail      string
}

// NewIssue builds an issue for the given transaction.
func NewIssue(tx *Transaction, kind IssueKind, detail string) Issue {
	if len(detail) > MaxIssueDetailBytes {
		detail = detail[:MaxIssueDetailBytes]
	}
	return Issue{
		RowOrdinal:  tx.RowOrdinal,
		Partition:   tx.SourcePartition,
		Description: tx.Description,
		Kind:        kind,
		Detail:      detail,
	}
}

// Direction tells deposit candidates from return candidates.
type Direction string

const (
	DirectionDeposit Direction = "Deposit"
	DirectionReturn  Direction = "Return"
)

// MatchCandidate is a transaction tentatively classified as a deposit or a return.
type MatchCandidate struct {
	Amount    decimal.Decimal
	Direction Direction
	Index     int // index into the reconciled transaction slice
	Date      civil.Date
	Ordinal   int
}

// MatchedPair links a deposit to the return that refunded it.
type MatchedPair struct {
	DepositIndex int
	ReturnIndex  int
	Amount       decimal.Decimal
	DaysBetween  int

	DepositDate        civil.Date
	DepositDescription string
	ReturnDate         civil.Date
	ReturnDescription  string
}
