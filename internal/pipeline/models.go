package pipeline

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// Run statuses recorded by sinks that track runs.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// PartitionStats describes how one partition went through ingestion.
type PartitionStats struct {
	Name         string
	RowsRead     int
	Transactions int
	Removed      int
	Err          string
}

// RunResult holds every table produced by one reconciliation run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Partitions      []PartitionStats
	PartitionErrors []domain.PartitionError

	// Transactions are the valid rows after every stage, sorted by date.
	Transactions    []*domain.Transaction
	Removed         []domain.RemovedRow
	Excluded        []domain.ExcludedTransaction
	ExclusionCounts map[domain.ExclusionReason]int

	Categorize      CategorizeSummary
	DuplicatesFound int

	Pairs             []domain.MatchedPair
	UnmatchedDeposits []*domain.Transaction
	UnmatchedReturns  []*domain.Transaction
	Miscellaneous     []*domain.Transaction
	DepositCandidates int
	ReturnCandidates  int

	Issues []domain.Issue
}

// AllRemoved returns normalizer removals followed by exclusions, in the
// removed-row shape used for export.
func (r *RunResult) AllRemoved() []domain.RemovedRow {
	out := make([]domain.RemovedRow, 0, len(r.Removed)+len(r.Excluded))
	out = append(out, r.Removed...)
	for _, e := range r.Excluded {
		out = append(out, e.AsRemovedRow())
	}
	return out
}

// Totals aggregates money and date range over the valid transactions.
type Totals struct {
	Count     int
	PaidIn    decimal.Decimal
	Withdrawn decimal.Decimal
	Net       decimal.Decimal
	From      civil.Date
	To        civil.Date
}

// Totals sums the valid transactions.
func (r *RunResult) Totals() Totals {
	t := Totals{PaidIn: decimal.Zero, Withdrawn: decimal.Zero}
	for _, tx := range r.Transactions {
		t.Count++
		t.PaidIn = t.PaidIn.Add(tx.PaidIn)
		t.Withdrawn = t.Withdrawn.Add(tx.Withdrawn)
		if t.From.IsZero() || tx.Date.Before(t.From) {
			t.From = tx.Date
		}
		if t.To.IsZero() || tx.Date.After(t.To) {
			t.To = tx.Date
		}
	}
	t.Net = t.PaidIn.Sub(t.Withdrawn)
	return t
}
