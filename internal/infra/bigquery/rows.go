package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/shopspring/decimal"
)

// Table names inside the configured dataset.
const (
	runsTable         = "reconciliation_runs"
	transactionsTable = "transactions"
	removedRowsTable  = "removed_rows"
	matchesTable      = "matched_deposits"
	issuesTable       = "issues"
	keywordRulesTable = "keyword_rules"
)

type RunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	Partitions []string `bigquery:"partitions"` // REPEATED STRING

	TransactionCount int64 `bigquery:"transaction_count"`
	RemovedCount     int64 `bigquery:"removed_count"`
	PairCount        int64 `bigquery:"pair_count"`
	IssueCount       int64 `bigquery:"issue_count"`

	TotalPaidIn    *big.Rat `bigquery:"total_paid_in,nullable"`   // NUMERIC
	TotalWithdrawn *big.Rat `bigquery:"total_withdrawn,nullable"` // NUMERIC
}

type TransactionRow struct {
	RunID      string `bigquery:"run_id"`      // REQUIRED
	RowOrdinal int64  `bigquery:"row_ordinal"` // REQUIRED

	SourcePartition string `bigquery:"source_partition"`
	SourceRow       int64  `bigquery:"source_row"`

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED

	PaidIn    *big.Rat `bigquery:"paid_in,nullable"`   // NUMERIC, NULL when absent
	Withdrawn *big.Rat `bigquery:"withdrawn,nullable"` // NUMERIC, NULL when absent
	Balance   *big.Rat `bigquery:"balance,nullable"`   // NUMERIC

	Notes       bigquery.NullString `bigquery:"notes"`       // NULLABLE
	Subcategory bigquery.NullString `bigquery:"subcategory"` // NULLABLE
}

type RemovedRowRecord struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	SourcePartition string `bigquery:"source_partition"`
	SourceRow       int64  `bigquery:"source_row"`

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE, unset for unparseable dates
	RawDate         string            `bigquery:"raw_date"`
	Description     string            `bigquery:"description"`

	PaidIn    *big.Rat `bigquery:"paid_in,nullable"`
	Withdrawn *big.Rat `bigquery:"withdrawn,nullable"`

	Reason string `bigquery:"reason"` // REQUIRED
	Detail string `bigquery:"detail"`
}

type MatchRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	Amount      *big.Rat `bigquery:"amount"` // NUMERIC
	DaysBetween int64    `bigquery:"days_between"`

	DepositDate        civil.Date `bigquery:"deposit_date"`
	DepositDescription string     `bigquery:"deposit_description"`
	ReturnDate         civil.Date `bigquery:"return_date"`
	ReturnDescription  string     `bigquery:"return_description"`
}

type IssueRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	RowOrdinal      int64  `bigquery:"row_ordinal"`
	SourcePartition string `bigquery:"source_partition"`
	Description     string `bigquery:"description"`
	Kind            string `bigquery:"kind"` // REQUIRED
	Detail          string `bigquery:"detail"`
}

type KeywordRuleRow struct {
	Keyword     string            `bigquery:"keyword"`     // REQUIRED
	Subcategory string            `bigquery:"subcategory"` // REQUIRED
	IsActive    bigquery.NullBool `bigquery:"is_active"`   // NULLABLE, NULL counts as active
}

// NewRunRow builds the run record for a finished pipeline result.
func NewRunRow(res *pipeline.RunResult, status string, runErr error) *RunRow {
	totals := res.Totals()
	row := &RunRow{
		RunID:            res.RunID,
		StartedTS:        res.StartedAt,
		Status:           status,
		ErrorMessage:     truncateError(runErr),
		TransactionCount: int64(len(res.Transactions)),
		RemovedCount:     int64(len(res.Removed) + len(res.Excluded)),
		PairCount:        int64(len(res.Pairs)),
		IssueCount:       int64(len(res.Issues)),
		TotalPaidIn:      totals.PaidIn.Rat(),
		TotalWithdrawn:   totals.Withdrawn.Rat(),
	}
	for _, p := range res.Partitions {
		row.Partitions = append(row.Partitions, p.Name)
	}
	if !res.FinishedAt.IsZero() {
		row.FinishedTS = bigquery.NullTimestamp{Timestamp: res.FinishedAt, Valid: true}
	}
	return row
}

// TransactionRows maps the valid transactions of a run.
func TransactionRows(res *pipeline.RunResult) []*TransactionRow {
	rows := make([]*TransactionRow, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		rows = append(rows, &TransactionRow{
			RunID:           res.RunID,
			RowOrdinal:      int64(tx.RowOrdinal),
			SourcePartition: tx.SourcePartition,
			SourceRow:       int64(tx.SourceRow),
			TransactionDate: tx.Date,
			Description:     tx.Description,
			PaidIn:          ratOrNil(tx.PaidIn),
			Withdrawn:       ratOrNil(tx.Withdrawn),
			Balance:         tx.Balance.Rat(),
			Notes:           nullString(tx.Notes),
			Subcategory:     nullString(tx.Subcategory),
		})
	}
	return rows
}

// RemovedRowRecords maps normalizer removals and exclusions of a run.
func RemovedRowRecords(res *pipeline.RunResult) []*RemovedRowRecord {
	removed := res.AllRemoved()
	rows := make([]*RemovedRowRecord, 0, len(removed))
	for _, r := range removed {
		rows = append(rows, &RemovedRowRecord{
			RunID:           res.RunID,
			SourcePartition: r.SourcePartition,
			SourceRow:       int64(r.SourceRow),
			TransactionDate: bigquery.NullDate{Date: r.Date, Valid: !r.Date.IsZero()},
			RawDate:         r.RawDate,
			Description:     r.Description,
			PaidIn:          ratOrNil(r.PaidIn),
			Withdrawn:       ratOrNil(r.Withdrawn),
			Reason:          string(r.Reason),
			Detail:          r.Detail,
		})
	}
	return rows
}

// MatchRows maps the matched deposit pairs of a run.
func MatchRows(res *pipeline.RunResult) []*MatchRow {
	rows := make([]*MatchRow, 0, len(res.Pairs))
	for _, p := range res.Pairs {
		rows = append(rows, &MatchRow{
			RunID:              res.RunID,
			Amount:             p.Amount.Rat(),
			DaysBetween:        int64(p.DaysBetween),
			DepositDate:        p.DepositDate,
			DepositDescription: p.DepositDescription,
			ReturnDate:         p.ReturnDate,
			ReturnDescription:  p.ReturnDescription,
		})
	}
	return rows
}

// IssueRows maps the issues of a run.
func IssueRows(res *pipeline.RunResult) []*IssueRow {
	rows := make([]*IssueRow, 0, len(res.Issues))
	for _, is := range res.Issues {
		rows = append(rows, &IssueRow{
			RunID:           res.RunID,
			RowOrdinal:      int64(is.RowOrdinal),
			SourcePartition: is.Partition,
			Description:     is.Description,
			Kind:            string(is.Kind),
			Detail:          is.Detail,
		})
	}
	return rows
}

func ratOrNil(d decimal.Decimal) *big.Rat {
	if d.IsZero() {
		return nil
	}
	return d.Rat()
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > domain.MaxIssueDetailBytes {
		msg = msg[:domain.MaxIssueDetailBytes]
	}
	return msg
}
