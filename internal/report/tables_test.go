package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/tabular"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *pipeline.RunResult {
	jan := func(day int) civil.Date { return civil.Date{Year: 2024, Month: 1, Day: day} }
	dep := &domain.Transaction{
		Date: jan(1), Description: "DEPOSIT FROM TENANT", PaidIn: decimal.NewFromInt(50),
		Balance: decimal.NewFromInt(150), Notes: "DEPOSIT (Matched)", Subcategory: domain.LabelDeposit,
		SourcePartition: "Jan 24", RowOrdinal: 2,
	}
	ret := &domain.Transaction{
		Date: jan(10), Description: "DEPOSIT RETURN", Withdrawn: decimal.NewFromInt(50),
		Notes: "DEPOSIT RETURN (Matched)", Subcategory: domain.LabelDepositReturn,
		SourcePartition: "Jan 24", RowOrdinal: 5,
	}
	shop := &domain.Transaction{
		Date: jan(3), Description: "Tesco", Withdrawn: decimal.RequireFromString("12.5"),
		SourcePartition: "Jan 24", RowOrdinal: 3,
	}

	return &pipeline.RunResult{
		RunID:        "run-1",
		Transactions: []*domain.Transaction{dep, shop, ret},
		Partitions: []pipeline.PartitionStats{
			{Name: "Jan 24", RowsRead: 6, Transactions: 3, Removed: 2},
			{Name: "Feb 24", Err: "quota exhausted"},
		},
		PartitionErrors: []domain.PartitionError{{Partition: "Feb 24"}},
		Removed: []domain.RemovedRow{
			{Transaction: domain.Transaction{Description: "Balance brought forward", SourcePartition: "Jan 24"}, Reason: domain.RemovalBalanceForward},
			{Transaction: domain.Transaction{Description: "x", SourcePartition: "Jan 24"}, RawDate: "32/13/2024", Reason: domain.RemovalInvalidDate},
		},
		Excluded: []domain.ExcludedTransaction{
			{Transaction: domain.Transaction{Date: jan(2), Description: "Tesco", SourcePartition: "Jan 24"}, Reason: domain.ExclusionMarkedForIgnore},
		},
		Pairs: []domain.MatchedPair{{
			Amount: decimal.NewFromInt(50), DaysBetween: 9,
			DepositDate: jan(1), DepositDescription: dep.Description,
			ReturnDate: jan(10), ReturnDescription: ret.Description,
		}},
		Issues: []domain.Issue{{Kind: domain.IssueNonStandardAmountWithKeyword, Detail: "Amount: £75.00", RowOrdinal: 9, Partition: "Jan 24", Description: "Room deposit"}},
		DepositCandidates: 1,
		ReturnCandidates:  1,
	}
}

func tableByName(t *testing.T, tables []tabular.Table, name string) tabular.Table {
	t.Helper()
	for _, tb := range tables {
		if tb.Name == name {
			return tb
		}
	}
	t.Fatalf("table %s not found", name)
	return tabular.Table{}
}

func TestTables(t *testing.T) {
	tables := Tables(sampleResult())
	require.Len(t, tables, 11)

	processed := tableByName(t, tables, TableProcessed)
	assert.Equal(t, []string{"date", "description", "paid_in", "withdrawn", "balance", "notes", "subcategory", "source_partition"}, processed.Header)
	assert.Equal(t, []string{"01/01/2024", "DEPOSIT FROM TENANT", "50.00", "", "150.00", "DEPOSIT (Matched)", "Deposit", "Jan 24"}, processed.Rows[0])

	removed := tableByName(t, tables, TableRemoved)
	require.Len(t, removed.Rows, 3)
	assert.Equal(t, "32/13/2024", removed.Rows[1][0], "unparsed dates are exported raw")
	assert.Equal(t, []string{"Exclusion Rule", "Marked for Ignore"}, removed.Rows[2][8:])

	matched := tableByName(t, tables, TableMatchedDeposits)
	assert.Equal(t, [][]string{{"01/01/2024", "DEPOSIT FROM TENANT", "50.00", "10/01/2024", "DEPOSIT RETURN", "9"}}, matched.Rows)

	issues := tableByName(t, tables, TableIssues)
	assert.Equal(t, [][]string{{"Non-standard amount with deposit keyword", "Amount: £75.00", "9", "Jan 24", "Room deposit"}}, issues.Rows)
}

func TestSummaryTable(t *testing.T) {
	summary := SummaryTable(sampleResult())

	values := map[string]string{}
	for _, r := range summary.Rows {
		values[r[0]] = r[1]
	}
	assert.Equal(t, "run-1", values["run_id"])
	assert.Equal(t, "1", values["partitions_processed"])
	assert.Equal(t, "1", values["partitions_failed"])
	assert.Equal(t, "3", values["total_transactions"])
	assert.Equal(t, "01/01/2024", values["date_from"])
	assert.Equal(t, "10/01/2024", values["date_to"])
	assert.Equal(t, "50.00", values["total_income"])
	assert.Equal(t, "62.50", values["total_expenses"])
	assert.Equal(t, "-12.50", values["net"])
	assert.Equal(t, "1", values["matched_deposits"])
}

func TestCategorySummaryTable(t *testing.T) {
	tb := CategorySummaryTable(sampleResult().Transactions)
	assert.Equal(t, [][]string{
		{"Deposit", "1", "50.00", "0.00", "50.00"},
		{"Deposit Return", "1", "0.00", "50.00", "-50.00"},
		{"Uncategorized", "1", "0.00", "12.50", "-12.50"},
	}, tb.Rows)
}

func TestRemovalSummaryTable(t *testing.T) {
	tb := RemovalSummaryTable(sampleResult().AllRemoved())
	assert.Equal(t, [][]string{
		{"Balance Forward", "", "Jan 24", "1"},
		{"Exclusion Rule", "Marked for Ignore", "Jan 24", "1"},
		{"Invalid Date", "", "Jan 24", "1"},
	}, tb.Rows)
}

func TestCSVWriter_Export(t *testing.T) {
	w := &CSVWriter{Dir: t.TempDir()}
	res := sampleResult()

	require.NoError(t, w.Export(context.Background(), res))

	for _, name := range []string{TableProcessed, TableRemoved, TableMatchedDeposits, TableSummary} {
		_, err := os.Stat(filepath.Join(w.Dir, "run-1", name+".csv"))
		assert.NoError(t, err, name)
	}
	rows, err := tabular.ReadCSVFile(filepath.Join(w.RunDir(res), TableUnmatchedDeposits+".csv"))
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
