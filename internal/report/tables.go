// Package report turns a finished run into exportable tables.
package report

import (
	"sort"
	"strconv"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/tabular"
	"github.com/shopspring/decimal"
)

// Table names, shared by every sink.
const (
	TableProcessed         = "processed_transactions"
	TableRemoved           = "removed_rows"
	TableMatchedDeposits   = "matched_deposits"
	TableUnmatchedDeposits = "unmatched_deposits"
	TableUnmatchedReturns  = "unmatched_returns"
	TableMiscellaneous     = "miscellaneous"
	TableIssues            = "issues"
	TableSummary           = "summary"
	TableCategorySummary   = "category_summary"
	TableSourceSummary     = "source_summary"
	TableRemovalSummary    = "removal_summary"
)

var transactionHeader = []string{
	"date", "description", "paid_in", "withdrawn", "balance", "notes", "subcategory", "source_partition",
}

// Tables renders every table of the run in a fixed order.
func Tables(res *pipeline.RunResult) []tabular.Table {
	return []tabular.Table{
		transactionTable(TableProcessed, res.Transactions),
		removedTable(res.AllRemoved()),
		matchedTable(res.Pairs),
		transactionTable(TableUnmatchedDeposits, res.UnmatchedDeposits),
		transactionTable(TableUnmatchedReturns, res.UnmatchedReturns),
		transactionTable(TableMiscellaneous, res.Miscellaneous),
		issuesTable(res.Issues),
		SummaryTable(res),
		CategorySummaryTable(res.Transactions),
		SourceSummaryTable(res.Partitions),
		RemovalSummaryTable(res.AllRemoved()),
	}
}

func transactionRow(tx *domain.Transaction) []string {
	return []string{
		tx.FormatDate(),
		tx.Description,
		optionalAmount(tx.PaidIn),
		optionalAmount(tx.Withdrawn),
		tx.Balance.StringFixed(2),
		tx.Notes,
		tx.Subcategory,
		tx.SourcePartition,
	}
}

func transactionTable(name string, txs []*domain.Transaction) tabular.Table {
	t := tabular.Table{Name: name, Header: transactionHeader}
	for _, tx := range txs {
		t.Rows = append(t.Rows, transactionRow(tx))
	}
	return t
}

func removedTable(rows []domain.RemovedRow) tabular.Table {
	header := append(append([]string{}, transactionHeader...), "removal_reason", "detail")
	t := tabular.Table{Name: TableRemoved, Header: header}
	for i := range rows {
		r := &rows[i]
		row := transactionRow(&r.Transaction)
		if r.Date.IsZero() {
			row[0] = r.RawDate
		}
		t.Rows = append(t.Rows, append(row, string(r.Reason), r.Detail))
	}
	return t
}

func matchedTable(pairs []domain.MatchedPair) tabular.Table {
	t := tabular.Table{
		Name:   TableMatchedDeposits,
		Header: []string{"deposit_date", "deposit_description", "amount", "return_date", "return_description", "days_between"},
	}
	for _, p := range pairs {
		t.Rows = append(t.Rows, []string{
			domain.FormatDate(p.DepositDate),
			p.DepositDescription,
			p.Amount.StringFixed(2),
			domain.FormatDate(p.ReturnDate),
			p.ReturnDescription,
			strconv.Itoa(p.DaysBetween),
		})
	}
	return t
}

func issuesTable(issues []domain.Issue) tabular.Table {
	t := tabular.Table{
		Name:   TableIssues,
		Header: []string{"kind", "detail", "row_ordinal", "partition", "description"},
	}
	for _, is := range issues {
		t.Rows = append(t.Rows, []string{
			string(is.Kind), is.Detail, strconv.Itoa(is.RowOrdinal), is.Partition, is.Description,
		})
	}
	return t
}

// SummaryTable lists the headline metrics of the run.
func SummaryTable(res *pipeline.RunResult) tabular.Table {
	totals := res.Totals()
	failed := len(res.PartitionErrors)
	metrics := [][2]string{
		{"run_id", res.RunID},
		{"started_at", formatTime(res.StartedAt)},
		{"finished_at", formatTime(res.FinishedAt)},
		{"partitions_processed", strconv.Itoa(len(res.Partitions) - failed)},
		{"partitions_failed", strconv.Itoa(failed)},
		{"total_transactions", strconv.Itoa(totals.Count)},
		{"date_from", domain.FormatDate(totals.From)},
		{"date_to", domain.FormatDate(totals.To)},
		{"total_income", totals.PaidIn.StringFixed(2)},
		{"total_expenses", totals.Withdrawn.StringFixed(2)},
		{"net", totals.Net.StringFixed(2)},
		{"removed_rows", strconv.Itoa(len(res.Removed))},
		{"excluded_rows", strconv.Itoa(len(res.Excluded))},
		{"duplicates", strconv.Itoa(res.DuplicatesFound)},
		{"categorized", strconv.Itoa(res.Categorize.Categorized)},
		{"uncategorized", strconv.Itoa(res.Categorize.Uncategorized)},
		{"multiple_categories", strconv.Itoa(res.Categorize.MultipleCategories)},
		{"deposit_candidates", strconv.Itoa(res.DepositCandidates)},
		{"return_candidates", strconv.Itoa(res.ReturnCandidates)},
		{"matched_deposits", strconv.Itoa(len(res.Pairs))},
		{"unmatched_deposits", strconv.Itoa(len(res.UnmatchedDeposits))},
		{"unmatched_returns", strconv.Itoa(len(res.UnmatchedReturns))},
		{"miscellaneous", strconv.Itoa(len(res.Miscellaneous))},
		{"issues", strconv.Itoa(len(res.Issues))},
	}
	t := tabular.Table{Name: TableSummary, Header: []string{"metric", "value"}}
	for _, m := range metrics {
		t.Rows = append(t.Rows, []string{m[0], m[1]})
	}
	return t
}

type categoryTotals struct {
	count     int
	paidIn    decimal.Decimal
	withdrawn decimal.Decimal
}

// CategorySummaryTable aggregates count and money per subcategory. Rows
// without a subcategory are grouped as "Uncategorized".
func CategorySummaryTable(txs []*domain.Transaction) tabular.Table {
	byLabel := make(map[string]*categoryTotals)
	for _, tx := range txs {
		label := tx.Subcategory
		if label == "" {
			label = "Uncategorized"
		}
		ct, ok := byLabel[label]
		if !ok {
			ct = &categoryTotals{}
			byLabel[label] = ct
		}
		ct.count++
		ct.paidIn = ct.paidIn.Add(tx.PaidIn)
		ct.withdrawn = ct.withdrawn.Add(tx.Withdrawn)
	}

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	t := tabular.Table{
		Name:   TableCategorySummary,
		Header: []string{"subcategory", "count", "paid_in", "withdrawn", "net"},
	}
	for _, l := range labels {
		ct := byLabel[l]
		t.Rows = append(t.Rows, []string{
			l,
			strconv.Itoa(ct.count),
			ct.paidIn.StringFixed(2),
			ct.withdrawn.StringFixed(2),
			ct.paidIn.Sub(ct.withdrawn).StringFixed(2),
		})
	}
	return t
}

// SourceSummaryTable lists ingestion counts per partition.
func SourceSummaryTable(parts []pipeline.PartitionStats) tabular.Table {
	t := tabular.Table{
		Name:   TableSourceSummary,
		Header: []string{"partition", "rows_read", "transactions", "removed", "error"},
	}
	for _, p := range parts {
		t.Rows = append(t.Rows, []string{
			p.Name, strconv.Itoa(p.RowsRead), strconv.Itoa(p.Transactions), strconv.Itoa(p.Removed), p.Err,
		})
	}
	return t
}

// RemovalSummaryTable counts removed rows by reason and partition.
func RemovalSummaryTable(rows []domain.RemovedRow) tabular.Table {
	type key struct{ reason, detail, partition string }
	counts := make(map[key]int)
	for _, r := range rows {
		k := key{reason: string(r.Reason), partition: r.SourcePartition}
		if r.Reason == domain.RemovalExclusionRule {
			k.detail = r.Detail
		}
		counts[k]++
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].reason != keys[j].reason {
			return keys[i].reason < keys[j].reason
		}
		if keys[i].detail != keys[j].detail {
			return keys[i].detail < keys[j].detail
		}
		return keys[i].partition < keys[j].partition
	})

	t := tabular.Table{
		Name:   TableRemovalSummary,
		Header: []string{"removal_reason", "detail", "partition", "count"},
	}
	for _, k := range keys {
		t.Rows = append(t.Rows, []string{k.reason, k.detail, k.partition, strconv.Itoa(counts[k])})
	}
	return t
}

func optionalAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
