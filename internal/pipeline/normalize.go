package pipeline

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// Column positions used when a worksheet has no header row.
const (
	colDate = iota
	colDescription
	colPaidIn
	colWithdrawn
	colBalance
	colNotes
	colSubcategory
)

// statementDateLayouts are tried in order before the permissive fallback.
var statementDateLayouts = []string{
	"02 Jan 06",
	"02 January 2006",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
}

// NormalizeResult holds the typed output of one partition.
type NormalizeResult struct {
	Transactions []*domain.Transaction
	Removed      []domain.RemovedRow
}

// columnMap records where each field lives in a worksheet row.
type columnMap struct {
	date, description, paidIn, withdrawn int
	balance, notes, subcategory          int // -1 when absent
}

func positionalColumns() columnMap {
	return columnMap{
		date:        colDate,
		description: colDescription,
		paidIn:      colPaidIn,
		withdrawn:   colWithdrawn,
		balance:     colBalance,
		notes:       colNotes,
		subcategory: colSubcategory,
	}
}

// rowOutcome is the per-row result of normalization: either a transaction or
// a removal, never both.
type rowOutcome struct {
	tx      *domain.Transaction
	removed *domain.RemovedRow
}

// Normalize converts raw worksheet rows of one partition into typed
// transactions, routing unusable rows to the removed list. It fails only when
// the worksheet itself cannot be read as a statement.
func Normalize(rows [][]string, partition string, groups []RemovalGroup) (NormalizeResult, error) {
	var res NormalizeResult

	if len(rows) == 0 {
		return res, &domain.StructuralError{Partition: partition, Msg: "worksheet has no rows"}
	}

	cols := positionalColumns()
	start := 0
	if isHeaderRow(rows[0]) {
		var err error
		cols, err = resolveColumns(rows[0], partition)
		if err != nil {
			return res, err
		}
		start = 1
	}

	for i := start; i < len(rows); i++ {
		out := normalizeRow(rows[i], cols, groups)
		switch {
		case out.removed != nil:
			out.removed.SourcePartition = partition
			out.removed.SourceRow = i + 1
			res.Removed = append(res.Removed, *out.removed)
		case out.tx != nil:
			out.tx.SourcePartition = partition
			out.tx.SourceRow = i + 1
			res.Transactions = append(res.Transactions, out.tx)
		}
	}

	return res, nil
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "date")
}

// resolveColumns maps header names onto column indexes.
func resolveColumns(header []string, partition string) (columnMap, error) {
	cols := columnMap{date: -1, description: -1, paidIn: -1, withdrawn: -1, balance: -1, notes: -1, subcategory: -1}
	for i, cell := range header {
		switch headerKey(cell) {
		case "date":
			cols.date = i
		case "transaction", "description", "details":
			cols.description = i
		case "paidin", "moneyin", "credit":
			cols.paidIn = i
		case "withdrawn", "paidout", "moneyout", "debit":
			cols.withdrawn = i
		case "balance":
			cols.balance = i
		case "notes", "note":
			cols.notes = i
		case "subcategory", "category":
			cols.subcategory = i
		}
	}

	var missing []string
	if cols.date < 0 {
		missing = append(missing, "Date")
	}
	if cols.description < 0 {
		missing = append(missing, "Transaction")
	}
	if cols.paidIn < 0 {
		missing = append(missing, "Paid In")
	}
	if cols.withdrawn < 0 {
		missing = append(missing, "Withdrawn")
	}
	if len(missing) > 0 {
		return cols, &domain.StructuralError{
			Partition: partition,
			Msg:       fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}
	return cols, nil
}

// headerKey lowercases a header cell and drops currency suffixes like "(£)",
// spaces and punctuation.
func headerKey(cell string) string {
	if i := strings.IndexByte(cell, '('); i >= 0 {
		cell = cell[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(cell) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeRow(row []string, cols columnMap, groups []RemovalGroup) rowOutcome {
	rawDate := strings.TrimSpace(cellAt(row, cols.date))
	paidInRaw := strings.TrimSpace(cellAt(row, cols.paidIn))
	withdrawnRaw := strings.TrimSpace(cellAt(row, cols.withdrawn))

	tx := &domain.Transaction{
		Description: strings.TrimSpace(cellAt(row, cols.description)),
		PaidIn:      ParseMoney(paidInRaw).Abs(),
		Withdrawn:   ParseMoney(withdrawnRaw).Abs(),
		Balance:     ParseMoney(cellAt(row, cols.balance)),
		Notes:       strings.TrimSpace(cellAt(row, cols.notes)),
		Subcategory: strings.TrimSpace(cellAt(row, cols.subcategory)),
	}

	if reason, pattern, ok := matchRemovalGroup(tx.Description, groups); ok {
		return rowOutcome{removed: &domain.RemovedRow{
			Transaction: *tx,
			RawDate:     rawDate,
			Reason:      reason,
			Detail:      fmt.Sprintf("matched %q", pattern),
		}}
	}

	if rawDate == "" && tx.Description == "" && paidInRaw == "" && withdrawnRaw == "" {
		return rowOutcome{removed: &domain.RemovedRow{
			Transaction: *tx,
			Reason:      domain.RemovalEmptyRow,
		}}
	}

	date, err := ParseStatementDate(rawDate)
	if err != nil {
		return rowOutcome{removed: &domain.RemovedRow{
			Transaction: *tx,
			RawDate:     rawDate,
			Reason:      domain.RemovalInvalidDate,
			Detail:      err.Error(),
		}}
	}
	tx.Date = date

	return rowOutcome{tx: tx}
}

// matchRemovalGroup returns the first group with a pattern contained in desc.
func matchRemovalGroup(desc string, groups []RemovalGroup) (domain.RemovalReason, string, bool) {
	if desc == "" {
		return "", "", false
	}
	lower := strings.ToLower(desc)
	for _, g := range groups {
		for _, p := range g.Patterns {
			if strings.Contains(lower, strings.ToLower(p)) {
				return g.Reason, p, true
			}
		}
	}
	return "", "", false
}

// ParseStatementDate parses a statement date cell. Explicit day-first layouts
// are tried first, then a permissive day-first parse.
func ParseStatementDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("ParseStatementDate: empty date")
	}
	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return civil.Date{}, fmt.Errorf("ParseStatementDate: unrecognised date %q: %w", s, err)
	}
	d := civil.DateOf(t)
	if !d.IsValid() {
		return civil.Date{}, fmt.Errorf("ParseStatementDate: invalid date %q", s)
	}
	return d, nil
}

// ParseMoney strips currency symbols, thousands separators and spaces and
// parses what is left. Anything unparseable is zero.
func ParseMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '£', '$', '€', ',', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	// Accounting negatives: (12.50)
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + strings.Trim(cleaned, "()")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
