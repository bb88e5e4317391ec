package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// ReconcileResult is the output of one deposit reconciliation run.
type ReconcileResult struct {
	Pairs             []domain.MatchedPair
	UnmatchedDeposits []*domain.Transaction
	UnmatchedReturns  []*domain.Transaction
	// Miscellaneous rows carry a whitelisted amount but no deposit keyword.
	// They are listed for manual review and otherwise left alone.
	Miscellaneous []*domain.Transaction
	Issues        []domain.Issue

	DepositCandidates int
	ReturnCandidates  int
}

// Reconciler pairs refundable deposits with their later returns.
type Reconciler struct {
	rules     DepositRules
	depositKW []string
	returnKW  []string
}

// NewReconciler validates the deposit rules.
func NewReconciler(rules DepositRules) (*Reconciler, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("NewReconciler: %w", err)
	}
	return &Reconciler{
		rules:     rules,
		depositKW: lowerAll(rules.DepositKeywords),
		returnKW:  lowerAll(rules.ReturnKeywords),
	}, nil
}

// Reconcile classifies deposit and return candidates, annotates them, and
// matches every deposit with the closest later return of the same amount.
// Duplicate rows are ignored. Candidate indexes refer to positions in txs.
func (r *Reconciler) Reconcile(txs []*domain.Transaction) ReconcileResult {
	var res ReconcileResult
	var deposits, returns []domain.MatchCandidate

	for i, tx := range txs {
		if tx.Duplicate {
			continue
		}
		amount, ok := tx.FlowAmount()
		if !ok {
			res.Issues = append(res.Issues, domain.NewIssue(tx, domain.IssueProcessingError,
				fmt.Sprintf("both paid in (%s) and withdrawn (%s) are set; row skipped from matching",
					tx.PaidIn.StringFixed(2), tx.Withdrawn.StringFixed(2))))
			continue
		}

		desc := strings.ToLower(tx.Description)
		isReturn := containsAny(desc, r.returnKW)
		isDeposit := containsAny(desc, r.depositKW)
		whitelisted := r.whitelisted(amount)

		switch {
		case whitelisted && isReturn:
			tx.Notes = domain.NoteDepositReturn
			tx.Subcategory = domain.LabelDepositReturn
			returns = append(returns, candidate(tx, i, amount, domain.DirectionReturn))
		case whitelisted && isDeposit:
			tx.Notes = domain.NoteDeposit
			tx.Subcategory = domain.LabelDeposit
			deposits = append(deposits, candidate(tx, i, amount, domain.DirectionDeposit))
		case whitelisted:
			res.Miscellaneous = append(res.Miscellaneous, tx)
		case isDeposit || isReturn:
			res.Issues = append(res.Issues, domain.NewIssue(tx, domain.IssueNonStandardAmountWithKeyword,
				fmt.Sprintf("Amount: £%s", amount.StringFixed(2))))
		}
	}

	res.DepositCandidates = len(deposits)
	res.ReturnCandidates = len(returns)

	sortCandidates(deposits)
	sortCandidates(returns)

	used := make([]bool, len(returns))
	for _, dep := range deposits {
		best := -1
		bestGap := 0
		for j, ret := range returns {
			if used[j] || !ret.Amount.Equal(dep.Amount) || !ret.Date.After(dep.Date) {
				continue
			}
			gap := ret.Date.DaysSince(dep.Date)
			if best < 0 || gap < bestGap || (gap == bestGap && ret.Ordinal < returns[best].Ordinal) {
				best, bestGap = j, gap
			}
		}

		depTx := txs[dep.Index]
		if best < 0 {
			res.UnmatchedDeposits = append(res.UnmatchedDeposits, depTx)
			continue
		}

		used[best] = true
		retTx := txs[returns[best].Index]
		depTx.Notes += domain.NoteMatchedSuffix
		retTx.Notes += domain.NoteMatchedSuffix

		res.Pairs = append(res.Pairs, domain.MatchedPair{
			DepositIndex:       dep.Index,
			ReturnIndex:        returns[best].Index,
			Amount:             dep.Amount,
			DaysBetween:        bestGap,
			DepositDate:        depTx.Date,
			DepositDescription: depTx.Description,
			ReturnDate:         retTx.Date,
			ReturnDescription:  retTx.Description,
		})
	}

	for j, ret := range returns {
		if !used[j] {
			res.UnmatchedReturns = append(res.UnmatchedReturns, txs[ret.Index])
		}
	}

	res.Issues = append(res.Issues, r.validatePairs(txs, res.Pairs)...)
	return res
}

// validatePairs flags matches whose gap falls outside the expected window.
func (r *Reconciler) validatePairs(txs []*domain.Transaction, pairs []domain.MatchedPair) []domain.Issue {
	var issues []domain.Issue
	for _, p := range pairs {
		retTx := txs[p.ReturnIndex]
		detail := fmt.Sprintf("Returned after %d days (deposit %s, %s)",
			p.DaysBetween, domain.FormatDate(p.DepositDate), p.DepositDescription)
		switch {
		case p.DaysBetween < r.rules.QuickReturnDays:
			issues = append(issues, domain.NewIssue(retTx, domain.IssueQuickReturn, detail))
		case p.DaysBetween > r.rules.DelayedReturnDays:
			issues = append(issues, domain.NewIssue(retTx, domain.IssueDelayedReturn, detail))
		}
	}
	return issues
}

func (r *Reconciler) whitelisted(amount decimal.Decimal) bool {
	for _, a := range r.rules.Amounts {
		if a.Equal(amount) {
			return true
		}
	}
	return false
}

func candidate(tx *domain.Transaction, index int, amount decimal.Decimal, dir domain.Direction) domain.MatchCandidate {
	return domain.MatchCandidate{
		Amount:    amount,
		Direction: dir,
		Index:     index,
		Date:      tx.Date,
		Ordinal:   tx.RowOrdinal,
	}
}

func sortCandidates(cs []domain.MatchCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Date != cs[j].Date {
			return cs[i].Date.Before(cs[j].Date)
		}
		return cs[i].Ordinal < cs[j].Ordinal
	})
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
