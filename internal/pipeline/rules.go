package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// RemovalGroup is a set of description patterns sharing one removal reason.
type RemovalGroup struct {
	Reason   domain.RemovalReason
	Patterns []string
}

// DepositRules configures the deposit reconciler.
type DepositRules struct {
	Amounts           []decimal.Decimal
	DepositKeywords   []string
	ReturnKeywords    []string
	QuickReturnDays   int
	DelayedReturnDays int
}

// RuleSet is everything a reconciliation run needs besides its input rows.
type RuleSet struct {
	Keywords      []domain.KeywordRule
	Priorities    []domain.PriorityRule
	RemovalGroups []RemovalGroup
	Deposits      DepositRules
}

// Validate checks every table in the rule set.
func (rs RuleSet) Validate() error {
	if err := ValidateKeywordRules(rs.Keywords); err != nil {
		return err
	}
	if err := ValidatePriorityRules(rs.Priorities); err != nil {
		return err
	}
	if err := ValidateRemovalGroups(rs.RemovalGroups); err != nil {
		return err
	}
	return rs.Deposits.Validate()
}

// ValidateKeywordRules rejects an empty table and rows with a blank side.
func ValidateKeywordRules(rules []domain.KeywordRule) error {
	if len(rules) == 0 {
		return &domain.RuleConfigError{Source: "keywords", Msg: "keyword table is empty"}
	}
	for i, r := range rules {
		if strings.TrimSpace(r.Keyword) == "" {
			return &domain.RuleConfigError{Source: "keywords", Msg: fmt.Sprintf("rule %d has a blank keyword", i+1)}
		}
		if strings.TrimSpace(r.Subcategory) == "" {
			return &domain.RuleConfigError{Source: "keywords", Msg: fmt.Sprintf("rule %d (%q) has a blank subcategory", i+1, r.Keyword)}
		}
	}
	return nil
}

// ValidatePriorityRules rejects blank labels, self-dominance and contradictory pairs.
func ValidatePriorityRules(rules []domain.PriorityRule) error {
	seen := make(map[[2]string]bool, len(rules))
	for i, r := range rules {
		dom, sub := strings.TrimSpace(r.Dominant), strings.TrimSpace(r.Subordinate)
		if dom == "" || sub == "" {
			return &domain.RuleConfigError{Source: "priority_rules", Msg: fmt.Sprintf("rule %d has a blank label", i+1)}
		}
		if dom == sub {
			return &domain.RuleConfigError{Source: "priority_rules", Msg: fmt.Sprintf("rule %d: %q cannot dominate itself", i+1, dom)}
		}
		if seen[[2]string{sub, dom}] {
			return &domain.RuleConfigError{Source: "priority_rules", Msg: fmt.Sprintf("rules contradict each other: %q and %q dominate each other", dom, sub)}
		}
		seen[[2]string{dom, sub}] = true
	}
	return nil
}

// ValidateRemovalGroups rejects groups without a reason or with blank patterns.
func ValidateRemovalGroups(groups []RemovalGroup) error {
	for i, g := range groups {
		if g.Reason == "" {
			return &domain.RuleConfigError{Source: "removal_patterns", Msg: fmt.Sprintf("group %d has no reason", i+1)}
		}
		for _, p := range g.Patterns {
			if strings.TrimSpace(p) == "" {
				return &domain.RuleConfigError{Source: "removal_patterns", Msg: fmt.Sprintf("group %q has a blank pattern", g.Reason)}
			}
		}
	}
	return nil
}

// Validate checks the whitelist, keyword families and thresholds.
func (d DepositRules) Validate() error {
	if len(d.Amounts) == 0 {
		return &domain.RuleConfigError{Source: "deposits", Msg: "amount whitelist is empty"}
	}
	for _, a := range d.Amounts {
		if !a.IsPositive() {
			return &domain.RuleConfigError{Source: "deposits", Msg: fmt.Sprintf("whitelist amount %s must be positive", a)}
		}
	}
	if len(d.DepositKeywords) == 0 || len(d.ReturnKeywords) == 0 {
		return &domain.RuleConfigError{Source: "deposits", Msg: "deposit and return keyword lists must both be non-empty"}
	}
	if d.QuickReturnDays < 0 || d.DelayedReturnDays < d.QuickReturnDays {
		return &domain.RuleConfigError{Source: "deposits", Msg: fmt.Sprintf("invalid return thresholds quick=%d delayed=%d", d.QuickReturnDays, d.DelayedReturnDays)}
	}
	return nil
}

// ParseKeywordRows turns a keyword mapping table (as read from a worksheet or
// CSV) into keyword rules. A first row whose cells read "keyword" and
// "subcategory" is treated as a header. Fully blank rows are skipped.
func ParseKeywordRows(source string, rows [][]string) ([]domain.KeywordRule, error) {
	keywordCol, subCol := 0, 1
	start := 0
	if len(rows) > 0 {
		for i, cell := range rows[0] {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case "keyword", "keywords":
				keywordCol = i
				start = 1
			case "subcategory", "category":
				subCol = i
				start = 1
			}
		}
	}

	var rules []domain.KeywordRule
	for i := start; i < len(rows); i++ {
		kw := strings.TrimSpace(cellAt(rows[i], keywordCol))
		sub := strings.TrimSpace(cellAt(rows[i], subCol))
		if kw == "" && sub == "" {
			continue
		}
		if kw == "" || sub == "" {
			return nil, &domain.RuleConfigError{Source: source, Msg: fmt.Sprintf("row %d is missing a keyword or subcategory", i+1)}
		}
		rules = append(rules, domain.KeywordRule{Keyword: kw, Subcategory: sub})
	}
	if len(rules) == 0 {
		return nil, &domain.RuleConfigError{Source: source, Msg: "keyword table is empty"}
	}
	return rules, nil
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
