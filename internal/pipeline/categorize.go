package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// CategorizeSummary tallies what the categorizer did in one run.
type CategorizeSummary struct {
	Total              int
	Categorized        int
	Uncategorized      int
	MultipleCategories int
	PriorityResolved   int
}

// CategorizeResult is the output of a categorizer run. Transactions are
// annotated in place.
type CategorizeResult struct {
	Issues  []domain.Issue
	Summary CategorizeSummary
}

type compiledKeyword struct {
	lower       string
	keyword     string
	subcategory string
}

// Categorizer maps transaction descriptions onto subcategory labels.
type Categorizer struct {
	keywords   []compiledKeyword
	priorities []domain.PriorityRule
}

// NewCategorizer validates the rule tables and prepares them for matching.
func NewCategorizer(keywords []domain.KeywordRule, priorities []domain.PriorityRule) (*Categorizer, error) {
	if err := ValidateKeywordRules(keywords); err != nil {
		return nil, fmt.Errorf("NewCategorizer: %w", err)
	}
	if err := ValidatePriorityRules(priorities); err != nil {
		return nil, fmt.Errorf("NewCategorizer: %w", err)
	}

	c := &Categorizer{priorities: make([]domain.PriorityRule, len(priorities))}
	for i, p := range priorities {
		c.priorities[i] = domain.PriorityRule{
			Dominant:    strings.TrimSpace(p.Dominant),
			Subordinate: strings.TrimSpace(p.Subordinate),
		}
	}
	for _, k := range keywords {
		kw := strings.TrimSpace(k.Keyword)
		c.keywords = append(c.keywords, compiledKeyword{
			lower:       strings.ToLower(kw),
			keyword:     kw,
			subcategory: strings.TrimSpace(k.Subcategory),
		})
	}
	return c, nil
}

// Categorize overwrites Notes and Subcategory on every transaction from the
// keyword table. Rows that match nothing are left blank.
func (c *Categorizer) Categorize(txs []*domain.Transaction) (CategorizeResult, error) {
	var res CategorizeResult
	res.Summary.Total = len(txs)

	for _, tx := range txs {
		keywords, labels := c.match(tx.Description)
		tx.Notes = ""
		tx.Subcategory = ""

		if len(labels) == 0 {
			res.Summary.Uncategorized++
			continue
		}

		if len(labels) > 1 {
			before := len(labels)
			resolved, err := c.resolve(labels)
			if err != nil {
				return res, fmt.Errorf("Categorize: row %d: %w", tx.RowOrdinal, err)
			}
			labels = resolved
			if len(labels) < before {
				res.Summary.PriorityResolved++
			}
		}

		tx.Subcategory = joinSorted(labels)
		tx.Notes = joinSorted(keywords)
		res.Summary.Categorized++

		if len(labels) > 1 {
			res.Summary.MultipleCategories++
			res.Issues = append(res.Issues, domain.NewIssue(tx, domain.IssueMultipleCategories,
				fmt.Sprintf("Categories: %s", tx.Subcategory)))
		}
	}

	return res, nil
}

// match returns the matched keywords and the set of their subcategories.
func (c *Categorizer) match(description string) (keywords, labels map[string]struct{}) {
	keywords = make(map[string]struct{})
	labels = make(map[string]struct{})
	desc := strings.ToLower(description)
	if desc == "" {
		return keywords, labels
	}

	seen := make(map[string]struct{})
	for _, k := range c.keywords {
		if !strings.Contains(desc, k.lower) {
			continue
		}
		if _, dup := seen[k.lower]; !dup {
			seen[k.lower] = struct{}{}
			keywords[k.keyword] = struct{}{}
		}
		labels[k.subcategory] = struct{}{}
	}
	return keywords, labels
}

// resolve applies the priority rules until a full pass changes nothing.
func (c *Categorizer) resolve(labels map[string]struct{}) (map[string]struct{}, error) {
	maxPasses := len(c.priorities) + 1
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, p := range c.priorities {
			_, hasDom := labels[p.Dominant]
			_, hasSub := labels[p.Subordinate]
			if hasDom && hasSub {
				delete(labels, p.Subordinate)
				changed = true
			}
		}
		if !changed {
			return labels, nil
		}
	}
	return nil, &domain.RuleConfigError{
		Source: "priority_rules",
		Msg:    fmt.Sprintf("priority resolution did not converge after %d passes", maxPasses),
	}
}

func joinSorted(set map[string]struct{}) string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, domain.LabelJoinDelimiter)
}
