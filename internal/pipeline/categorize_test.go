package pipeline

import (
	"errors"
	"testing"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeywords = []domain.KeywordRule{
	{Keyword: "AIRBNB", Subcategory: "Air bnb"},
	{Keyword: "Ketan", Subcategory: "Ketan/ Management"},
	{Keyword: "tesco", Subcategory: "Groceries"},
	{Keyword: "TESCO", Subcategory: "Groceries"},
	{Keyword: "council tax", Subcategory: "Council Tax"},
	{Keyword: "water", Subcategory: "Utilities"},
}

func TestNewCategorizer_RuleConfigErrors(t *testing.T) {
	tests := []struct {
		name       string
		keywords   []domain.KeywordRule
		priorities []domain.PriorityRule
	}{
		{"empty keyword table", nil, nil},
		{"blank keyword", []domain.KeywordRule{{Keyword: " ", Subcategory: "A"}}, nil},
		{"blank subcategory", []domain.KeywordRule{{Keyword: "a", Subcategory: ""}}, nil},
		{"self dominance", testKeywords, []domain.PriorityRule{{Dominant: "A", Subordinate: "A"}}},
		{"blank priority label", testKeywords, []domain.PriorityRule{{Dominant: "A", Subordinate: ""}}},
		{"contradictory pair", testKeywords, []domain.PriorityRule{
			{Dominant: "A", Subordinate: "B"},
			{Dominant: "B", Subordinate: "A"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCategorizer(tt.keywords, tt.priorities)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrRuleConfig))
		})
	}
}

func TestCategorize(t *testing.T) {
	c, err := NewCategorizer(testKeywords, DefaultPriorityRules())
	require.NoError(t, err)

	single := newTx(t, 1, "2024-01-01", "Tesco Stores 123", "", "20")
	resolved := newTx(t, 2, "2024-01-02", "AIRBNB payout via Ketan", "300", "")
	multiple := newTx(t, 3, "2024-01-03", "Council tax and water", "", "150")
	none := newTx(t, 4, "2024-01-04", "Unknown merchant", "", "9")
	none.Notes = "stale"
	none.Subcategory = "stale"

	res, err := c.Categorize([]*domain.Transaction{single, resolved, multiple, none})
	require.NoError(t, err)

	assert.Equal(t, "Groceries", single.Subcategory)
	assert.Equal(t, "tesco", single.Notes, "keywords dedupe case-insensitively, keeping the first spelling")

	assert.Equal(t, "Air bnb", resolved.Subcategory)
	assert.Equal(t, "AIRBNB | Ketan", resolved.Notes)

	assert.Equal(t, "Council Tax | Utilities", multiple.Subcategory)
	assert.Equal(t, "council tax | water", multiple.Notes)

	assert.Empty(t, none.Subcategory)
	assert.Empty(t, none.Notes)

	require.Len(t, res.Issues, 1)
	assert.Equal(t, domain.IssueMultipleCategories, res.Issues[0].Kind)
	assert.Equal(t, 3, res.Issues[0].RowOrdinal)

	assert.Equal(t, CategorizeSummary{
		Total:              4,
		Categorized:        3,
		Uncategorized:      1,
		MultipleCategories: 1,
		PriorityResolved:   1,
	}, res.Summary)
}

func TestCategorize_TransitivePriorityChain(t *testing.T) {
	keywords := []domain.KeywordRule{
		{Keyword: "a", Subcategory: "A"},
		{Keyword: "b", Subcategory: "B"},
		{Keyword: "c", Subcategory: "C"},
	}
	// A beats B beats C; C must go before B removes itself from the set.
	priorities := []domain.PriorityRule{
		{Dominant: "B", Subordinate: "C"},
		{Dominant: "A", Subordinate: "B"},
		{Dominant: "A", Subordinate: "C"},
	}
	c, err := NewCategorizer(keywords, priorities)
	require.NoError(t, err)

	tx := newTx(t, 1, "2024-01-01", "a b c", "", "1")
	res, err := c.Categorize([]*domain.Transaction{tx})
	require.NoError(t, err)

	assert.Equal(t, "A", tx.Subcategory)
	assert.Empty(t, res.Issues)
}

func TestCategorize_Deterministic(t *testing.T) {
	c, err := NewCategorizer(testKeywords, DefaultPriorityRules())
	require.NoError(t, err)

	build := func() []*domain.Transaction {
		return []*domain.Transaction{
			newTx(t, 1, "2024-01-01", "water council tax tesco", "", "1"),
			newTx(t, 2, "2024-01-02", "ketan airbnb", "", "1"),
		}
	}

	first, second := build(), build()
	_, err = c.Categorize(first)
	require.NoError(t, err)
	_, err = c.Categorize(second)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Subcategory, second[i].Subcategory)
		assert.Equal(t, first[i].Notes, second[i].Notes)
	}
	assert.Equal(t, "Council Tax | Groceries | Utilities", first[0].Subcategory)
}
