package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"google.golang.org/api/iterator"
)

// ListKeywordRulesWithClient returns the active keyword rules ordered by
// subcategory and keyword.
func ListKeywordRulesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) ([]domain.KeywordRule, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  keyword,
		  subcategory,
		  is_active
		FROM %s.%s
		WHERE is_active IS NULL OR is_active = TRUE
		ORDER BY subcategory, keyword
	`, datasetID, keywordRulesTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListKeywordRules: query read: %w", err)
	}

	var rows []KeywordRuleRow
	for {
		var r KeywordRuleRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListKeywordRules: iter next: %w", err)
		}
		rows = append(rows, r)
	}

	return KeywordRulesFromRows(datasetID+"."+keywordRulesTable, rows)
}

// KeywordRulesFromRows converts warehouse rows through the same validation
// as worksheet and CSV keyword tables.
func KeywordRulesFromRows(source string, rows []KeywordRuleRow) ([]domain.KeywordRule, error) {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		if r.IsActive.Valid && !r.IsActive.Bool {
			continue
		}
		cells = append(cells, []string{r.Keyword, r.Subcategory})
	}
	return pipeline.ParseKeywordRows(source, cells)
}
