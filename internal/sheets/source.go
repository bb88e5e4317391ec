package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/report"
)

// Source reads one worksheet per partition from a spreadsheet.
type Source struct {
	Client        *Client
	SpreadsheetID string
}

// FetchRows implements pipeline.RowSource.
func (s *Source) FetchRows(ctx context.Context, partition string) ([][]string, error) {
	rows, err := s.Client.ReadRange(ctx, s.SpreadsheetID, QuoteSheet(partition))
	if err != nil {
		return nil, fmt.Errorf("Source.FetchRows: %s: %w", partition, err)
	}
	return rows, nil
}

// KeywordRules reads the keyword mapping worksheet.
func (s *Source) KeywordRules(ctx context.Context, sheet string) ([]domain.KeywordRule, error) {
	rows, err := s.Client.ReadRange(ctx, s.SpreadsheetID, QuoteSheet(sheet))
	if err != nil {
		return nil, fmt.Errorf("Source.KeywordRules: %w", err)
	}
	return pipeline.ParseKeywordRows(sheet, rows)
}

// Exporter writes every run table to its own worksheet.
type Exporter struct {
	Client        *Client
	SpreadsheetID string
}

// Export implements pipeline.Sink.
func (e *Exporter) Export(ctx context.Context, res *pipeline.RunResult) error {
	log := logger.FromContext(ctx)
	for _, t := range report.Tables(res) {
		title := SheetTitle(t.Name)
		if err := e.Client.WriteSheet(ctx, e.SpreadsheetID, title, t.Values()); err != nil {
			return fmt.Errorf("Exporter.Export: %s: %w", title, err)
		}
		log.Debug().Str("sheet", title).Int("rows", len(t.Rows)).Msg("Worksheet written")
	}
	return nil
}

// SheetTitle turns a table name like "matched_deposits" into "Matched Deposits".
func SheetTitle(table string) string {
	words := strings.Split(table, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
