// Package notionsync files the findings of a reconciliation run as pages in a
// Notion review database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/jomei/notionapi"
)

// Exporter creates one review page per new finding. Findings already present
// in the database (by Review Key) are skipped.
type Exporter struct {
	Service    NotionService
	DatabaseID string
	DryRun     bool
}

// Export implements pipeline.Sink.
func (e *Exporter) Export(ctx context.Context, res *pipeline.RunResult) error {
	log := logger.FromContext(ctx)

	items := ReviewItems(res)
	if len(items) == 0 {
		log.Info().Msg("No review items for Notion")
		return nil
	}

	pages, err := queryAllNotionPages(ctx, e.Service, e.DatabaseID)
	if err != nil {
		return fmt.Errorf("Exporter.Export: %w", err)
	}
	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if key := extractReviewKey(page); key != "" {
			existing[key] = true
		}
	}

	var created, skipped int
	for _, item := range items {
		key := item.Key()
		if existing[key] {
			skipped++
			continue
		}
		existing[key] = true

		if e.DryRun {
			log.Info().Str("kind", item.Kind).Str("description", item.Description).Msg("[DRY RUN] Would create review page")
			created++
			continue
		}
		if _, err := e.Service.CreatePage(ctx, e.DatabaseID, ReviewItemToNotionProperties(item, res.RunID)); err != nil {
			return fmt.Errorf("Exporter.Export: %s %q: %w", item.Kind, item.Description, err)
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("total", len(items)).
		Bool("dry_run", e.DryRun).
		Msg("Notion review sync completed")
	return nil
}

// queryAllNotionPages queries all pages from a Notion database.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, svc NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := svc.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
