package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"google.golang.org/api/googleapi"
)

// insertBatchSize bounds one streaming insert request.
const insertBatchSize = 500

// tableSchemas lists every table the reconciler writes to or reads from.
var tableSchemas = []struct {
	name string
	row  interface{}
}{
	{runsTable, RunRow{}},
	{transactionsTable, TransactionRow{}},
	{removedRowsTable, RemovedRowRecord{}},
	{matchesTable, MatchRow{}},
	{issuesTable, IssueRow{}},
	{keywordRulesTable, KeywordRuleRow{}},
}

// InsertRowsWithClient streams rows into the table in batches. rows must be
// a slice of row struct pointers.
func InsertRowsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, table string, rows interface{}) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("InsertRows: %s: rows must be a slice, got %T", table, rows)
	}
	if v.Len() == 0 {
		return nil
	}

	// Use fully qualified table name to avoid project ID issues
	inserter := client.DatasetInProject(projectID, datasetID).Table(table).Inserter()
	for start := 0; start < v.Len(); start += insertBatchSize {
		end := min(start+insertBatchSize, v.Len())
		if err := inserter.Put(ctx, v.Slice(start, end).Interface()); err != nil {
			return fmt.Errorf("InsertRows: %s rows %d-%d: %w", table, start, end, err)
		}
	}
	return nil
}

// EnsureTablesWithClient creates any missing reconciler table with a schema
// inferred from its row struct.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) error {
	log := logger.FromContext(ctx)
	ds := client.Dataset(datasetID)

	for _, ts := range tableSchemas {
		t := ds.Table(ts.name)
		_, err := t.Metadata(ctx)
		if err == nil {
			continue
		}
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTables: %s metadata: %w", ts.name, err)
		}

		schema, err := bigquery.InferSchema(ts.row)
		if err != nil {
			return fmt.Errorf("EnsureTables: %s schema: %w", ts.name, err)
		}
		if err := t.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return fmt.Errorf("EnsureTables: creating %s: %w", ts.name, err)
		}
		log.Info().Str("dataset", datasetID).Str("table", ts.name).Msg("Table created")
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// Exporter streams the tables of a run into BigQuery and tracks the run in
// reconciliation_runs.
type Exporter struct {
	Repo RunRepository
}

// Export implements pipeline.Sink.
func (e *Exporter) Export(ctx context.Context, res *pipeline.RunResult) error {
	log := logger.FromContext(ctx)

	if err := e.Repo.StartRun(ctx, NewRunRow(res, pipeline.RunStatusRunning, nil)); err != nil {
		return fmt.Errorf("Exporter.Export: %w", err)
	}

	batches := []struct {
		table string
		rows  interface{}
	}{
		{transactionsTable, TransactionRows(res)},
		{removedRowsTable, RemovedRowRecords(res)},
		{matchesTable, MatchRows(res)},
		{issuesTable, IssueRows(res)},
	}
	for _, b := range batches {
		if err := e.Repo.InsertRows(ctx, b.table, b.rows); err != nil {
			e.Repo.MarkRunFailed(ctx, res.RunID, err)
			return fmt.Errorf("Exporter.Export: %w", err)
		}
	}

	if err := e.Repo.MarkRunSucceeded(ctx, res.RunID); err != nil {
		return fmt.Errorf("Exporter.Export: %w", err)
	}

	log.Info().
		Str("run_id", res.RunID).
		Int("transactions", len(res.Transactions)).
		Int("pairs", len(res.Pairs)).
		Int("issues", len(res.Issues)).
		Msg("Run exported to BigQuery")
	return nil
}
