package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// RunRepository is the warehouse surface used by the Exporter.
// This interface enables mocking in tests.
type RunRepository interface {
	StartRun(ctx context.Context, row *RunRow) error
	MarkRunSucceeded(ctx context.Context, runID string) error
	MarkRunFailed(ctx context.Context, runID string, runErr error)
	InsertRows(ctx context.Context, table string, rows interface{}) error
}

// KeywordRuleRepository reads keyword rules kept in the warehouse.
type KeywordRuleRepository interface {
	ListKeywordRules(ctx context.Context) ([]domain.KeywordRule, error)
}

// BigQueryRepository implements RunRepository and KeywordRuleRepository
// against one dataset. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRepository creates a repository with a shared BigQuery client.
func NewBigQueryRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRepository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewBigQueryRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return &BigQueryRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartRunWithClient with the shared client.
func (r *BigQueryRepository) StartRun(ctx context.Context, row *RunRow) error {
	return StartRunWithClient(ctx, r.client, r.datasetID, row)
}

// MarkRunSucceeded delegates to MarkRunSucceededWithClient with the shared client.
func (r *BigQueryRepository) MarkRunSucceeded(ctx context.Context, runID string) error {
	return MarkRunSucceededWithClient(ctx, r.client, r.datasetID, runID)
}

// MarkRunFailed delegates to MarkRunFailedWithClient with the shared client.
func (r *BigQueryRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkRunFailedWithClient(ctx, r.client, r.datasetID, runID, runErr)
}

// InsertRows delegates to InsertRowsWithClient with the shared client.
func (r *BigQueryRepository) InsertRows(ctx context.Context, table string, rows interface{}) error {
	return InsertRowsWithClient(ctx, r.client, r.projectID, r.datasetID, table, rows)
}

// ListKeywordRules delegates to ListKeywordRulesWithClient with the shared client.
func (r *BigQueryRepository) ListKeywordRules(ctx context.Context) ([]domain.KeywordRule, error) {
	return ListKeywordRulesWithClient(ctx, r.client, r.datasetID)
}

// EnsureTables delegates to EnsureTablesWithClient with the shared client.
func (r *BigQueryRepository) EnsureTables(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, r.client, r.datasetID)
}
