package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
)

// StartRunWithClient inserts the run record with status=RUNNING. DML is used
// instead of streaming so the row can be updated straight away.
func StartRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *RunRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			started_ts,
			status,
			error_message,
			partitions,
			transaction_count,
			removed_count,
			pair_count,
			issue_count,
			total_paid_in,
			total_withdrawn
		)
		VALUES (
			@run_id,
			@started_ts,
			@status,
			"",
			@partitions,
			@transaction_count,
			@removed_count,
			@pair_count,
			@issue_count,
			@total_paid_in,
			@total_withdrawn
		)
	`, datasetID, runsTable))

	partitions := row.Partitions
	if partitions == nil {
		partitions = []string{}
	}
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "status", Value: pipeline.RunStatusRunning},
		{Name: "partitions", Value: partitions},
		{Name: "transaction_count", Value: row.TransactionCount},
		{Name: "removed_count", Value: row.RemovedCount},
		{Name: "pair_count", Value: row.PairCount},
		{Name: "issue_count", Value: row.IssueCount},
		{Name: "total_paid_in", Value: row.TotalPaidIn},
		{Name: "total_withdrawn", Value: row.TotalWithdrawn},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	return nil
}

// MarkRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Failures are logged rather than returned since the caller is already
// handling an error.
func MarkRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: pipeline.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: update failed")
	}
}

// MarkRunSucceededWithClient sets status=SUCCESS and finished_ts, clears error_message.
func MarkRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = ""
		WHERE run_id = @run_id
	`, datasetID, runsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: pipeline.RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
