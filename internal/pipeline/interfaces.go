package pipeline

import (
	"context"
)

// RowSource provides the raw worksheet rows of one partition.
// Implementations own any remote access, rate limiting and retries; the
// pipeline sees either a complete row set or an error.
type RowSource interface {
	FetchRows(ctx context.Context, partition string) ([][]string, error)
}

// Sink receives the artifacts of a finished run.
type Sink interface {
	Export(ctx context.Context, result *RunResult) error
}

// RowSourceFunc adapts a plain function to RowSource.
type RowSourceFunc func(ctx context.Context, partition string) ([][]string, error)

// FetchRows calls f.
func (f RowSourceFunc) FetchRows(ctx context.Context, partition string) ([][]string, error) {
	return f(ctx, partition)
}
