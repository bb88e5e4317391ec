package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/tabular"
)

// CSVWriter writes every run table as <Dir>/<RunID>/<table>.csv.
type CSVWriter struct {
	Dir string
}

// RunDir returns the directory the tables of a run are written to.
func (w *CSVWriter) RunDir(res *pipeline.RunResult) string {
	return filepath.Join(w.Dir, res.RunID)
}

// Export implements pipeline.Sink.
func (w *CSVWriter) Export(ctx context.Context, res *pipeline.RunResult) error {
	dir := w.RunDir(res)
	for _, t := range Tables(res) {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, t.Name+".csv")
		if err := tabular.WriteCSVFile(path, t); err != nil {
			return fmt.Errorf("CSVWriter.Export: %w", err)
		}
	}
	log := logger.FromContext(ctx)
	log.Info().Str("dir", dir).Msg("CSV report written")
	return nil
}
