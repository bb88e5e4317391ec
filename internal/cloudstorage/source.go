package cloudstorage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/report"
	"github.com/dvloznov/statement-reconciler/internal/tabular"
)

// Source serves partitions from CSV objects at <Prefix>/<partition>.csv.
type Source struct {
	Store  ObjectStore
	Bucket string
	Prefix string
}

// FetchRows implements pipeline.RowSource.
func (s *Source) FetchRows(ctx context.Context, partition string) ([][]string, error) {
	object := objectPath(s.Prefix, tabular.FileName(partition)+".csv")
	data, err := s.Store.ReadObject(ctx, s.Bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Source.FetchRows: %w", err)
	}
	return tabular.ReadCSV(bytes.NewReader(data))
}

// KeywordRules reads a keyword mapping CSV object.
func (s *Source) KeywordRules(ctx context.Context, object string) ([]domain.KeywordRule, error) {
	object = objectPath(s.Prefix, object)
	data, err := s.Store.ReadObject(ctx, s.Bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Source.KeywordRules: %w", err)
	}
	rows, err := tabular.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("Source.KeywordRules: %w", err)
	}
	return pipeline.ParseKeywordRows("gs://"+s.Bucket+"/"+object, rows)
}

// Uploader stores every run table as <Prefix>/runs/<RunID>/<table>.csv.
type Uploader struct {
	Store  ObjectStore
	Bucket string
	Prefix string
}

// Export implements pipeline.Sink.
func (u *Uploader) Export(ctx context.Context, res *pipeline.RunResult) error {
	log := logger.FromContext(ctx)
	for _, t := range report.Tables(res) {
		var buf bytes.Buffer
		if err := tabular.WriteCSV(&buf, t); err != nil {
			return fmt.Errorf("Uploader.Export: %w", err)
		}
		object := objectPath(u.Prefix, "runs", res.RunID, t.Name+".csv")
		if err := u.Store.WriteObject(ctx, u.Bucket, object, "text/csv", buf.Bytes()); err != nil {
			return fmt.Errorf("Uploader.Export: %w", err)
		}
	}
	log.Info().
		Str("bucket", u.Bucket).
		Str("prefix", objectPath(u.Prefix, "runs", res.RunID)).
		Msg("Run report uploaded")
	return nil
}

// UploadPartition stores a local statement CSV as the object backing a partition.
func (u *Uploader) UploadPartition(ctx context.Context, partition, localPath string) error {
	rows, err := tabular.ReadCSVFile(localPath)
	if err != nil {
		return fmt.Errorf("UploadPartition: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("UploadPartition: %s is empty", localPath)
	}
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, tabular.Table{Name: partition, Header: rows[0], Rows: rows[1:]}); err != nil {
		return fmt.Errorf("UploadPartition: %w", err)
	}
	object := objectPath(u.Prefix, tabular.FileName(partition)+".csv")
	if err := u.Store.WriteObject(ctx, u.Bucket, object, "text/csv", buf.Bytes()); err != nil {
		return fmt.Errorf("UploadPartition: %w", err)
	}
	return nil
}
