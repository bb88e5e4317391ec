// Package app wires configuration, row sources, rule sources and sinks into
// reconciliation runs for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/cloudstorage"
	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/notionsync"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/report"
	"github.com/dvloznov/statement-reconciler/internal/sheets"
	"github.com/dvloznov/statement-reconciler/internal/tabular"
)

// Row source kinds.
const (
	SourceSheets = "sheets"
	SourceGCS    = "gcs"
	SourceLocal  = "local"
)

// Sink names. The CSV report is always written.
const (
	SinkSheets   = "sheets"
	SinkBigQuery = "bigquery"
	SinkGCS      = "gcs"
	SinkNotion   = "notion"
)

// Keyword rule sources.
const (
	KeywordsSheet    = "sheet"
	KeywordsCSV      = "csv"
	KeywordsBigQuery = "bigquery"
	KeywordsGCS      = "gcs"
	KeywordsYAML     = "yaml"
)

// RunOptions selects where a run reads from and writes to.
type RunOptions struct {
	Source     string
	Sinks      []string
	Keywords   string
	Partitions []string
}

// App lazily creates the cloud clients a run needs and closes them together.
type App struct {
	cfg config.Config

	sheetsClient *sheets.Client
	store        *cloudstorage.GCSStore
	bq           *infraBQ.BigQueryRepository
}

// New creates an App for the given configuration.
func New(cfg config.Config) *App {
	return &App{cfg: cfg}
}

// Close releases every client that was created.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.bq != nil {
		errs = append(errs, a.bq.Close())
	}
	return errors.Join(errs...)
}

func (a *App) sheetsClientFor(ctx context.Context) (*sheets.Client, error) {
	if a.sheetsClient != nil {
		return a.sheetsClient, nil
	}
	api, err := sheets.NewServiceAPI(ctx, a.cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	a.sheetsClient = sheets.NewClient(api, sheets.Options{
		MinDelay:   a.cfg.SheetsMinDelay,
		MaxRetries: a.cfg.SheetsMaxRetries,
	})
	return a.sheetsClient, nil
}

func (a *App) storage(ctx context.Context) (*cloudstorage.GCSStore, error) {
	if a.cfg.GCSBucket == "" {
		return nil, fmt.Errorf("RECON_GCS_BUCKET is not set")
	}
	if a.store != nil {
		return a.store, nil
	}
	store, err := cloudstorage.NewGCSStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *App) bigQuery(ctx context.Context) (*infraBQ.BigQueryRepository, error) {
	if a.bq != nil {
		return a.bq, nil
	}
	repo, err := infraBQ.NewBigQueryRepository(ctx, a.cfg.BigQueryProject, a.cfg.BigQueryDataset)
	if err != nil {
		return nil, err
	}
	a.bq = repo
	return repo, nil
}

// Source builds the row source of the given kind.
func (a *App) Source(ctx context.Context, kind string) (pipeline.RowSource, error) {
	switch kind {
	case SourceLocal:
		return tabular.DirSource{Dir: a.cfg.InputDir}, nil
	case SourceSheets:
		if a.cfg.SpreadsheetID == "" {
			return nil, fmt.Errorf("Source: RECON_SPREADSHEET_ID is not set")
		}
		c, err := a.sheetsClientFor(ctx)
		if err != nil {
			return nil, fmt.Errorf("Source: %w", err)
		}
		return &sheets.Source{Client: c, SpreadsheetID: a.cfg.SpreadsheetID}, nil
	case SourceGCS:
		store, err := a.storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("Source: %w", err)
		}
		return &cloudstorage.Source{Store: store, Bucket: a.cfg.GCSBucket, Prefix: a.cfg.GCSPrefix}, nil
	default:
		return nil, fmt.Errorf("Source: unknown source %q (want %s, %s or %s)", kind, SourceSheets, SourceGCS, SourceLocal)
	}
}

// Sinks builds the CSV writer followed by every named sink.
func (a *App) Sinks(ctx context.Context, names []string) ([]pipeline.Sink, error) {
	sinks := []pipeline.Sink{&report.CSVWriter{Dir: a.cfg.OutputDir}}
	for _, name := range names {
		switch name {
		case "csv":
		case SinkSheets:
			id := a.cfg.OutputSpreadsheetID
			if id == "" {
				id = a.cfg.SpreadsheetID
			}
			if id == "" {
				return nil, fmt.Errorf("Sinks: no output spreadsheet configured")
			}
			c, err := a.sheetsClientFor(ctx)
			if err != nil {
				return nil, fmt.Errorf("Sinks: %w", err)
			}
			sinks = append(sinks, &sheets.Exporter{Client: c, SpreadsheetID: id})
		case SinkBigQuery:
			repo, err := a.bigQuery(ctx)
			if err != nil {
				return nil, fmt.Errorf("Sinks: %w", err)
			}
			sinks = append(sinks, &infraBQ.Exporter{Repo: repo})
		case SinkGCS:
			store, err := a.storage(ctx)
			if err != nil {
				return nil, fmt.Errorf("Sinks: %w", err)
			}
			sinks = append(sinks, &cloudstorage.Uploader{Store: store, Bucket: a.cfg.GCSBucket, Prefix: a.cfg.GCSPrefix})
		case SinkNotion:
			if a.cfg.NotionToken == "" || a.cfg.NotionDatabaseID == "" {
				return nil, fmt.Errorf("Sinks: RECON_NOTION_TOKEN and RECON_NOTION_DATABASE_ID are required")
			}
			sinks = append(sinks, &notionsync.Exporter{
				Service:    notionsync.NewNotionClient(a.cfg.NotionToken),
				DatabaseID: a.cfg.NotionDatabaseID,
			})
		default:
			return nil, fmt.Errorf("Sinks: unknown sink %q", name)
		}
	}
	return sinks, nil
}

// Rules loads the rules file over the defaults and replaces the keyword table
// with the one from the chosen keyword source.
func (a *App) Rules(ctx context.Context, keywords string) (pipeline.RuleSet, error) {
	rs, err := config.LoadRules(a.cfg.RulesFile)
	if err != nil {
		return rs, fmt.Errorf("Rules: %w", err)
	}

	var kw []domain.KeywordRule
	switch keywords {
	case KeywordsYAML:
		kw = rs.Keywords
	case KeywordsCSV:
		rows, err := tabular.ReadCSVFile(a.cfg.KeywordsFile)
		if err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
		kw, err = pipeline.ParseKeywordRows(a.cfg.KeywordsFile, rows)
		if err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
	case KeywordsSheet:
		if a.cfg.SpreadsheetID == "" {
			return rs, fmt.Errorf("Rules: RECON_SPREADSHEET_ID is not set")
		}
		c, err := a.sheetsClientFor(ctx)
		if err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
		src := &sheets.Source{Client: c, SpreadsheetID: a.cfg.SpreadsheetID}
		if kw, err = src.KeywordRules(ctx, a.cfg.KeywordSheet); err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
	case KeywordsGCS:
		store, err := a.storage(ctx)
		if err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
		src := &cloudstorage.Source{Store: store, Bucket: a.cfg.GCSBucket, Prefix: a.cfg.GCSPrefix}
		if kw, err = src.KeywordRules(ctx, filepath.Base(a.cfg.KeywordsFile)); err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
	case KeywordsBigQuery:
		repo, err := a.bigQuery(ctx)
		if err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
		if kw, err = repo.ListKeywordRules(ctx); err != nil {
			return rs, fmt.Errorf("Rules: %w", err)
		}
	default:
		return rs, fmt.Errorf("Rules: unknown keyword source %q", keywords)
	}

	rs.Keywords = kw
	if err := rs.Validate(); err != nil {
		return rs, fmt.Errorf("Rules: %w", err)
	}
	return rs, nil
}

// Partitions returns the explicit list when given, otherwise the partitions file.
func (a *App) Partitions(explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	if a.cfg.PartitionsFile == "" {
		return nil, fmt.Errorf("Partitions: no partitions given and RECON_PARTITIONS_FILE is not set")
	}
	return config.LoadPartitions(a.cfg.PartitionsFile)
}

// Reconcile runs the pipeline and exports the result to every sink. The
// result is returned even when export fails so callers can report it.
func (a *App) Reconcile(ctx context.Context, opts RunOptions) (*pipeline.RunResult, error) {
	log := logger.FromContext(ctx)

	partitions, err := a.Partitions(opts.Partitions)
	if err != nil {
		return nil, err
	}
	rules, err := a.Rules(ctx, opts.Keywords)
	if err != nil {
		return nil, err
	}
	source, err := a.Source(ctx, opts.Source)
	if err != nil {
		return nil, err
	}
	sinks, err := a.Sinks(ctx, opts.Sinks)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", opts.Source).
		Strs("partitions", partitions).
		Strs("sinks", opts.Sinks).
		Msg("Starting reconciliation")

	res, err := pipeline.Run(ctx, source, partitions, rules)
	if err != nil {
		return res, err
	}
	if err := pipeline.Export(ctx, res, sinks...); err != nil {
		return res, err
	}
	return res, nil
}

// SplitList parses a comma-separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
