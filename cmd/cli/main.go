package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/app"
	"github.com/dvloznov/statement-reconciler/internal/cloudstorage"
	"github.com/dvloznov/statement-reconciler/internal/config"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(log, cfg)
	case "rules":
		runRules(log, cfg)
	case "upload":
		runUpload(log, cfg)
	case "bootstrap":
		runBootstrap(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Reconciler CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process     Reconcile statement partitions and export the run")
	fmt.Println("  rules       Validate and print the loaded rule set")
	fmt.Println("  upload      Upload a local statement CSV to GCS as a partition")
	fmt.Println("  bootstrap   Create the BigQuery tables if they are missing")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runProcess(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	source := fs.String("source", app.SourceSheets, "Row source: sheets, gcs or local")
	sinks := fs.String("sinks", "", "Extra sinks besides the CSV report: sheets, bigquery, gcs, notion (comma-separated)")
	keywords := fs.String("keywords", app.KeywordsSheet, "Keyword rule source: sheet, csv, bigquery, gcs or yaml")
	partitions := fs.String("partitions", "", "Partitions to process (comma-separated); defaults to RECON_PARTITIONS_FILE")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := app.New(cfg)
	defer a.Close()

	res, err := a.Reconcile(ctx, app.RunOptions{
		Source:     *source,
		Sinks:      app.SplitList(*sinks),
		Keywords:   *keywords,
		Partitions: app.SplitList(*partitions),
	})
	if res != nil {
		printSummary(res)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Printf("Report written to %s/%s\n", cfg.OutputDir, res.RunID)
}

func printSummary(res *pipeline.RunResult) {
	totals := res.Totals()
	fmt.Println("\n=== Run Summary ===")
	fmt.Printf("Run ID:          %s\n", res.RunID)
	fmt.Printf("Partitions:      %d (%d failed)\n", len(res.Partitions), len(res.PartitionErrors))
	fmt.Printf("Transactions:    %d\n", totals.Count)
	fmt.Printf("Removed rows:    %d\n", len(res.AllRemoved()))
	fmt.Printf("Categorized:     %d of %d\n", res.Categorize.Categorized, res.Categorize.Total)
	fmt.Printf("Duplicates:      %d\n", res.DuplicatesFound)
	fmt.Printf("Matched pairs:   %d\n", len(res.Pairs))
	fmt.Printf("Unmatched:       %d deposits, %d returns\n", len(res.UnmatchedDeposits), len(res.UnmatchedReturns))
	fmt.Printf("Issues:          %d\n", len(res.Issues))
	fmt.Printf("Paid in:         £%s\n", totals.PaidIn.StringFixed(2))
	fmt.Printf("Withdrawn:       £%s\n", totals.Withdrawn.StringFixed(2))
	fmt.Printf("Net:             £%s\n", totals.Net.StringFixed(2))
	for _, pe := range res.PartitionErrors {
		fmt.Printf("  ! %s\n", pe.Error())
	}
	fmt.Println()
}

func runRules(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	keywords := fs.String("keywords", app.KeywordsSheet, "Keyword rule source: sheet, csv, bigquery, gcs or yaml")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	a := app.New(cfg)
	defer a.Close()

	rs, err := a.Rules(ctx, *keywords)
	if err != nil {
		log.Fatal().Err(err).Msg("Rule set is invalid")
	}

	out, err := config.MarshalRules(rs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render rules")
	}
	fmt.Print(string(out))
}

func runUpload(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	partition := fs.String("partition", "", "Partition name the file is stored as")
	filePath := fs.String("file", "", "Path to local statement CSV")
	fs.Parse(os.Args[2:])

	if *partition == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -partition NAME -file PATH")
	}
	if cfg.GCSBucket == "" {
		log.Fatal().Msg("Error: RECON_GCS_BUCKET is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := cloudstorage.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer store.Close()

	up := &cloudstorage.Uploader{Store: store, Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix}
	if err := up.UploadPartition(ctx, *partition, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s as partition %q to gs://%s\n", *filePath, *partition, cfg.GCSBucket)
}

func runBootstrap(log zerolog.Logger, cfg config.Config) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	project := fs.String("project", cfg.BigQueryProject, "GCP project ID")
	dataset := fs.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: -project or RECON_BQ_PROJECT is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	if err := repo.EnsureTables(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bootstrap failed")
	}

	fmt.Printf("Tables ready in %s.%s\n", *project, *dataset)
}
