package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/api/handlers"
	"github.com/dvloznov/statement-reconciler/internal/app"
	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/jobs"
	"github.com/dvloznov/statement-reconciler/internal/jobs/inmemory"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

func main() {
	source := flag.String("source", app.SourceSheets, "Row source: sheets, gcs or local")
	sinks := flag.String("sinks", "", "Extra sinks besides the CSV report: sheets, bigquery, gcs, notion (comma-separated)")
	keywords := flag.String("keywords", app.KeywordsSheet, "Keyword rule source: sheet, csv, bigquery, gcs or yaml")
	partitions := flag.String("partitions", "", "Partitions to process (comma-separated); defaults to RECON_PARTITIONS_FILE")
	flag.Parse()

	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	a := app.New(cfg)
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, 1, jobStore)

	log.Info().Dur("interval", cfg.WorkerInterval).Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	handler := func(ctx context.Context, job jobs.Job) error {
		runJob, ok := job.(*jobs.ReconcileJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", runJob.JobID).
			Strs("partitions", runJob.Partitions).
			Int("retry", runJob.RetryCount).
			Msg("Processing reconcile job")

		res, err := a.Reconcile(ctx, app.RunOptions{
			Source:     *source,
			Sinks:      app.SplitList(*sinks),
			Keywords:   *keywords,
			Partitions: runJob.Partitions,
		})
		if res != nil {
			runJob.RunID = res.RunID
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", runJob.JobID).
				Str("run_id", runJob.RunID).
				Msg("Reconciliation failed")
			return err
		}

		log.Info().
			Str("job_id", runJob.JobID).
			Str("run_id", runJob.RunID).
			Int("transactions", len(res.Transactions)).
			Int("pairs", len(res.Pairs)).
			Int("issues", len(res.Issues)).
			Msg("Reconciliation completed successfully")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	enqueue := func() {
		parts, err := a.Partitions(app.SplitList(*partitions))
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve partitions")
			return
		}
		if err := jobQueue.PublishReconcile(ctx, &jobs.ReconcileJob{Partitions: parts}); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue reconcile job")
		}
	}

	var server *http.Server
	if cfg.WorkerAddr != "" {
		jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, a.Partitions)
		server = &http.Server{
			Addr:         cfg.WorkerAddr,
			Handler:      handlers.NewRouter(jobsHandler, log),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.WorkerAddr).Msg("Starting job API")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("Failed to start job API")
			}
		}()
	}

	enqueue()
	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("Worker service started")

loop:
	for {
		select {
		case <-ticker.C:
			enqueue()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Job API forced to shutdown")
		}
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
