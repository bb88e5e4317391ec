package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the reconciler commands.
type Config struct {
	SpreadsheetID       string
	OutputSpreadsheetID string
	CredentialsFile     string
	KeywordSheet        string
	KeywordsFile        string
	InputDir            string
	PartitionsFile      string
	RulesFile           string
	OutputDir           string

	GCSBucket string
	GCSPrefix string

	BigQueryProject string
	BigQueryDataset string

	NotionToken      string
	NotionDatabaseID string

	LogLevel string

	SheetsMinDelay   time.Duration
	SheetsMaxRetries int

	WorkerInterval time.Duration
	// WorkerAddr is the listen address of the worker's job API. Empty disables it.
	WorkerAddr string
}

// Load reads the configuration from the environment, loading a .env file
// first when one is present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SpreadsheetID:       getEnv("RECON_SPREADSHEET_ID", ""),
		OutputSpreadsheetID: getEnv("RECON_OUTPUT_SPREADSHEET_ID", ""),
		CredentialsFile:     getEnv("RECON_CREDENTIALS_FILE", ""),
		KeywordSheet:        getEnv("RECON_KEYWORD_SHEET", "Keyword Mapping"),
		KeywordsFile:        getEnv("RECON_KEYWORDS_FILE", "keywords.csv"),
		InputDir:            getEnv("RECON_INPUT_DIR", "input"),
		PartitionsFile:      getEnv("RECON_PARTITIONS_FILE", ""),
		RulesFile:           getEnv("RECON_RULES_FILE", ""),
		OutputDir:           getEnv("RECON_OUTPUT_DIR", "output"),
		GCSBucket:           getEnv("RECON_GCS_BUCKET", ""),
		GCSPrefix:           getEnv("RECON_GCS_PREFIX", ""),
		BigQueryProject:     getEnv("RECON_BQ_PROJECT", ""),
		BigQueryDataset:     getEnv("RECON_BQ_DATASET", "finance"),
		NotionToken:         getEnv("RECON_NOTION_TOKEN", ""),
		NotionDatabaseID:    getEnv("RECON_NOTION_DATABASE_ID", ""),
		LogLevel:            getEnv("RECON_LOG_LEVEL", "info"),
		WorkerAddr:          getEnv("RECON_WORKER_ADDR", ""),
	}

	delay, err := time.ParseDuration(getEnv("RECON_SHEETS_MIN_DELAY", "1.5s"))
	if err != nil {
		return cfg, fmt.Errorf("Load: RECON_SHEETS_MIN_DELAY: %w", err)
	}
	if delay < 0 {
		return cfg, fmt.Errorf("Load: RECON_SHEETS_MIN_DELAY must not be negative")
	}
	cfg.SheetsMinDelay = delay

	retries, err := strconv.Atoi(getEnv("RECON_SHEETS_MAX_RETRIES", "3"))
	if err != nil {
		return cfg, fmt.Errorf("Load: RECON_SHEETS_MAX_RETRIES: %w", err)
	}
	if retries < 1 {
		return cfg, fmt.Errorf("Load: RECON_SHEETS_MAX_RETRIES must be at least 1")
	}
	cfg.SheetsMaxRetries = retries

	interval, err := time.ParseDuration(getEnv("RECON_WORKER_INTERVAL", "24h"))
	if err != nil {
		return cfg, fmt.Errorf("Load: RECON_WORKER_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return cfg, fmt.Errorf("Load: RECON_WORKER_INTERVAL must be positive")
	}
	cfg.WorkerInterval = interval

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
