package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"RECON_KEYWORD_SHEET", "RECON_OUTPUT_DIR", "RECON_BQ_DATASET", "RECON_SHEETS_MIN_DELAY", "RECON_SHEETS_MAX_RETRIES", "RECON_INPUT_DIR", "RECON_KEYWORDS_FILE", "RECON_WORKER_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Keyword Mapping", cfg.KeywordSheet)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "finance", cfg.BigQueryDataset)
	assert.Equal(t, 1500*time.Millisecond, cfg.SheetsMinDelay)
	assert.Equal(t, 3, cfg.SheetsMaxRetries)
	assert.Equal(t, "input", cfg.InputDir)
	assert.Equal(t, "keywords.csv", cfg.KeywordsFile)
	assert.Equal(t, 24*time.Hour, cfg.WorkerInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RECON_SPREADSHEET_ID", "sheet-123")
	t.Setenv("RECON_SHEETS_MIN_DELAY", "250ms")
	t.Setenv("RECON_SHEETS_MAX_RETRIES", "5")
	t.Setenv("RECON_GCS_BUCKET", "statements")
	t.Setenv("RECON_NOTION_TOKEN", "secret_abc")
	t.Setenv("RECON_NOTION_DATABASE_ID", "db-1")
	t.Setenv("RECON_WORKER_ADDR", ":8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sheet-123", cfg.SpreadsheetID)
	assert.Equal(t, 250*time.Millisecond, cfg.SheetsMinDelay)
	assert.Equal(t, 5, cfg.SheetsMaxRetries)
	assert.Equal(t, "statements", cfg.GCSBucket)
	assert.Equal(t, "secret_abc", cfg.NotionToken)
	assert.Equal(t, "db-1", cfg.NotionDatabaseID)
	assert.Equal(t, ":8080", cfg.WorkerAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"RECON_SHEETS_MIN_DELAY", "soon"},
		{"RECON_SHEETS_MIN_DELAY", "-1s"},
		{"RECON_SHEETS_MAX_RETRIES", "many"},
		{"RECON_SHEETS_MAX_RETRIES", "0"},
		{"RECON_WORKER_INTERVAL", "0s"},
		{"RECON_WORKER_INTERVAL", "daily"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseRules(t *testing.T) {
	data := []byte(`
keywords:
  - keyword: tesco
    subcategory: Groceries
priority_rules:
  - dominant: Air bnb
    subordinate: Cleaning
removal_patterns:
  - reason: balance_forward
    patterns: ["opening balance"]
deposits:
  amounts: ["25", "75.50"]
  quick_return_days: 2
`)

	rs, err := ParseRules(data)
	require.NoError(t, err)

	require.Len(t, rs.Keywords, 1)
	assert.Equal(t, "Groceries", rs.Keywords[0].Subcategory)
	assert.Equal(t, "Cleaning", rs.Priorities[0].Subordinate)
	require.Len(t, rs.RemovalGroups, 1)
	assert.Equal(t, domain.RemovalBalanceForward, rs.RemovalGroups[0].Reason)

	require.Len(t, rs.Deposits.Amounts, 2)
	assert.Equal(t, "75.5", rs.Deposits.Amounts[1].String())
	assert.Equal(t, 2, rs.Deposits.QuickReturnDays)
	assert.Equal(t, 30, rs.Deposits.DelayedReturnDays, "unset fields keep defaults")
	assert.Contains(t, rs.Deposits.DepositKeywords, "security deposit")
}

func TestParseRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "keywords: [unterminated"},
		{"unknown reason", "removal_patterns:\n  - reason: Metro Bank DD\n    patterns: [x]\n"},
		{"bad amount", "deposits:\n  amounts: [fifty]\n"},
		{"empty whitelist", "deposits:\n  amounts: []\n"},
		{"contradictory priorities", "priority_rules:\n  - {dominant: A, subordinate: B}\n  - {dominant: B, subordinate: A}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrRuleConfig))
		})
	}
}

func TestLoadRules_FileRoundTrip(t *testing.T) {
	rs := DefaultRules()
	rs.Keywords = []domain.KeywordRule{{Keyword: "water", Subcategory: "Utilities"}}

	data, err := MarshalRules(rs)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, rs.Keywords, loaded.Keywords)
	assert.Equal(t, rs.Priorities, loaded.Priorities)
	assert.Equal(t, rs.RemovalGroups, loaded.RemovalGroups)
	assert.Equal(t, len(rs.Deposits.Amounts), len(loaded.Deposits.Amounts))
}

func TestLoadRules_EmptyPathUsesDefaults(t *testing.T) {
	rs, err := LoadRules("")
	require.NoError(t, err)
	assert.Empty(t, rs.Keywords)
	assert.NotEmpty(t, rs.RemovalGroups)
}

func TestParsePartitions(t *testing.T) {
	names, err := ParsePartitions(strings.NewReader("Jan 24\n\n# skipped\n Feb 24 \nJan 24\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 24", "Feb 24"}, names)

	_, err = ParsePartitions(strings.NewReader("\n# nothing\n"))
	assert.Error(t, err)
}

func TestLoadPartitions_MissingFile(t *testing.T) {
	_, err := LoadPartitions(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
