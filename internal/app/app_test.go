package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/notionsync"
	"github.com/dvloznov/statement-reconciler/internal/report"
	"github.com/dvloznov/statement-reconciler/internal/tabular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const janStatement = `Date,Transaction,Paid In,Withdrawn,Balance
01/01/2024,Balance brought forward,,,1000.00
05/01/2024,Holding deposit flat 2,100.00,,1100.00
08/01/2024,Airbnb payout,325.00,,1425.00
14/01/2024,Deposit return flat 2,,100.00,1325.00
20/01/2024,Tesco stores,,62.50,1262.50
`

const keywordTable = `Keyword,Subcategory
airbnb,Air bnb
tesco,Groceries
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "input", "Jan 24.csv"), janStatement)
	writeFile(t, filepath.Join(dir, "keywords.csv"), keywordTable)
	return config.Config{
		InputDir:     filepath.Join(dir, "input"),
		OutputDir:    filepath.Join(dir, "output"),
		KeywordsFile: filepath.Join(dir, "keywords.csv"),
		KeywordSheet: "Keyword Mapping",
	}
}

func TestSource(t *testing.T) {
	a := New(testConfig(t))
	ctx := context.Background()

	src, err := a.Source(ctx, SourceLocal)
	require.NoError(t, err)
	assert.IsType(t, tabular.DirSource{}, src)

	_, err = a.Source(ctx, SourceSheets)
	assert.ErrorContains(t, err, "RECON_SPREADSHEET_ID")

	_, err = a.Source(ctx, SourceGCS)
	assert.ErrorContains(t, err, "RECON_GCS_BUCKET")

	_, err = a.Source(ctx, "ftp")
	assert.ErrorContains(t, err, "unknown source")
}

func TestSinks(t *testing.T) {
	a := New(testConfig(t))
	ctx := context.Background()

	sinks, err := a.Sinks(ctx, []string{"csv"})
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.IsType(t, &report.CSVWriter{}, sinks[0])

	_, err = a.Sinks(ctx, []string{SinkSheets})
	assert.ErrorContains(t, err, "no output spreadsheet")

	_, err = a.Sinks(ctx, []string{SinkNotion})
	assert.ErrorContains(t, err, "RECON_NOTION_TOKEN")

	cfg := testConfig(t)
	cfg.NotionToken = "secret"
	cfg.NotionDatabaseID = "db-1"
	sinks, err = New(cfg).Sinks(ctx, []string{SinkNotion})
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.IsType(t, &notionsync.Exporter{}, sinks[1])

	_, err = a.Sinks(ctx, []string{"email"})
	assert.ErrorContains(t, err, "unknown sink")
}

func TestRules_CSVKeywords(t *testing.T) {
	a := New(testConfig(t))

	rs, err := a.Rules(context.Background(), KeywordsCSV)

	require.NoError(t, err)
	assert.Equal(t, []domain.KeywordRule{
		{Keyword: "airbnb", Subcategory: "Air bnb"},
		{Keyword: "tesco", Subcategory: "Groceries"},
	}, rs.Keywords)
	assert.NotEmpty(t, rs.Deposits.Amounts, "defaults apply without a rules file")
}

func TestRules_YAMLKeywords(t *testing.T) {
	cfg := testConfig(t)
	cfg.RulesFile = filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, cfg.RulesFile, "keywords:\n  - keyword: netflix\n    subcategory: Subscriptions\n")
	a := New(cfg)

	rs, err := a.Rules(context.Background(), KeywordsYAML)

	require.NoError(t, err)
	assert.Equal(t, []domain.KeywordRule{{Keyword: "netflix", Subcategory: "Subscriptions"}}, rs.Keywords)
}

func TestRules_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(testConfig(t)).Rules(ctx, KeywordsYAML)
	assert.ErrorIs(t, err, domain.ErrRuleConfig, "a rules file without keywords leaves the table empty")

	_, err = New(testConfig(t)).Rules(ctx, "ldap")
	assert.ErrorContains(t, err, "unknown keyword source")

	_, err = New(testConfig(t)).Rules(ctx, KeywordsSheet)
	assert.ErrorContains(t, err, "RECON_SPREADSHEET_ID")
}

func TestPartitions(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg)

	got, err := a.Partitions([]string{"Jan 24"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 24"}, got)

	_, err = a.Partitions(nil)
	assert.Error(t, err)

	cfg.PartitionsFile = filepath.Join(t.TempDir(), "partitions.txt")
	writeFile(t, cfg.PartitionsFile, "# statements\nJan 24\nFeb 24\n")
	got, err = New(cfg).Partitions(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 24", "Feb 24"}, got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Jan 24", "Feb 24"}, SplitList(" Jan 24, ,Feb 24 "))
	assert.Nil(t, SplitList(""))
}

func TestReconcile_LocalToCSV(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg)
	defer a.Close()

	res, err := a.Reconcile(context.Background(), RunOptions{
		Source:     SourceLocal,
		Keywords:   KeywordsCSV,
		Partitions: []string{"Jan 24"},
	})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Transactions, 4)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, 9, res.Pairs[0].DaysBetween)

	for _, name := range []string{report.TableProcessed, report.TableMatchedDeposits, report.TableSummary} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, res.RunID, name+".csv"))
		assert.NoError(t, err, name)
	}
}

func TestReconcile_StopsBeforeRunOnBadSource(t *testing.T) {
	a := New(testConfig(t))

	res, err := a.Reconcile(context.Background(), RunOptions{
		Source:     "ftp",
		Keywords:   KeywordsCSV,
		Partitions: []string{"Jan 24"},
	})

	assert.Error(t, err)
	assert.Nil(t, res)
}
