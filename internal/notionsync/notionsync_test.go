package notionsync

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	return &notionapi.Page{}, nil
}

func (m *mockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, req)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func sampleResult() *pipeline.RunResult {
	deposit := &domain.Transaction{
		Date:            civil.Date{Year: 2024, Month: 1, Day: 5},
		Description:     "Holding deposit flat 2",
		PaidIn:          decimal.NewFromInt(100),
		SourcePartition: "Jan 24",
	}
	misc := &domain.Transaction{
		Date:            civil.Date{Year: 2024, Month: 1, Day: 9},
		Description:     "Transfer from J Smith",
		PaidIn:          decimal.NewFromInt(50),
		SourcePartition: "Jan 24",
	}
	return &pipeline.RunResult{
		RunID:             "run-1",
		UnmatchedDeposits: []*domain.Transaction{deposit},
		Miscellaneous:     []*domain.Transaction{misc},
		Issues: []domain.Issue{
			domain.NewIssue(misc, domain.IssueMultipleCategories, "Groceries, Transport"),
		},
	}
}

func pageWithKey(key string) notionapi.Page {
	return notionapi.Page{
		Properties: notionapi.Properties{
			propReviewKey: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: key}},
			},
		},
	}
}

func TestReviewItems(t *testing.T) {
	items := ReviewItems(sampleResult())

	require.Len(t, items, 3)
	assert.Equal(t, string(domain.IssueMultipleCategories), items[0].Kind)
	assert.Equal(t, "Groceries, Transport", items[0].Detail)
	assert.True(t, items[0].Date.IsZero(), "issues carry no date")

	assert.Equal(t, KindUnmatchedDeposit, items[1].Kind)
	assert.True(t, decimal.NewFromInt(100).Equal(items[1].Amount))
	assert.Equal(t, "Jan 24", items[1].Partition)

	assert.Equal(t, KindMiscellaneous, items[2].Kind)
}

func TestReviewItem_Key(t *testing.T) {
	a := ReviewItem{Kind: KindMiscellaneous, Partition: "Jan 24", Description: " Tesco ", Amount: decimal.NewFromInt(5)}
	b := ReviewItem{Kind: KindMiscellaneous, Partition: "Jan 24", Description: "tesco", Amount: decimal.RequireFromString("5.00")}

	assert.NotEqual(t, a.Key(), ReviewItem{Kind: KindUnmatchedReturn, Partition: "Jan 24", Description: "tesco"}.Key())
	assert.Equal(t, a.Key(), ReviewItem{Kind: KindMiscellaneous, Partition: "Jan 24", Description: "TESCO", Amount: decimal.NewFromInt(5)}.Key())
	// decimal.String drops trailing zeros, so 5 and 5.00 share a key
	assert.Equal(t, a.Key(), b.Key())
}

func TestReviewItemToNotionProperties(t *testing.T) {
	item := ReviewItem{
		Kind:        KindUnmatchedDeposit,
		Partition:   "Jan 24",
		Description: "Holding deposit flat 2",
		Date:        civil.Date{Year: 2024, Month: 1, Day: 5},
		Amount:      decimal.RequireFromString("100.50"),
	}

	props := ReviewItemToNotionProperties(item, "run-1")

	title, ok := props[propDescription].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Holding deposit flat 2", title.Title[0].Text.Content)

	kind, ok := props[propKind].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, KindUnmatchedDeposit, kind.Select.Name)

	amount, ok := props[propAmount].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, 100.5, amount.Number)

	date, ok := props[propDate].(notionapi.DateProperty)
	require.True(t, ok)
	require.NotNil(t, date.Date.Start)

	key, ok := props[propReviewKey].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Equal(t, item.Key(), key.RichText[0].Text.Content)

	_, hasDetail := props[propDetail]
	assert.False(t, hasDetail)
}

func TestReviewItemToNotionProperties_IssueWithoutDateOrAmount(t *testing.T) {
	props := ReviewItemToNotionProperties(ReviewItem{
		Kind:        string(domain.IssueQuickReturn),
		Description: "Deposit return",
		Detail:      "Returned after 3 days",
	}, "run-1")

	assert.NotContains(t, props, propDate)
	assert.NotContains(t, props, propAmount)
	assert.Contains(t, props, propDetail)
}

func TestExtractReviewKey(t *testing.T) {
	assert.Equal(t, "k1", extractReviewKey(pageWithKey("k1")))
	assert.Equal(t, "", extractReviewKey(notionapi.Page{Properties: notionapi.Properties{}}))
}

func TestExporter_CreatesOnlyNewItems(t *testing.T) {
	res := sampleResult()
	items := ReviewItems(res)

	var created []notionapi.Properties
	var queries []notionapi.Cursor
	svc := &mockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			assert.Equal(t, "db-1", databaseID)
			queries = append(queries, req.StartCursor)
			if req.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{pageWithKey("unrelated")},
					HasMore:    true,
					NextCursor: "page-2",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{pageWithKey(items[1].Key())},
			}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			created = append(created, properties)
			return &notionapi.Page{}, nil
		},
	}

	e := &Exporter{Service: svc, DatabaseID: "db-1"}
	require.NoError(t, e.Export(context.Background(), res))

	assert.Equal(t, []notionapi.Cursor{"", "page-2"}, queries)
	require.Len(t, created, 2, "the unmatched deposit is already filed")
	runID := created[0][propRunID].(notionapi.RichTextProperty)
	assert.Equal(t, "run-1", runID.RichText[0].Text.Content)
}

func TestExporter_DryRunCreatesNothing(t *testing.T) {
	svc := &mockNotionService{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			t.Fatal("CreatePage called in dry run")
			return nil, nil
		},
	}

	e := &Exporter{Service: svc, DatabaseID: "db-1", DryRun: true}
	assert.NoError(t, e.Export(context.Background(), sampleResult()))
}

func TestExporter_NothingToReview(t *testing.T) {
	svc := &mockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			t.Fatal("QueryDatabase called with no items")
			return nil, nil
		},
	}

	e := &Exporter{Service: svc, DatabaseID: "db-1"}
	assert.NoError(t, e.Export(context.Background(), &pipeline.RunResult{RunID: "run-1"}))
}

func TestExporter_Errors(t *testing.T) {
	queryErr := errors.New("rate limited")
	e := &Exporter{
		Service: &mockNotionService{
			QueryDatabaseFunc: func(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
				return nil, queryErr
			},
		},
		DatabaseID: "db-1",
	}
	assert.ErrorIs(t, e.Export(context.Background(), sampleResult()), queryErr)

	createErr := errors.New("validation failed")
	e.Service = &mockNotionService{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			return nil, createErr
		},
	}
	err := e.Export(context.Background(), sampleResult())
	assert.ErrorIs(t, err, createErr)
	assert.ErrorContains(t, err, "Multiple Categories")
}
