package notionsync

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Review kinds for rows that are not issues.
const (
	KindUnmatchedDeposit = "Unmatched Deposit"
	KindUnmatchedReturn  = "Unmatched Return"
	KindMiscellaneous    = "Miscellaneous"
)

// Property names of the review database.
const (
	propDescription = "Description"
	propKind        = "Kind"
	propDetail      = "Detail"
	propPartition   = "Partition"
	propDate        = "Date"
	propAmount      = "Amount"
	propRunID       = "Run ID"
	propReviewKey   = "Review Key"
)

// ReviewItem is one row that needs a human look.
type ReviewItem struct {
	Kind        string
	Partition   string
	Description string
	Detail      string
	Date        civil.Date
	Amount      decimal.Decimal
}

// Key identifies the item across runs so the same finding is filed once.
func (r ReviewItem) Key() string {
	return strings.Join([]string{
		r.Kind,
		r.Partition,
		r.Date.String(),
		strings.ToLower(strings.TrimSpace(r.Description)),
		r.Amount.String(),
		r.Detail,
	}, "|")
}

// ReviewItems collects the issues, unmatched deposits and returns, and
// miscellaneous rows of a run.
func ReviewItems(res *pipeline.RunResult) []ReviewItem {
	var items []ReviewItem
	for _, is := range res.Issues {
		items = append(items, ReviewItem{
			Kind:        string(is.Kind),
			Partition:   is.Partition,
			Description: is.Description,
			Detail:      is.Detail,
		})
	}
	add := func(kind string, txs []*domain.Transaction) {
		for _, tx := range txs {
			amount, _ := tx.FlowAmount()
			items = append(items, ReviewItem{
				Kind:        kind,
				Partition:   tx.SourcePartition,
				Description: tx.Description,
				Date:        tx.Date,
				Amount:      amount,
			})
		}
	}
	add(KindUnmatchedDeposit, res.UnmatchedDeposits)
	add(KindUnmatchedReturn, res.UnmatchedReturns)
	add(KindMiscellaneous, res.Miscellaneous)
	return items
}

// ReviewItemToNotionProperties maps an item to the review database schema:
// Description, Kind, Detail, Partition, Date, Amount, Run ID, Review Key.
func ReviewItemToNotionProperties(item ReviewItem, runID string) notionapi.Properties {
	props := notionapi.Properties{
		propDescription: notionapi.TitleProperty{
			Title: richText(item.Description),
		},
		propKind: notionapi.SelectProperty{
			Select: notionapi.Option{Name: item.Kind},
		},
		propPartition: notionapi.RichTextProperty{
			RichText: richText(item.Partition),
		},
		propRunID: notionapi.RichTextProperty{
			RichText: richText(runID),
		},
		propReviewKey: notionapi.RichTextProperty{
			RichText: richText(item.Key()),
		},
	}

	if item.Detail != "" {
		props[propDetail] = notionapi.RichTextProperty{RichText: richText(item.Detail)}
	}

	if !item.Date.IsZero() {
		d := notionapi.Date(item.Date.In(time.UTC))
		props[propDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	if !item.Amount.IsZero() {
		props[propAmount] = notionapi.NumberProperty{Number: item.Amount.InexactFloat64()}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// extractReviewKey reads the Review Key property of an existing page.
// Returns empty string if not found.
func extractReviewKey(page notionapi.Page) string {
	if prop, ok := page.Properties[propReviewKey]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			var b strings.Builder
			for _, t := range rt.RichText {
				b.WriteString(t.PlainText)
			}
			return b.String()
		}
	}
	return ""
}
