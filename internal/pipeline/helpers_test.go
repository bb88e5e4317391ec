package pipeline

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

// newTx builds a transaction with ISO date and plain amounts.
func newTx(t *testing.T, ordinal int, date, desc, paidIn, withdrawn string) *domain.Transaction {
	t.Helper()
	return &domain.Transaction{
		Date:            mustDate(t, date),
		Description:     desc,
		PaidIn:          dec(paidIn),
		Withdrawn:       dec(withdrawn),
		SourcePartition: "test",
		SourceRow:       ordinal + 1,
		RowOrdinal:      ordinal,
	}
}
