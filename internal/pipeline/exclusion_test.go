package pipeline

import (
	"testing"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExclusions(t *testing.T) {
	blank := newTx(t, 1, "2024-01-01", "   ", "", "5")
	ignored := newTx(t, 2, "2024-01-02", "Brought forward transfer", "", "5")
	ignored.Subcategory = "IGNORE THESE"
	brought := newTx(t, 3, "2024-01-03", "Total brought forward", "", "")
	closing := newTx(t, 4, "2024-01-04", "Closing Balance", "", "")
	keep := newTx(t, 5, "2024-01-05", "Rent", "500", "")

	res := ClassifyExclusions([]*domain.Transaction{blank, ignored, brought, closing, keep})

	require.Len(t, res.Valid, 1)
	assert.Same(t, keep, res.Valid[0])

	require.Len(t, res.Excluded, 4)
	assert.Equal(t, domain.ExclusionEmptyTransaction, res.Excluded[0].Reason)
	assert.Equal(t, domain.ExclusionMarkedForIgnore, res.Excluded[1].Reason, "ignore marker is checked before description patterns")
	assert.Equal(t, domain.ExclusionBroughtForward, res.Excluded[2].Reason)
	assert.Equal(t, domain.ExclusionClosingBalance, res.Excluded[3].Reason)

	assert.Equal(t, map[domain.ExclusionReason]int{
		domain.ExclusionEmptyTransaction: 1,
		domain.ExclusionMarkedForIgnore:  1,
		domain.ExclusionBroughtForward:   1,
		domain.ExclusionClosingBalance:   1,
	}, res.Counts)
}

func TestClassifyExclusions_Idempotent(t *testing.T) {
	txs := []*domain.Transaction{
		newTx(t, 1, "2024-01-01", "", "", ""),
		newTx(t, 2, "2024-01-02", "Coffee", "", "3"),
		newTx(t, 3, "2024-01-03", "closing balance", "", ""),
		newTx(t, 4, "2024-01-04", "Salary", "2000", ""),
	}
	txs[1].Subcategory = domain.LabelIgnore

	first := ClassifyExclusions(txs)
	second := ClassifyExclusions(first.Valid)

	assert.Equal(t, first.Valid, second.Valid)
	assert.Empty(t, second.Excluded)
	assert.Empty(t, second.Counts)
}

func TestExcludedTransaction_AsRemovedRow(t *testing.T) {
	res := ClassifyExclusions([]*domain.Transaction{newTx(t, 1, "2024-01-01", "closing balance", "", "")})
	require.Len(t, res.Excluded, 1)

	row := res.Excluded[0].AsRemovedRow()
	assert.Equal(t, domain.RemovalExclusionRule, row.Reason)
	assert.Equal(t, string(domain.ExclusionClosingBalance), row.Detail)
	assert.Equal(t, "closing balance", row.Description)
}
