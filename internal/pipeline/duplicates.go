package pipeline

import (
	"sort"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// DuplicateResult reports the rows flagged as repeats.
type DuplicateResult struct {
	Flagged []int // row ordinals, ascending
}

type duplicateKey struct {
	date        string
	description string
	paidIn      string
	withdrawn   string
}

func keyOf(tx *domain.Transaction) duplicateKey {
	// String() on a decimal is canonical, so 50 and 50.00 compare equal.
	return duplicateKey{
		date:        tx.Date.String(),
		description: strings.TrimSpace(tx.Description),
		paidIn:      tx.PaidIn.String(),
		withdrawn:   tx.Withdrawn.String(),
	}
}

// DetectDuplicates flags every transaction that repeats an earlier one on
// (date, description, paid in, withdrawn). The earliest row by RowOrdinal is
// kept untouched; each repeat gets the duplicate note and the ignore label.
func DetectDuplicates(txs []*domain.Transaction) DuplicateResult {
	ordered := make([]*domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RowOrdinal < ordered[j].RowOrdinal
	})

	var res DuplicateResult
	seen := make(map[duplicateKey]struct{}, len(ordered))
	for _, tx := range ordered {
		k := keyOf(tx)
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			continue
		}
		tx.Notes = domain.NoteDuplicate
		tx.Subcategory = domain.LabelIgnore
		tx.Duplicate = true
		res.Flagged = append(res.Flagged, tx.RowOrdinal)
	}
	return res
}
