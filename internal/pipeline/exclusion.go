package pipeline

import (
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// ExclusionResult partitions transactions into the ones that stay and the
// ones set aside.
type ExclusionResult struct {
	Valid    []*domain.Transaction
	Excluded []domain.ExcludedTransaction
	Counts   map[domain.ExclusionReason]int
}

// ClassifyExclusions splits transactions into valid and excluded sets. The
// checks run in domain.ExclusionReasons order and the first hit wins.
// Running it again on its own Valid output excludes nothing.
func ClassifyExclusions(txs []*domain.Transaction) ExclusionResult {
	res := ExclusionResult{
		Valid:  make([]*domain.Transaction, 0, len(txs)),
		Counts: make(map[domain.ExclusionReason]int, len(domain.ExclusionReasons)),
	}
	for _, tx := range txs {
		reason, excluded := exclusionReason(tx)
		if !excluded {
			res.Valid = append(res.Valid, tx)
			continue
		}
		res.Excluded = append(res.Excluded, domain.ExcludedTransaction{Transaction: *tx, Reason: reason})
		res.Counts[reason]++
	}
	return res
}

func exclusionReason(tx *domain.Transaction) (domain.ExclusionReason, bool) {
	desc := strings.ToLower(strings.TrimSpace(tx.Description))
	switch {
	case desc == "":
		return domain.ExclusionEmptyTransaction, true
	case strings.Contains(strings.ToLower(tx.Subcategory), ignoreMarker):
		return domain.ExclusionMarkedForIgnore, true
	case strings.Contains(desc, "brought forward"):
		return domain.ExclusionBroughtForward, true
	case strings.Contains(desc, "closing balance"):
		return domain.ExclusionClosingBalance, true
	}
	return "", false
}
