package pipeline

import (
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// Default values for statement processing.
// These can be overridden via the rules file.
const (
	// DefaultKeywordSheet is the worksheet holding the keyword mapping table.
	DefaultKeywordSheet = "Keyword Mapping"

	// DefaultQuickReturnDays flags returns that arrive sooner than this.
	DefaultQuickReturnDays = 1

	// DefaultDelayedReturnDays flags returns that arrive later than this.
	DefaultDelayedReturnDays = 30

	// ignoreMarker is matched case-insensitively against the subcategory.
	ignoreMarker = "ignore these"
)

// DefaultRemovalGroups are evaluated in order; the first group that hits wins.
func DefaultRemovalGroups() []RemovalGroup {
	return []RemovalGroup{
		{
			Reason: domain.RemovalBalanceForward,
			Patterns: []string{
				"balance brought forward",
				"brought forward",
				"closing balance",
			},
		},
		{
			Reason: domain.RemovalKnownRecurringTransfer,
			Patterns: []string{
				"direct debit metro bank y65ys7p",
				"direct debit metro bank",
			},
		},
	}
}

// DefaultDepositRules returns the deposit amounts and keyword families used
// for refundable room deposits.
func DefaultDepositRules() DepositRules {
	return DepositRules{
		Amounts: []decimal.Decimal{
			decimal.RequireFromString("50.00"),
			decimal.RequireFromString("100.00"),
		},
		DepositKeywords: []string{
			"deposit", "dep", "security deposit", "damage deposit",
			"room deposit", "booking deposit",
		},
		ReturnKeywords: []string{
			"deposit return", "dep return", "deposit refund", "dep refund",
			"return deposit", "refund deposit", "deposit back",
		},
		QuickReturnDays:   DefaultQuickReturnDays,
		DelayedReturnDays: DefaultDelayedReturnDays,
	}
}

// DefaultPriorityRules returns the priority pairs used by the original
// property-management ledger: platform income beats the management fee label.
func DefaultPriorityRules() []domain.PriorityRule {
	return []domain.PriorityRule{
		{Dominant: "Air bnb", Subordinate: "Ketan/ Management"},
		{Dominant: "Platform fee", Subordinate: "Ketan/ Management"},
		{Dominant: "Booking.com", Subordinate: "Ketan/ Management"},
	}
}
