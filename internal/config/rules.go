package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of the rules YAML. Every section is
// optional; omitted sections keep their defaults.
type rulesFile struct {
	Keywords        []domain.KeywordRule  `yaml:"keywords"`
	PriorityRules   []domain.PriorityRule `yaml:"priority_rules"`
	RemovalPatterns []removalGroupFile    `yaml:"removal_patterns"`
	Deposits        *depositsFile         `yaml:"deposits"`
}

type removalGroupFile struct {
	Reason   string   `yaml:"reason"`
	Patterns []string `yaml:"patterns"`
}

type depositsFile struct {
	Amounts           []string `yaml:"amounts"`
	DepositKeywords   []string `yaml:"deposit_keywords"`
	ReturnKeywords    []string `yaml:"return_keywords"`
	QuickReturnDays   *int     `yaml:"quick_return_days"`
	DelayedReturnDays *int     `yaml:"delayed_return_days"`
}

// DefaultRules returns the built-in priority, removal and deposit rules.
// The keyword table has no default.
func DefaultRules() pipeline.RuleSet {
	return pipeline.RuleSet{
		Priorities:    pipeline.DefaultPriorityRules(),
		RemovalGroups: pipeline.DefaultRemovalGroups(),
		Deposits:      pipeline.DefaultDepositRules(),
	}
}

// LoadRules reads a rules file over the defaults. An empty path returns the
// defaults unchanged.
func LoadRules(path string) (pipeline.RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.RuleSet{}, fmt.Errorf("LoadRules: reading %s: %w", path, err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return pipeline.RuleSet{}, fmt.Errorf("LoadRules: %s: %w", path, err)
	}
	return rs, nil
}

// ParseRules decodes rules YAML over the defaults.
func ParseRules(data []byte) (pipeline.RuleSet, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return pipeline.RuleSet{}, &domain.RuleConfigError{Source: "rules file", Msg: err.Error()}
	}

	rs := DefaultRules()
	rs.Keywords = f.Keywords
	if f.PriorityRules != nil {
		rs.Priorities = f.PriorityRules
	}

	if f.RemovalPatterns != nil {
		groups := make([]pipeline.RemovalGroup, 0, len(f.RemovalPatterns))
		for _, g := range f.RemovalPatterns {
			reason, ok := domain.ParseRemovalReason(g.Reason)
			if !ok {
				return pipeline.RuleSet{}, &domain.RuleConfigError{
					Source: "removal_patterns",
					Msg:    fmt.Sprintf("unknown removal reason %q", g.Reason),
				}
			}
			groups = append(groups, pipeline.RemovalGroup{Reason: reason, Patterns: g.Patterns})
		}
		rs.RemovalGroups = groups
	}

	if f.Deposits != nil {
		if err := applyDeposits(&rs.Deposits, f.Deposits); err != nil {
			return pipeline.RuleSet{}, err
		}
	}

	if err := pipeline.ValidatePriorityRules(rs.Priorities); err != nil {
		return pipeline.RuleSet{}, err
	}
	if err := pipeline.ValidateRemovalGroups(rs.RemovalGroups); err != nil {
		return pipeline.RuleSet{}, err
	}
	if err := rs.Deposits.Validate(); err != nil {
		return pipeline.RuleSet{}, err
	}
	return rs, nil
}

func applyDeposits(d *pipeline.DepositRules, f *depositsFile) error {
	if f.Amounts != nil {
		amounts := make([]decimal.Decimal, 0, len(f.Amounts))
		for _, s := range f.Amounts {
			a, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				return &domain.RuleConfigError{Source: "deposits", Msg: fmt.Sprintf("invalid amount %q", s)}
			}
			amounts = append(amounts, a)
		}
		d.Amounts = amounts
	}
	if f.DepositKeywords != nil {
		d.DepositKeywords = f.DepositKeywords
	}
	if f.ReturnKeywords != nil {
		d.ReturnKeywords = f.ReturnKeywords
	}
	if f.QuickReturnDays != nil {
		d.QuickReturnDays = *f.QuickReturnDays
	}
	if f.DelayedReturnDays != nil {
		d.DelayedReturnDays = *f.DelayedReturnDays
	}
	return nil
}

// MarshalRules renders a rule set in the rules file format.
func MarshalRules(rs pipeline.RuleSet) ([]byte, error) {
	f := rulesFile{
		Keywords:      rs.Keywords,
		PriorityRules: rs.Priorities,
		Deposits: &depositsFile{
			DepositKeywords:   rs.Deposits.DepositKeywords,
			ReturnKeywords:    rs.Deposits.ReturnKeywords,
			QuickReturnDays:   &rs.Deposits.QuickReturnDays,
			DelayedReturnDays: &rs.Deposits.DelayedReturnDays,
		},
	}
	for _, a := range rs.Deposits.Amounts {
		f.Deposits.Amounts = append(f.Deposits.Amounts, a.StringFixed(2))
	}
	for _, g := range rs.RemovalGroups {
		f.RemovalPatterns = append(f.RemovalPatterns, removalGroupFile{Reason: string(g.Reason), Patterns: g.Patterns})
	}
	out, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("MarshalRules: %w", err)
	}
	return out, nil
}
