package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStructural matches any *StructuralError via errors.Is.
	ErrStructural = errors.New("structural error")
	// ErrRuleConfig matches any *RuleConfigError via errors.Is.
	ErrRuleConfig = errors.New("rule configuration error")
)

// StructuralError means a partition's worksheet cannot be read as a statement
// at all (no rows, missing required column). It aborts that partition only.
type StructuralError struct {
	Partition string
	Msg       string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("partition %q: %s", e.Partition, e.Msg)
}

func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}

// RuleConfigError means a keyword, priority or deposit rule table is unusable.
// It aborts the run.
type RuleConfigError struct {
	Source string
	Msg    string
}

func (e *RuleConfigError) Error() string {
	if e.Source == "" {
		return "rule config: " + e.Msg
	}
	return fmt.Sprintf("rule config %s: %s", e.Source, e.Msg)
}

func (e *RuleConfigError) Is(target error) bool {
	return target == ErrRuleConfig
}

// PartitionError records a partition that could not be processed.
type PartitionError struct {
	Partition string
	Err       error
}

func (e PartitionError) Error() string {
	return fmt.Sprintf("partition %q: %v", e.Partition, e.Err)
}

func (e PartitionError) Unwrap() error {
	return e.Err
}
