package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/google/uuid"
)

// PipelineStep represents a single stage of a reconciliation run.
type PipelineStep interface {
	Execute(ctx context.Context, state *RunState) error
}

// RunState holds the inputs of a run and the result the steps build up.
type RunState struct {
	Partitions []string
	Source     RowSource
	Rules      RuleSet
	Result     *RunResult
}

// NewRunState prepares a run with a fresh run ID.
func NewRunState(source RowSource, partitions []string, rules RuleSet) *RunState {
	return &RunState{
		Partitions: partitions,
		Source:     source,
		Rules:      rules,
		Result: &RunResult{
			RunID:           uuid.NewString(),
			StartedAt:       time.Now().UTC(),
			ExclusionCounts: make(map[domain.ExclusionReason]int),
		},
	}
}

// IngestStep fetches and normalizes every partition and merges them into one
// table. A partition that cannot be fetched or read is recorded and skipped.
type IngestStep struct{}

func (s *IngestStep) Execute(ctx context.Context, state *RunState) error {
	log := logger.FromContext(ctx)
	res := state.Result
	base := 0

	for _, partition := range state.Partitions {
		stats := PartitionStats{Name: partition}

		rows, err := state.Source.FetchRows(ctx, partition)
		if err == nil {
			stats.RowsRead = len(rows)
			var nr NormalizeResult
			nr, err = Normalize(rows, partition, state.Rules.RemovalGroups)
			if err == nil {
				for _, tx := range nr.Transactions {
					tx.RowOrdinal = base + tx.SourceRow
				}
				for i := range nr.Removed {
					nr.Removed[i].RowOrdinal = base + nr.Removed[i].SourceRow
				}
				res.Transactions = append(res.Transactions, nr.Transactions...)
				res.Removed = append(res.Removed, nr.Removed...)
				stats.Transactions = len(nr.Transactions)
				stats.Removed = len(nr.Removed)
				base += len(rows)
			}
		}

		if err != nil {
			stats.Err = err.Error()
			res.PartitionErrors = append(res.PartitionErrors, domain.PartitionError{Partition: partition, Err: err})
			log.Error().Err(err).Str("partition", partition).Msg("Skipping partition")
		} else {
			log.Info().
				Str("partition", partition).
				Int("rows", stats.RowsRead).
				Int("transactions", stats.Transactions).
				Int("removed", stats.Removed).
				Msg("Partition ingested")
		}
		res.Partitions = append(res.Partitions, stats)
	}

	if len(state.Partitions) > 0 && len(res.PartitionErrors) == len(state.Partitions) {
		errs := make([]error, 0, len(res.PartitionErrors))
		for _, pe := range res.PartitionErrors {
			errs = append(errs, pe)
		}
		return fmt.Errorf("IngestStep: every partition failed: %w", errors.Join(errs...))
	}
	return nil
}

// ExclusionStep moves excluded transactions out of the valid table. It runs
// once on source markers before categorization and again at the end.
type ExclusionStep struct {
	Stage string
}

func (s *ExclusionStep) Execute(ctx context.Context, state *RunState) error {
	res := state.Result
	er := ClassifyExclusions(res.Transactions)
	res.Transactions = er.Valid
	res.Excluded = append(res.Excluded, er.Excluded...)
	for reason, n := range er.Counts {
		res.ExclusionCounts[reason] += n
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("stage", s.Stage).
		Int("valid", len(er.Valid)).
		Int("excluded", len(er.Excluded)).
		Msg("Exclusions classified")
	return nil
}

// CategorizeStep applies the keyword table.
type CategorizeStep struct{}

func (s *CategorizeStep) Execute(ctx context.Context, state *RunState) error {
	c, err := NewCategorizer(state.Rules.Keywords, state.Rules.Priorities)
	if err != nil {
		return err
	}
	cr, err := c.Categorize(state.Result.Transactions)
	if err != nil {
		return err
	}
	state.Result.Categorize = cr.Summary
	state.Result.Issues = append(state.Result.Issues, cr.Issues...)

	log := logger.FromContext(ctx)
	log.Info().
		Int("categorized", cr.Summary.Categorized).
		Int("uncategorized", cr.Summary.Uncategorized).
		Int("multiple", cr.Summary.MultipleCategories).
		Msg("Transactions categorized")
	return nil
}

// DuplicateStep flags repeated rows.
type DuplicateStep struct{}

func (s *DuplicateStep) Execute(ctx context.Context, state *RunState) error {
	dr := DetectDuplicates(state.Result.Transactions)
	state.Result.DuplicatesFound = len(dr.Flagged)
	log := logger.FromContext(ctx)
	log.Info().Int("duplicates", len(dr.Flagged)).Msg("Duplicates flagged")
	return nil
}

// ReconcileStep pairs deposits with returns.
type ReconcileStep struct{}

func (s *ReconcileStep) Execute(ctx context.Context, state *RunState) error {
	r, err := NewReconciler(state.Rules.Deposits)
	if err != nil {
		return err
	}
	rr := r.Reconcile(state.Result.Transactions)

	res := state.Result
	res.Pairs = rr.Pairs
	res.UnmatchedDeposits = rr.UnmatchedDeposits
	res.UnmatchedReturns = rr.UnmatchedReturns
	res.Miscellaneous = rr.Miscellaneous
	res.DepositCandidates = rr.DepositCandidates
	res.ReturnCandidates = rr.ReturnCandidates
	res.Issues = append(res.Issues, rr.Issues...)

	log := logger.FromContext(ctx)
	log.Info().
		Int("deposits", rr.DepositCandidates).
		Int("returns", rr.ReturnCandidates).
		Int("matched", len(rr.Pairs)).
		Int("unmatched_deposits", len(rr.UnmatchedDeposits)).
		Int("unmatched_returns", len(rr.UnmatchedReturns)).
		Msg("Deposits reconciled")
	return nil
}

// SortStep orders the valid table by date, keeping ingestion order for ties.
type SortStep struct{}

func (s *SortStep) Execute(ctx context.Context, state *RunState) error {
	txs := state.Result.Transactions
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].RowOrdinal < txs[j].RowOrdinal
	})
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// NewReconciliationPipeline wires the standard run order.
func NewReconciliationPipeline() *Pipeline {
	return NewPipeline(
		&IngestStep{},
		&ExclusionStep{Stage: "pre"},
		&CategorizeStep{},
		&DuplicateStep{},
		&ReconcileStep{},
		&ExclusionStep{Stage: "final"},
		&SortStep{},
	)
}

// Execute runs all steps sequentially. Cancellation is honoured between
// steps only.
func (p *Pipeline) Execute(ctx context.Context, state *RunState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled before step %d: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	state.Result.FinishedAt = time.Now().UTC()
	return nil
}

// Run validates the rules, then processes the given partitions end to end.
func Run(ctx context.Context, source RowSource, partitions []string, rules RuleSet) (*RunResult, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}
	state := NewRunState(source, partitions, rules)
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"run_id": state.Result.RunID})
	ctx = logger.WithContext(ctx, log)

	if err := NewReconciliationPipeline().Execute(ctx, state); err != nil {
		return state.Result, fmt.Errorf("Run: %w", err)
	}
	return state.Result, nil
}

// Export hands the result to every sink. All sinks are attempted; their
// failures are joined.
func Export(ctx context.Context, result *RunResult, sinks ...Sink) error {
	log := logger.FromContext(ctx)
	var errs []error
	for _, sink := range sinks {
		if err := sink.Export(ctx, result); err != nil {
			log.Error().Err(err).Str("sink", fmt.Sprintf("%T", sink)).Msg("Export failed")
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("Export: %w", errors.Join(errs...))
	}
	return nil
}
