// Package executor is the interpreted, tree-walking executor: it drives
// an ir.Node tree directly against storage.Storage, re-dispatching on
// node type at every step. It is one of the two solve strategies
// spec.md §4 names (the other, specialized, is datalog/compiler); the
// two must produce byte-identical final IDB state for the same program.
// Grounded on the teacher's datalog/executor/executor_sequential.go,
// which walks a similarly small plan-node vocabulary against storage
// reads, generalized from single-query triple patterns to multi-atom
// joins, complements, and grouping.
package executor

import (
	"fmt"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/annotations"
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

// Options configures the interpreted executor's online reordering
// (spec.md §4.4, §6 jitOptions.sortOrder/onlineSort). SortOrder picks
// the reordering heuristic; OnlineSort picks how often it is applied at
// a ProjectJoinFilterOp boundary instead of leaving the planner's
// original order in place. The zero value (Unordered, OnlineSortOff)
// disables online reordering entirely, matching the executor's original
// behavior.
type Options struct {
	SortOrder  planner.SortOrder
	OnlineSort planner.OnlineSort
}

// Executor walks ir.Node trees against one Storage, optionally emitting
// annotations.Event for each rule evaluation and iteration boundary.
type Executor struct {
	Storage *storage.Storage
	Trace   *annotations.Collector
	Options Options

	// rulePlans caches OnlineSortPerRule's reordered ProjectJoinFilterOp,
	// keyed by the original compiled plan plus which body position was
	// the delta-driven atom (a rule's several semi-naive variants share
	// one *planner.JoinIndexes but differ in delta position, so both
	// must be part of the key), so repeated evaluations of the same
	// variant across semi-naive iterations reuse one re-plan rather than
	// recomputing it every step — that recomputation is what
	// OnlineSortPerStep chooses to pay for instead.
	rulePlans map[rulePlanKey]ir.ProjectJoinFilterOp
}

type rulePlanKey struct {
	indexes  *planner.JoinIndexes
	deltaIdx int
}

// New creates an Executor. trace may be nil to disable tracing.
func New(st *storage.Storage, trace *annotations.Collector, opts Options) *Executor {
	return &Executor{Storage: st, Trace: trace, Options: opts, rulePlans: map[rulePlanKey]ir.ProjectJoinFilterOp{}}
}

// planProjectJoinFilter applies spec.md §4.4's online reordering at this
// ProjectJoinFilterOp boundary: Off leaves n untouched; PerStep re-plans
// fresh on every evaluation; PerRule re-plans once per (rule, delta
// position) and reuses that plan for the rest of the solve.
func (e *Executor) planProjectJoinFilter(n ir.ProjectJoinFilterOp) ir.ProjectJoinFilterOp {
	if e.Options.OnlineSort == planner.OnlineSortOff || e.Options.SortOrder == planner.Unordered {
		return n
	}
	if e.Options.OnlineSort == planner.OnlineSortPerStep {
		return ir.ReorderProjectJoinFilter(n, e.Options.SortOrder)
	}
	key := rulePlanKey{indexes: n.Indexes, deltaIdx: ir.DeltaIndex(n)}
	if cached, ok := e.rulePlans[key]; ok {
		return cached
	}
	reordered := ir.ReorderProjectJoinFilter(n, e.Options.SortOrder)
	e.rulePlans[key] = reordered
	return reordered
}

// Eval evaluates an expression node (ScanOp, ProjectJoinFilterOp,
// UnionOp, DiffOp, ComplementOp, GroupOp) into a concrete tuple set. It
// panics on an effect-only node (InsertOp, SwapAndClearOp, SequenceOp,
// DoWhileOp); those are driven by Exec.
func (e *Executor) Eval(node ir.Node) []storage.Tuple {
	switch n := node.(type) {
	case ir.ScanOp:
		if n.Delta {
			return e.Storage.GetKnownDelta(n.Relation)
		}
		return e.Storage.GetKnownDerived(n.Relation)

	case ir.ProjectJoinFilterOp:
		n = e.planProjectJoinFilter(n)
		inputs := make([][]storage.Tuple, len(n.Inputs))
		for i, in := range n.Inputs {
			inputs[i] = e.Eval(in)
		}
		result := storage.ProjectJoinFilter(inputs, n.Indexes)
		if e.Trace != nil {
			e.Trace.Add(annotations.Event{Name: annotations.RuleEvaluated, Data: map[string]interface{}{
				"rule":   n.Rule.String(),
				"result": len(result),
			}})
		}
		return result

	case ir.UnionOp:
		var acc []storage.Tuple
		for _, in := range n.Inputs {
			acc = storage.Union(acc, e.Eval(in))
		}
		return acc

	case ir.DiffOp:
		return storage.Diff(e.Eval(n.Left), e.Eval(n.Right))

	case ir.ComplementOp:
		lookup := func(rel datalog.RelationID, col int) []interface{} {
			rows := e.Storage.GetKnownDerived(rel)
			out := make([]interface{}, 0, len(rows))
			for _, r := range rows {
				if col < len(r) {
					out = append(out, r[col])
				}
			}
			return out
		}
		return storage.Complement(lookup, e.Storage.GetKnownDerived(n.Relation), n.Positions)

	case ir.GroupOp:
		return storage.GroupByAggregate(e.Eval(n.Source), n.GroupIndex)

	default:
		panic(fmt.Sprintf("executor: Eval called on effect-only node %T", node))
	}
}

// Exec runs a stratum's program tree to completion: Body's InsertOps
// accumulate into each head relation's new generation every iteration;
// after each pass the executor computes the new delta per relation
// (new minus known) directly via storage, checks tree.Test's termination
// predicate, and either stops or runs Body's trailing SwapAndClearOp and
// loops. maxIterations
// <= 0 disables the safety valve.
func (e *Executor) Exec(tree *ir.DoWhileOp, maxIterations int) error {
	body, ok := tree.Body.(ir.SequenceOp)
	if !ok || len(body.Steps) == 0 {
		return nil
	}
	inserts := body.Steps[:len(body.Steps)-1]
	swap, ok := body.Steps[len(body.Steps)-1].(ir.SwapAndClearOp)
	if !ok {
		return fmt.Errorf("executor: stratum body must end with SwapAndClearOp")
	}

	for {
		for _, step := range inserts {
			e.execInsert(step)
		}
		for _, rel := range tree.Relations {
			delta := storage.Diff(e.Storage.GetNewDerived(rel), e.Storage.GetKnownDerived(rel))
			e.Storage.ResetNewDelta(rel, delta)
		}
		if e.Trace != nil {
			e.Trace.Add(annotations.Event{Name: annotations.IterationComplete, Data: map[string]interface{}{
				"iteration": e.Storage.Iteration(),
			}})
		}
		if e.fixpointReached(tree) {
			return nil
		}
		if maxIterations > 0 && e.Storage.Iteration()+1 >= maxIterations {
			return fmt.Errorf("%w: exceeded %d iterations", datalog.ErrIterationLimitExceeded, maxIterations)
		}
		e.execSwap(swap)
	}
}

// fixpointReached consults tree.Test to decide whether a stratum's
// DoWhileOp should stop looping (spec.md §4.3 DoWhileOp(test)).
func (e *Executor) fixpointReached(tree *ir.DoWhileOp) bool {
	if tree.Test == ir.FixpointReached {
		return e.Storage.FixpointReached(tree.Relations)
	}
	return e.Storage.DeltaEmpty(tree.Relations)
}

func (e *Executor) execInsert(node ir.Node) {
	ins, ok := node.(ir.InsertOp)
	if !ok {
		return
	}
	result := e.Eval(ins.Source)
	merged := storage.Union(e.Storage.GetNewDerived(ins.Relation), result)
	e.Storage.ResetNewDerived(ins.Relation, merged)
}

func (e *Executor) execSwap(swap ir.SwapAndClearOp) {
	e.Storage.SwapKnowledge()
	e.Storage.ClearNewForNextIteration(swap.Relations)
}
