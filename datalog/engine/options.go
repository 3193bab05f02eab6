package engine

import (
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// Granularity is the jitOptions.granularity setting (program, rule or
// atom). Solve's staged path folds it into the key of its
// specialization cache (see specCache in solve.go); the unit that is
// specialized is one stratum at every setting, and no setting caches
// individual rules or ProjectJoinFilterOp/ComplementOp/GroupOp closures
// or reuses a specialization across Solve calls.
type Granularity int

const (
	GranularityProgram Granularity = iota
	GranularityRule
	GranularityAtom
)

// Options is the engine's jitOptions: whether to use the staged
// executor, the join-reordering heuristic to apply, how often to
// re-sort online at the interpreted executor's ProjectJoinFilterOp
// boundary (off/perRule/perStep, spec.md §6 jitOptions.onlineSort) vs.
// the order rules were compiled with, which termination predicate each
// stratum's fixpoint loop consults, the specialization cache
// granularity, and a safety-valve iteration cap. Follows the teacher's
// planner.PlannerOptions / executor.ExecutorOptions shape: a plain
// struct of bools/enums with a Default constructor, passed by value.
type Options struct {
	UseStagedExecutor bool
	SortOrder         planner.SortOrder
	OnlineSort        planner.OnlineSort
	Termination       ir.TerminationTest
	Granularity       Granularity
	MaxIterations     int
}

// DefaultOptions returns the engine's default jitOptions: interpreted
// execution, no reordering, DeltaEmpty termination, program-granularity
// caching, 10000 iterations before ErrIterationLimitExceeded.
func DefaultOptions() Options {
	return Options{
		UseStagedExecutor: false,
		SortOrder:         planner.Unordered,
		OnlineSort:        planner.OnlineSortOff,
		Termination:       ir.DeltaEmpty,
		Granularity:       GranularityProgram,
		MaxIterations:     10000,
	}
}
