// Package compiler is the staged/specialized executor (spec.md §4.5): it
// turns an ir.Node program tree into a tree of closures that each close
// over their node's concrete constants (a JoinIndexes, a relation id, a
// delta flag) once, at specialization time, rather than re-dispatching
// on node type at every tuple during execution. It must produce
// byte-identical final IDB state to datalog/executor's interpreted walk
// of the same tree — the two are alternative strategies over one IR, not
// two different semantics. Grounded on the teacher's dual
// PlannerAdapter/ClauseBasedPlanner implementations of one
// planner.QueryPlanner interface (datalog/planner/interface.go): two
// concrete strategies, one contract, selected by the caller.
package compiler

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/annotations"
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

// compiledNode is a specialized expression node: a closure that reads
// from Storage and returns a tuple set, with every constant it needs
// already captured.
type compiledNode func(st *storage.Storage) []storage.Tuple

// compiledInsert is a specialized effect node.
type compiledInsert func(st *storage.Storage)

// CompiledStratum is one stratum's specialized program: closures ready
// to run against any Storage with the same relation shapes the source
// tree was built from.
type CompiledStratum struct {
	inserts   []compiledInsert
	Relations []datalog.RelationID
	Test      ir.TerminationTest
}

// Specialize compiles tree's body into closures. This is the
// "specialization" surface of spec.md §4.5's three measurable surfaces;
// trace, if non-nil, records its latency as annotations.Specialized.
func Specialize(tree *ir.DoWhileOp, trace *annotations.Collector) (*CompiledStratum, error) {
	start := time.Now()

	body, ok := tree.Body.(ir.SequenceOp)
	if !ok || len(body.Steps) == 0 {
		return &CompiledStratum{Relations: tree.Relations, Test: tree.Test}, nil
	}
	insertSteps := body.Steps[:len(body.Steps)-1]
	if _, ok := body.Steps[len(body.Steps)-1].(ir.SwapAndClearOp); !ok {
		return nil, fmt.Errorf("compiler: stratum body must end with SwapAndClearOp")
	}

	cs := &CompiledStratum{Relations: tree.Relations, Test: tree.Test}
	for _, step := range insertSteps {
		ins, ok := step.(ir.InsertOp)
		if !ok {
			return nil, fmt.Errorf("compiler: stratum body step %T is not an InsertOp", step)
		}
		srcFn := specializeNode(ins.Source)
		rel := ins.Relation
		cs.inserts = append(cs.inserts, func(st *storage.Storage) {
			result := srcFn(st)
			st.ResetNewDerived(rel, storage.Union(st.GetNewDerived(rel), result))
		})
	}

	if trace != nil {
		trace.AddTiming(annotations.Specialized, start, nil)
	}
	return cs, nil
}

func specializeNode(node ir.Node) compiledNode {
	switch n := node.(type) {
	case ir.ScanOp:
		rel, delta := n.Relation, n.Delta
		if delta {
			return func(st *storage.Storage) []storage.Tuple { return st.GetKnownDelta(rel) }
		}
		return func(st *storage.Storage) []storage.Tuple { return st.GetKnownDerived(rel) }

	case ir.ProjectJoinFilterOp:
		inputFns := make([]compiledNode, len(n.Inputs))
		for i, in := range n.Inputs {
			inputFns[i] = specializeNode(in)
		}
		ji := n.Indexes
		return func(st *storage.Storage) []storage.Tuple {
			inputs := make([][]storage.Tuple, len(inputFns))
			for i, f := range inputFns {
				inputs[i] = f(st)
			}
			return storage.ProjectJoinFilter(inputs, ji)
		}

	case ir.UnionOp:
		inputFns := make([]compiledNode, len(n.Inputs))
		for i, in := range n.Inputs {
			inputFns[i] = specializeNode(in)
		}
		return func(st *storage.Storage) []storage.Tuple {
			var acc []storage.Tuple
			for _, f := range inputFns {
				acc = storage.Union(acc, f(st))
			}
			return acc
		}

	case ir.DiffOp:
		leftFn, rightFn := specializeNode(n.Left), specializeNode(n.Right)
		return func(st *storage.Storage) []storage.Tuple {
			return storage.Diff(leftFn(st), rightFn(st))
		}

	case ir.ComplementOp:
		rel, positions := n.Relation, n.Positions
		return func(st *storage.Storage) []storage.Tuple {
			lookup := func(r datalog.RelationID, col int) []interface{} {
				rows := st.GetKnownDerived(r)
				out := make([]interface{}, 0, len(rows))
				for _, row := range rows {
					if col < len(row) {
						out = append(out, row[col])
					}
				}
				return out
			}
			return storage.Complement(lookup, st.GetKnownDerived(rel), positions)
		}

	case ir.GroupOp:
		srcFn := specializeNode(n.Source)
		gi := n.GroupIndex
		return func(st *storage.Storage) []storage.Tuple {
			return storage.GroupByAggregate(srcFn(st), gi)
		}

	default:
		panic(fmt.Sprintf("compiler: cannot specialize node %T", node))
	}
}

// Run executes a specialized stratum to its fixpoint, the "execution"
// surface of spec.md §4.5. maxIterations<=0 disables the safety valve.
func Run(cs *CompiledStratum, st *storage.Storage, maxIterations int, trace *annotations.Collector) error {
	start := time.Now()
	for {
		for _, step := range cs.inserts {
			step(st)
		}
		for _, rel := range cs.Relations {
			st.ResetNewDelta(rel, storage.Diff(st.GetNewDerived(rel), st.GetKnownDerived(rel)))
		}
		if trace != nil {
			trace.Add(annotations.Event{Name: annotations.IterationComplete, Data: map[string]interface{}{
				"iteration": st.Iteration(),
			}})
		}
		reached := st.DeltaEmpty(cs.Relations)
		if cs.Test == ir.FixpointReached {
			reached = st.FixpointReached(cs.Relations)
		}
		if reached {
			break
		}
		if maxIterations > 0 && st.Iteration()+1 >= maxIterations {
			return fmt.Errorf("%w: exceeded %d iterations", datalog.ErrIterationLimitExceeded, maxIterations)
		}
		st.SwapKnowledge()
		st.ClearNewForNextIteration(cs.Relations)
	}
	if trace != nil {
		trace.AddTiming(annotations.StagedExecuted, start, nil)
	}
	return nil
}
