package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

// TestMonotonicityAcrossIterations is spec.md §8's monotonicity
// property: within one stratum, knownDerived[R] must never shrink
// between consecutive swaps.
func TestMonotonicityAcrossIterations(t *testing.T) {
	x, y, z := datalog.NewVariable("?x"), datalog.NewVariable("?y"), datalog.NewVariable("?z")
	baseRule := datalog.NewRule(datalog.NewAtom("path", x, y), datalog.NewAtom("edge", x, y))
	recRule := datalog.NewRule(
		datalog.NewAtom("path", x, z),
		datalog.NewAtom("edge", x, y),
		datalog.NewAtom("path", y, z),
	)
	baseJI, err := planner.Compile(baseRule)
	require.NoError(t, err)
	recJI, err := planner.Compile(recRule)
	require.NoError(t, err)

	st := storage.New()
	require.NoError(t, st.InsertEDB("edge", storage.Tuple{"a", "b"}))
	require.NoError(t, st.InsertEDB("edge", storage.Tuple{"b", "c"}))
	require.NoError(t, st.InsertEDB("edge", storage.Tuple{"c", "d"}))

	local := map[datalog.RelationID]bool{"path": true}
	tree := ir.BuildStratumTree([]ir.StratumRule{
		{Rule: baseRule, Indexes: baseJI},
		{Rule: recRule, Indexes: recJI},
	}, local, ir.DeltaEmpty)

	st.InitEvaluation([]datalog.RelationID{"path"})
	exec := New(st, nil, Options{})

	body := tree.Body.(ir.SequenceOp)
	inserts := body.Steps[:len(body.Steps)-1]
	swapOp := body.Steps[len(body.Steps)-1].(ir.SwapAndClearOp)

	var prevKnown []storage.Tuple
	for i := 0; i < 20; i++ {
		known := append([]storage.Tuple{}, st.GetKnownDerived("path")...)
		assertSuperset(t, known, prevKnown)
		prevKnown = known

		for _, step := range inserts {
			exec.execInsert(step)
		}
		for _, rel := range tree.Relations {
			delta := storage.Diff(st.GetNewDerived(rel), st.GetKnownDerived(rel))
			st.ResetNewDelta(rel, delta)
		}
		if st.DeltaEmpty(tree.Relations) {
			break
		}
		exec.execSwap(swapOp)
	}
}

func assertSuperset(t *testing.T, superset, subset []storage.Tuple) {
	t.Helper()
	for _, s := range subset {
		found := false
		for _, sup := range superset {
			if tupleEqual(s, sup) {
				found = true
				break
			}
		}
		assert.True(t, found, "tuple %v present earlier but missing now", s)
	}
}

func tupleEqual(a, b storage.Tuple) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !datalog.ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// TestTerminationConditionNoEscapingTuples is spec.md §8's termination-
// condition property: once the driver reports fixpoint, re-firing every
// rule against knownDerived must produce nothing outside knownDerived.
func TestTerminationConditionNoEscapingTuples(t *testing.T) {
	x, y, z := datalog.NewVariable("?x"), datalog.NewVariable("?y"), datalog.NewVariable("?z")
	baseRule := datalog.NewRule(datalog.NewAtom("path", x, y), datalog.NewAtom("edge", x, y))
	recRule := datalog.NewRule(
		datalog.NewAtom("path", x, z),
		datalog.NewAtom("edge", x, y),
		datalog.NewAtom("path", y, z),
	)
	baseJI, err := planner.Compile(baseRule)
	require.NoError(t, err)
	recJI, err := planner.Compile(recRule)
	require.NoError(t, err)

	st := storage.New()
	require.NoError(t, st.InsertEDB("edge", storage.Tuple{"a", "b"}))
	require.NoError(t, st.InsertEDB("edge", storage.Tuple{"b", "c"}))
	require.NoError(t, st.InsertEDB("edge", storage.Tuple{"c", "d"}))

	local := map[datalog.RelationID]bool{"path": true}
	tree := ir.BuildStratumTree([]ir.StratumRule{
		{Rule: baseRule, Indexes: baseJI},
		{Rule: recRule, Indexes: recJI},
	}, local, ir.DeltaEmpty)

	st.InitEvaluation([]datalog.RelationID{"path"})
	exec := New(st, nil, Options{})
	require.NoError(t, exec.Exec(tree, 100))

	known := st.GetKnownDerived("path")

	baseFired := storage.ProjectJoinFilter([][]storage.Tuple{st.EDB("edge")}, baseJI)
	for _, tup := range baseFired {
		assertContainsTuple(t, known, tup)
	}

	recFired := storage.ProjectJoinFilter([][]storage.Tuple{st.EDB("edge"), known}, recJI)
	for _, tup := range recFired {
		assertContainsTuple(t, known, tup)
	}
}

func assertContainsTuple(t *testing.T, set []storage.Tuple, tup storage.Tuple) {
	t.Helper()
	for _, s := range set {
		if tupleEqual(s, tup) {
			return
		}
	}
	t.Errorf("tuple %v produced by re-firing a rule at fixpoint is not in knownDerived", tup)
}
