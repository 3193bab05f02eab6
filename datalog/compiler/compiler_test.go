package compiler

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/executor"
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

func sortTuples(ts []storage.Tuple) {
	sort.Slice(ts, func(i, j int) bool {
		for k := range ts[i] {
			if ts[i][k] != ts[j][k] {
				return datalog.CompareValues(ts[i][k], ts[j][k]) < 0
			}
		}
		return false
	})
}

// TestCompiledMatchesInterpretedTransitiveClosure is the executor
// equivalence property from spec.md §8: both strategies evaluating the
// same program over the same EDB must reach the same final IDB.
func TestCompiledMatchesInterpretedTransitiveClosure(t *testing.T) {
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

	local := map[datalog.RelationID]bool{"path": true}
	tree := ir.BuildStratumTree([]ir.StratumRule{
		{Rule: baseRule, Indexes: baseJI},
		{Rule: recRule, Indexes: recJI},
	}, local, ir.DeltaEmpty)

	newStore := func() *storage.Storage {
		st := storage.New()
		require.NoError(t, st.InsertEDB("edge", storage.Tuple{"a", "b"}))
		require.NoError(t, st.InsertEDB("edge", storage.Tuple{"b", "c"}))
		require.NoError(t, st.InsertEDB("edge", storage.Tuple{"c", "d"}))
		st.InitEvaluation([]datalog.RelationID{"path"})
		return st
	}

	interp := newStore()
	require.NoError(t, executor.New(interp, nil, executor.Options{}).Exec(tree, 100))

	staged := newStore()
	cs, err := Specialize(tree, nil)
	require.NoError(t, err)
	require.NoError(t, Run(cs, staged, 100, nil))

	gotInterp := interp.GetKnownDerived("path")
	gotStaged := staged.GetKnownDerived("path")
	sortTuples(gotInterp)
	sortTuples(gotStaged)
	assert.Equal(t, gotInterp, gotStaged)
}
