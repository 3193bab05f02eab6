package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// TestProjectJoinFilterProjectionCorrectness is the projection-
// correctness property: every output tuple has a witnessing body
// substitution that satisfies ji's var-equality groups and constant
// positions, which projectRow then maps onto it under ji.ProjIndexes.
func TestProjectJoinFilterProjectionCorrectness(t *testing.T) {
	x, y, z := datalog.NewVariable("?x"), datalog.NewVariable("?y"), datalog.NewVariable("?z")
	rule := datalog.NewRule(
		datalog.NewAtom("path", x, z),
		datalog.NewAtom("edge", x, y),
		datalog.NewAtom("path", y, z),
	)
	ji, err := planner.Compile(rule)
	require.NoError(t, err)

	edges := []Tuple{{"a", "b"}, {"b", "c"}, {"c", "d"}}
	paths := []Tuple{{"b", "c"}, {"c", "d"}}
	inputs := [][]Tuple{edges, paths}

	got := ProjectJoinFilter(inputs, ji)
	require.NotEmpty(t, got)

	for _, out := range got {
		assert.True(t, hasWitness(inputs, ji, out), "no witnessing substitution for %v", out)
	}
}

// hasWitness brute-forces every combination of input rows and checks
// whether one both satisfies ji's constraints and projects to target.
func hasWitness(inputs [][]Tuple, ji *planner.JoinIndexes, target Tuple) bool {
	found := false
	var rec func(atomIdx int, acc row)
	rec = func(atomIdx int, acc row) {
		if found {
			return
		}
		if atomIdx == len(inputs) {
			if satisfiesConstraints(acc, ji) && equalTuple(projectRow(acc, ji), target) {
				found = true
			}
			return
		}
		for _, tup := range inputs[atomIdx] {
			rec(atomIdx+1, append(acc, []interface{}(tup)))
			if found {
				return
			}
		}
	}
	rec(0, make(row, 0, len(inputs)))
	return found
}

// TestSemiNaiveCompletenessMatchesNaiveEvaluation is the semi-naïve-
// completeness property: re-firing every rule against the full known
// set each round (no delta optimization) must converge to the same IDB
// as the delta-driven loop.
func TestSemiNaiveCompletenessMatchesNaiveEvaluation(t *testing.T) {
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

	edges := []Tuple{{"a", "b"}, {"b", "c"}, {"c", "d"}}

	// Naive: re-fire both rules against the full known "path" set every
	// round, with no delta scanning, until a round adds nothing new.
	var known []Tuple
	for {
		baseResult := ProjectJoinFilter([][]Tuple{edges}, baseJI)
		recResult := ProjectJoinFilter([][]Tuple{edges, known}, recJI)
		merged := Union(Union(known, baseResult), recResult)
		if len(merged) == len(known) {
			break
		}
		known = merged
	}
	sortStorageTuples(known)

	// Semi-naive: drive the same rules through the real delta loop via
	// the executor-equivalent primitives this package exposes directly.
	st := New()
	require.NoError(t, st.InsertEDB("edge", Tuple{"a", "b"}))
	require.NoError(t, st.InsertEDB("edge", Tuple{"b", "c"}))
	require.NoError(t, st.InsertEDB("edge", Tuple{"c", "d"}))
	st.InitEvaluation([]datalog.RelationID{"path"})

	for {
		baseResult := ProjectJoinFilter([][]Tuple{st.EDB("edge")}, baseJI)
		delta := st.GetKnownDelta("path")
		recDelta := ProjectJoinFilter([][]Tuple{st.EDB("edge"), delta}, recJI)

		merged := Union(Union(st.GetNewDerived("path"), baseResult), recDelta)
		st.ResetNewDerived("path", merged)

		newDelta := Diff(st.GetNewDerived("path"), st.GetKnownDerived("path"))
		st.ResetNewDelta("path", newDelta)
		if st.DeltaEmpty([]datalog.RelationID{"path"}) {
			break
		}
		st.SwapKnowledge()
		st.ClearNewForNextIteration([]datalog.RelationID{"path"})
	}

	gotSemiNaive := append([]Tuple{}, st.GetKnownDerived("path")...)
	sortStorageTuples(gotSemiNaive)

	assert.Equal(t, known, gotSemiNaive)
}

func sortStorageTuples(ts []Tuple) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && tupleLess(ts[j], ts[j-1]); j-- {
			ts[j-1], ts[j] = ts[j], ts[j-1]
		}
	}
}

func tupleLess(a, b Tuple) bool {
	for k := 0; k < len(a) && k < len(b); k++ {
		if c := datalog.CompareValues(a[k], b[k]); c != 0 {
			return c < 0
		}
	}
	return false
}
