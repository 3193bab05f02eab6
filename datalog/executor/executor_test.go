package executor

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-fixpoint/datalog"
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

func TestExecTransitiveClosureConverges(t *testing.T) {
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

	got := st.GetKnownDerived("path")
	sortTuples(got)
	want := []storage.Tuple{
		{"a", "b"}, {"a", "c"}, {"a", "d"},
		{"b", "c"}, {"b", "d"},
		{"c", "d"},
	}
	sortTuples(want)
	assert.Equal(t, want, got)
}

func TestExecNegationComplement(t *testing.T) {
	x := datalog.NewVariable("?x")
	rule := datalog.NewRule(
		datalog.NewAtom("active", x),
		datalog.NewAtom("person", x),
		datalog.NewAtom("banned", x).Negate(),
	)
	ji, err := planner.Compile(rule)
	require.NoError(t, err)

	st := storage.New()
	require.NoError(t, st.InsertEDB("person", storage.Tuple{"alice"}))
	require.NoError(t, st.InsertEDB("person", storage.Tuple{"bob"}))
	require.NoError(t, st.InsertEDB("banned", storage.Tuple{"bob"}))

	local := map[datalog.RelationID]bool{"active": true}
	tree := ir.BuildStratumTree([]ir.StratumRule{{Rule: rule, Indexes: ji}}, local, ir.DeltaEmpty)

	st.InitEvaluation([]datalog.RelationID{"active"})
	exec := New(st, nil, Options{})
	require.NoError(t, exec.Exec(tree, 100))

	got := st.GetKnownDerived("active")
	assert.Equal(t, []storage.Tuple{{"alice"}}, got)
}
