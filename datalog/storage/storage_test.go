package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-fixpoint/datalog"
)

func TestInsertEDBEnforcesArity(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertEDB("edge", Tuple{"a", "b"}))
	err := s.InsertEDB("edge", Tuple{"a", "b", "c"})
	assert.ErrorIs(t, err, datalog.ErrArityMismatch)
}

func TestGetKnownDerivedFallsBackToEDB(t *testing.T) {
	s := New()
	require.NoError(t, s.InsertEDB("edge", Tuple{"a", "b"}))
	got := s.GetKnownDerived("edge")
	require.Len(t, got, 1)
	assert.Equal(t, Tuple{"a", "b"}, got[0])
}

func TestSwapKnowledgeExchangesGenerationsAndBumpsIteration(t *testing.T) {
	s := New()
	s.ResetNewDerived("path", []Tuple{{"a", "b"}})
	assert.Empty(t, s.GetKnownDerived("path"))

	s.SwapKnowledge()
	assert.Equal(t, 1, s.Iteration())
	assert.Equal(t, []Tuple{{"a", "b"}}, s.GetKnownDerived("path"))
	assert.Empty(t, s.GetNewDerived("path"))
}

func TestDeltaEmptyAndFixpointReached(t *testing.T) {
	s := New()
	rels := []datalog.RelationID{"path"}
	assert.True(t, s.DeltaEmpty(rels))

	s.ResetNewDelta("path", []Tuple{{"a", "b"}})
	assert.False(t, s.DeltaEmpty(rels))

	s.ResetKnownDerived("path", []Tuple{{"a", "b"}})
	s.ResetNewDerived("path", []Tuple{{"a", "b"}})
	assert.True(t, s.FixpointReached(rels))

	s.ResetNewDerived("path", []Tuple{{"a", "b"}, {"b", "c"}})
	assert.False(t, s.FixpointReached(rels))
}

func TestUnionDeduplicates(t *testing.T) {
	a := []Tuple{{"a", "b"}}
	b := []Tuple{{"a", "b"}, {"b", "c"}}
	got := Union(a, b)
	assert.Len(t, got, 2)
}

func TestDiffReturnsOnlyNewTuples(t *testing.T) {
	a := []Tuple{{"a", "b"}, {"b", "c"}}
	b := []Tuple{{"a", "b"}}
	got := Diff(a, b)
	assert.Equal(t, []Tuple{{"b", "c"}}, got)
}
