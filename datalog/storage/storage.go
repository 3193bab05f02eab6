// Package storage is the in-memory relational storage manager: it holds
// EDBs, two generations of derived IDBs ("known" and "new"), and two
// generations of deltas, and exposes the relational primitives the IR
// executors drive (scan, union, diff, project-join-filter, complement,
// group-by-aggregate). It mirrors the teacher's datalog/storage package
// in being the stateful bottom layer everything else reads through, but
// the teacher's generation is a badger-backed EAVT/AVET index over
// asserted Datoms; ours is a pair of swappable in-memory tuple sets over
// derived IDBs; there is no on-disk component (spec.md: no persistence).
package storage

import (
	"fmt"

	"github.com/wbrown/janus-fixpoint/datalog"
)

// Tuple is a row of opaque constant values, column order matching a
// relation's declared arity.
type Tuple []interface{}

// equalTuple compares two tuples positionally with datalog.ValuesEqual.
func equalTuple(a, b Tuple) bool {
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

// generation indexes the two swappable slots; genKnown/genNew always
// point at different slots and are exchanged by SwapKnowledge, never
// copied.
type generation int

const numGenerations = 2

// Storage is the engine's storage manager: EDBs plus the known/new
// derived and delta generations for one in-flight solve.
type Storage struct {
	edb map[datalog.RelationID][]Tuple

	derived [numGenerations]map[datalog.RelationID][]Tuple
	delta   [numGenerations]map[datalog.RelationID][]Tuple

	genKnown, genNew generation
	iteration        int

	// arity records each relation's declared column count, checked by
	// InsertEDB and by the driver's head-projection validation.
	arity map[datalog.RelationID]int
}

// New creates an empty storage manager.
func New() *Storage {
	s := &Storage{
		edb:   map[datalog.RelationID][]Tuple{},
		arity: map[datalog.RelationID]int{},
	}
	for g := generation(0); g < numGenerations; g++ {
		s.derived[g] = map[datalog.RelationID][]Tuple{}
		s.delta[g] = map[datalog.RelationID][]Tuple{}
	}
	s.genKnown, s.genNew = 0, 1
	return s
}

// DeclareArity fixes a relation's column count; InsertEDB validates
// against it. Declaring the same relation twice with different arities
// is itself an ArityMismatch.
func (s *Storage) DeclareArity(rel datalog.RelationID, arity int) error {
	if existing, ok := s.arity[rel]; ok && existing != arity {
		return fmt.Errorf("%w: relation %s already declared with arity %d, got %d", datalog.ErrArityMismatch, rel, existing, arity)
	}
	s.arity[rel] = arity
	return nil
}

// InsertEDB appends a tuple to relation's extensional database.
func (s *Storage) InsertEDB(rel datalog.RelationID, tuple Tuple) error {
	if arity, ok := s.arity[rel]; ok && arity != len(tuple) {
		return fmt.Errorf("%w: relation %s has arity %d, tuple has %d columns", datalog.ErrArityMismatch, rel, arity, len(tuple))
	}
	if _, ok := s.arity[rel]; !ok {
		s.arity[rel] = len(tuple)
	}
	s.edb[rel] = append(s.edb[rel], tuple)
	return nil
}

// EDB returns a relation's raw extensional facts (not generation-aware).
func (s *Storage) EDB(rel datalog.RelationID) []Tuple {
	return s.edb[rel]
}

// HasRelation reports whether rel has any EDB facts or declared arity —
// used by solve-time UnknownRelation validation.
func (s *Storage) HasRelation(rel datalog.RelationID) bool {
	_, hasArity := s.arity[rel]
	_, hasEDB := s.edb[rel]
	return hasArity || hasEDB
}

// GetKnownDerived reads the current "known" generation's derived
// relation, falling back to EDB facts when the derived side is empty —
// spec.md's open question, resolved: EDB tuples participate in joins
// without being copied into the derived database.
func (s *Storage) GetKnownDerived(rel datalog.RelationID) []Tuple {
	if t := s.derived[s.genKnown][rel]; len(t) > 0 {
		return t
	}
	return s.edb[rel]
}

// GetNewDerived reads the current "new" generation's derived relation.
func (s *Storage) GetNewDerived(rel datalog.RelationID) []Tuple {
	return s.derived[s.genNew][rel]
}

// GetKnownDelta reads the current "known" generation's delta.
func (s *Storage) GetKnownDelta(rel datalog.RelationID) []Tuple {
	return s.delta[s.genKnown][rel]
}

// GetNewDelta reads the current "new" generation's delta.
func (s *Storage) GetNewDelta(rel datalog.RelationID) []Tuple {
	return s.delta[s.genNew][rel]
}

// ResetNewDerived overwrites the "new" generation's derived relation.
func (s *Storage) ResetNewDerived(rel datalog.RelationID, tuples []Tuple) {
	s.derived[s.genNew][rel] = tuples
}

// ResetNewDelta overwrites the "new" generation's delta.
func (s *Storage) ResetNewDelta(rel datalog.RelationID, tuples []Tuple) {
	s.delta[s.genNew][rel] = tuples
}

// ResetKnownDerived overwrites the "known" generation's derived relation.
// InitEvaluation does not call it: EDB facts reach joins through
// GetKnownDerived's fallback rather than by being seeded here.
func (s *Storage) ResetKnownDerived(rel datalog.RelationID, tuples []Tuple) {
	s.derived[s.genKnown][rel] = tuples
}

// ResetKnownDelta overwrites the "known" generation's delta.
func (s *Storage) ResetKnownDelta(rel datalog.RelationID, tuples []Tuple) {
	s.delta[s.genKnown][rel] = tuples
}

// SwapKnowledge exchanges the known/new generation identifiers — never
// copies relation contents — and advances the iteration counter.
func (s *Storage) SwapKnowledge() {
	s.genKnown, s.genNew = s.genNew, s.genKnown
	s.iteration++
}

// ClearNewForNextIteration reseeds every relation in the (post-swap) new
// generation with a copy of the just-swapped-in known generation's
// derived tuples, and clears its delta. New must start each iteration as
// a superset of known (known plus whatever this iteration's rule
// variants derive) so that new-minus-known always yields the genuinely
// fresh tuples, never a regression relative to known.
func (s *Storage) ClearNewForNextIteration(relations []datalog.RelationID) {
	for _, rel := range relations {
		known := s.derived[s.genKnown][rel]
		seeded := make([]Tuple, len(known))
		copy(seeded, known)
		s.derived[s.genNew][rel] = seeded
		delete(s.delta[s.genNew], rel)
	}
}

// Iteration returns the current iteration count (0 before the first
// step).
func (s *Storage) Iteration() int {
	return s.iteration
}

// InitEvaluation clears derived and delta generations for every relation
// (spec.md §4.6 step 1) and reseeds iteration/generation state, ready for
// a new solve. It does not touch EDBs.
func (s *Storage) InitEvaluation(relations []datalog.RelationID) {
	for g := generation(0); g < numGenerations; g++ {
		s.derived[g] = map[datalog.RelationID][]Tuple{}
		s.delta[g] = map[datalog.RelationID][]Tuple{}
	}
	for _, rel := range relations {
		s.delta[s.genKnown][rel] = nil
		s.delta[s.genNew][rel] = nil
	}
	s.genKnown, s.genNew = 0, 1
	s.iteration = 0
}

// DeltaEmpty reports whether every relation in the new-generation delta
// is empty — the driver's termination test.
func (s *Storage) DeltaEmpty(relations []datalog.RelationID) bool {
	for _, rel := range relations {
		if len(s.delta[s.genNew][rel]) > 0 {
			return false
		}
	}
	return true
}

// FixpointReached reports whether known and new derived databases are
// element-equal for every relation — the alternative termination test.
func (s *Storage) FixpointReached(relations []datalog.RelationID) bool {
	for _, rel := range relations {
		if !sameRelation(s.derived[s.genKnown][rel], s.derived[s.genNew][rel]) {
			return false
		}
	}
	return true
}

func sameRelation(a, b []Tuple) bool {
	if len(a) != len(b) {
		return false
	}
	remaining := make([]Tuple, len(b))
	copy(remaining, b)
	for _, ta := range a {
		found := -1
		for i, tb := range remaining {
			if equalTuple(ta, tb) {
				found = i
				break
			}
		}
		if found == -1 {
			return false
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	return true
}
