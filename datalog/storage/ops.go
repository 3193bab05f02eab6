package storage

import (
	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// Union appends b's tuples to a, deduplicating so the result has no two
// equal tuples — matching the teacher's executor.Relation union method,
// which treats a relation as a set rather than a bag.
func Union(a, b []Tuple) []Tuple {
	out := make([]Tuple, len(a), len(a)+len(b))
	copy(out, a)
	for _, t := range b {
		if !containsTuple(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Diff returns the tuples of a that are not present in b (set
// difference), the primitive the semi-naive driver uses to derive a
// delta (new minus known).
func Diff(a, b []Tuple) []Tuple {
	var out []Tuple
	for _, t := range a {
		if !containsTuple(b, t) {
			out = append(out, t)
		}
	}
	return out
}

func containsTuple(set []Tuple, t Tuple) bool {
	for _, s := range set {
		if equalTuple(s, t) {
			return true
		}
	}
	return false
}

// ProjectJoinFilter evaluates one rule body against inputs (one []Tuple
// per body atom, already resolved by the caller to the known or delta
// generation as appropriate) using ji's compiled join/const/proj indexes,
// and returns the projected head tuples. This is the single relational
// workhorse: the interpreted executor and the staged executor's
// ProjectJoinFilterOp closure both call it, and in both paths it reads
// ji's indexes afresh for every candidate row; the join itself is not
// specialized.
func ProjectJoinFilter(inputs [][]Tuple, ji *planner.JoinIndexes) []Tuple {
	bindings := joinRows(inputs, ji)
	out := make([]Tuple, 0, len(bindings))
	for _, row := range bindings {
		out = append(out, projectRow(row, ji))
	}
	return out
}

// row is one candidate binding: row[atomIdx][termIdx] is the constant
// bound to that body position.
type row [][]interface{}

// joinRows performs the nested-loop multi-way join: iterate every
// combination of input tuples, keep only those consistent with ji's
// constant positions and variable-equality groups.
func joinRows(inputs [][]Tuple, ji *planner.JoinIndexes) []row {
	if len(inputs) == 0 {
		return nil
	}
	var results []row
	var rec func(atomIdx int, acc row)
	rec = func(atomIdx int, acc row) {
		if atomIdx == len(inputs) {
			if satisfiesConstraints(acc, ji) {
				cp := make(row, len(acc))
				copy(cp, acc)
				results = append(results, cp)
			}
			return
		}
		for _, t := range inputs[atomIdx] {
			rec(atomIdx+1, append(acc, []interface{}(t)))
		}
	}
	rec(0, make(row, 0, len(inputs)))
	return results
}

func satisfiesConstraints(acc row, ji *planner.JoinIndexes) bool {
	for pos, constant := range ji.ConstIndexes {
		if pos.Atom >= len(acc) || pos.Term >= len(acc[pos.Atom]) {
			continue
		}
		if !datalog.ValuesEqual(acc[pos.Atom][pos.Term], constant) {
			return false
		}
	}
	for _, group := range ji.VarIndexes {
		var first interface{}
		haveFirst := false
		for _, pos := range group {
			if pos.Atom >= len(acc) || pos.Term >= len(acc[pos.Atom]) {
				continue
			}
			v := acc[pos.Atom][pos.Term]
			if !haveFirst {
				first, haveFirst = v, true
				continue
			}
			if !datalog.ValuesEqual(first, v) {
				return false
			}
		}
	}
	return true
}

func projectRow(acc row, ji *planner.JoinIndexes) Tuple {
	out := make(Tuple, len(ji.ProjIndexes))
	for i, p := range ji.ProjIndexes {
		if p.IsConstant {
			out[i] = p.Constant
			continue
		}
		out[i] = acc[p.BodyPos.Atom][p.BodyPos.Term]
	}
	return out
}

// Complement evaluates a negated atom's complement relative to the
// universe of values its variables take on in the rule's positive atoms
// (planner.NegationInfo), returning every combination NOT present in the
// negated atom's own current extension. Column order matches the negated
// atom's own Terms, so the result slots into ProjectJoinFilter as an
// ordinary join input (spec.md's negation-as-complement property).
func Complement(positiveBindings func(rel datalog.RelationID, col int) []interface{}, negatedExtension []Tuple, positions []planner.NegationPosition) []Tuple {
	domains := make([][]interface{}, len(positions))
	for i, p := range positions {
		switch {
		case p.IsConstant:
			domains[i] = []interface{}{p.Constant}
		case len(p.Occurrences) > 0:
			occ := p.Occurrences[0]
			domains[i] = dedupeValues(positiveBindings(occ.Relation, occ.Column))
		default:
			// Anonymous variable: no positive occurrence constrains this
			// slot, so it ranges over the full cartesian domain at that
			// position — every value the negated relation's own current
			// extension holds in that column.
			domains[i] = dedupeValues(projectColumn(negatedExtension, i))
		}
	}

	var universe []Tuple
	var rec func(idx int, acc Tuple)
	rec = func(idx int, acc Tuple) {
		if idx == len(domains) {
			cp := make(Tuple, len(acc))
			copy(cp, acc)
			universe = append(universe, cp)
			return
		}
		for _, v := range domains[idx] {
			rec(idx+1, append(acc, v))
		}
	}
	rec(0, make(Tuple, 0, len(domains)))

	var out []Tuple
	for _, candidate := range universe {
		if !containsTuple(negatedExtension, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

func projectColumn(tuples []Tuple, col int) []interface{} {
	out := make([]interface{}, 0, len(tuples))
	for _, t := range tuples {
		if col < len(t) {
			out = append(out, t[col])
		}
	}
	return out
}

func dedupeValues(values []interface{}) []interface{} {
	var out []interface{}
	for _, v := range values {
		found := false
		for _, o := range out {
			if datalog.ValuesEqual(o, v) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}

// GroupByAggregate evaluates a grouping atom: project sub-atom tuples
// onto their group-by columns, bucket by group key, then fold each
// bucket's aggregate sources. Returns one tuple per distinct group key,
// in insertion order of first sighting (stable, not sorted — sort-order
// insensitivity is a property of the final IDB as a set, not of this
// intermediate).
func GroupByAggregate(subInput []Tuple, gi planner.GroupingIndex) []Tuple {
	type bucket struct {
		key  Tuple
		rows []Tuple
	}
	var buckets []*bucket
	index := map[string]*bucket{}

	for _, t := range subInput {
		if !groupRowSatisfiesConstraints(t, gi) {
			continue
		}
		key := make(Tuple, len(gi.GroupByPositions))
		for i, pos := range gi.GroupByPositions {
			key[i] = t[pos]
		}
		k := datalog.TupleKey([]interface{}(key))
		b, ok := index[k]
		if !ok {
			b = &bucket{key: key}
			index[k] = b
			buckets = append(buckets, b)
		}
		b.rows = append(b.rows, t)
	}

	out := make([]Tuple, 0, len(buckets))
	for _, b := range buckets {
		tuple := make(Tuple, 0, len(b.key)+len(gi.AggSources))
		tuple = append(tuple, b.key...)
		for _, src := range gi.AggSources {
			tuple = append(tuple, foldAggregate(src, b.rows, b.key))
		}
		out = append(out, tuple)
	}
	return out
}

func groupRowSatisfiesConstraints(t Tuple, gi planner.GroupingIndex) bool {
	for pos, c := range gi.ConstPositions {
		if pos >= len(t) || !datalog.ValuesEqual(t[pos], c) {
			return false
		}
	}
	for _, group := range gi.VarEqualities {
		var first interface{}
		haveFirst := false
		for _, pos := range group {
			if pos.Term >= len(t) {
				continue
			}
			v := t[pos.Term]
			if !haveFirst {
				first, haveFirst = v, true
				continue
			}
			if !datalog.ValuesEqual(first, v) {
				return false
			}
		}
	}
	return true
}

func foldAggregate(src planner.AggSource, rows []Tuple, key Tuple) interface{} {
	if src.Kind == planner.SourceConstant {
		return src.Constant
	}
	if src.Kind == planner.SourceGroupVar {
		return key[src.Index]
	}

	switch src.Op {
	case datalog.AggCount:
		return int64(len(rows))
	case datalog.AggSum:
		var sum float64
		isInt := true
		var isum int64
		for _, r := range rows {
			switch v := r[src.Index].(type) {
			case int:
				isum += int64(v)
				sum += float64(v)
			case int64:
				isum += v
				sum += float64(v)
			case float64:
				isInt = false
				sum += v
			}
		}
		if isInt {
			return isum
		}
		return sum
	case datalog.AggMin:
		return foldMinMax(rows, src.Index, true)
	case datalog.AggMax:
		return foldMinMax(rows, src.Index, false)
	}
	return nil
}

func foldMinMax(rows []Tuple, idx int, wantMin bool) interface{} {
	var best interface{}
	first := true
	for _, r := range rows {
		v := r[idx]
		if first {
			best, first = v, false
			continue
		}
		cmp := datalog.CompareValues(v, best)
		if (wantMin && cmp < 0) || (!wantMin && cmp > 0) {
			best = v
		}
	}
	return best
}
