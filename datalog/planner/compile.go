package planner

import (
	"fmt"

	"github.com/wbrown/janus-fixpoint/datalog"
)

// Compile derives a JoinIndexes from a rule's current body order. Calling
// it again after Reorder (sortorder.go) on a permuted copy of the rule
// produces the JoinIndexes for that permutation. Compile does not touch
// the plan cache (cache.go); callers that cache a result key it by the
// original rule's hash and the SortOrder used.
func Compile(rule datalog.Rule) (*JoinIndexes, error) {
	if err := validateHeadHasNoAnonymous(rule.Head); err != nil {
		return nil, err
	}

	ji := &JoinIndexes{
		Rule:            rule,
		ConstIndexes:    map[Position]interface{}{},
		NegationInfo:    map[int][]NegationPosition{},
		GroupingIndexes: map[int]GroupingIndex{},
		EDB:             len(rule.Body) == 0,
	}

	if ji.EDB {
		return ji, nil
	}

	canonical, err := canonicalPositions(rule)
	if err != nil {
		return nil, err
	}

	buildVarAndConstIndexes(rule, ji)
	buildDeps(rule, ji)
	buildCxns(rule, ji)

	if err := buildNegationInfo(rule, ji); err != nil {
		return nil, err
	}
	if err := buildGroupingIndexes(rule, ji); err != nil {
		return nil, err
	}
	if err := buildProjIndexes(rule, canonical, ji); err != nil {
		return nil, err
	}

	return ji, nil
}

func validateHeadHasNoAnonymous(head datalog.Atom) error {
	for _, t := range head.Terms {
		if v, ok := t.(datalog.Variable); ok && v.IsAnonymous() {
			return fmt.Errorf("%w: rule head %s", datalog.ErrAnonymousHeadVariable, head)
		}
	}
	return nil
}

// canonicalPositions returns, for every variable with at least one
// non-negated, non-aggregated-context occurrence in the body, the first
// such position (scanning atoms left to right). A variable that appears
// only in negated positions is reported as
// ErrVariableOnlyInNegatedContext. Only each atom's own Terms are
// scanned: variables inside a grouping atom's sub-atom or aggregates are
// neither bound nor reported here.
func canonicalPositions(rule datalog.Rule) (map[int64]Position, error) {
	canonical := map[int64]Position{}
	sawAny := map[int64]bool{}

	for i, atom := range rule.Body {
		for j, t := range atom.Terms {
			v, ok := t.(datalog.Variable)
			if !ok || v.IsAnonymous() {
				continue
			}
			sawAny[v.ID()] = true
			if atom.Negated {
				continue
			}
			if _, bound := canonical[v.ID()]; !bound {
				canonical[v.ID()] = Position{Atom: i, Term: j}
			}
		}
	}

	// Any variable seen only in negated positions has no canonical
	// binding position.
	for id := range sawAny {
		if _, bound := canonical[id]; !bound {
			return nil, fmt.Errorf("%w: variable id %d", datalog.ErrVariableOnlyInNegatedContext, id)
		}
	}

	return canonical, nil
}

// buildVarAndConstIndexes groups equal-variable positions across every
// body atom's own Terms (positive atoms and grouping atoms' outer terms
// alike — negated atoms' term positions are included too, since the IR
// treats a negated atom's complement as just another join input) and
// records constant positions.
func buildVarAndConstIndexes(rule datalog.Rule, ji *JoinIndexes) {
	groups := map[int64][]Position{}
	var order []int64

	for i, atom := range rule.Body {
		for j, t := range atom.Terms {
			pos := Position{Atom: i, Term: j}
			switch term := t.(type) {
			case datalog.Constant:
				ji.ConstIndexes[pos] = term.Value
			case datalog.Variable:
				if term.IsAnonymous() {
					continue
				}
				if _, seen := groups[term.ID()]; !seen {
					order = append(order, term.ID())
				}
				groups[term.ID()] = append(groups[term.ID()], pos)
			}
		}
	}

	for _, id := range order {
		positions := groups[id]
		if len(positions) > 1 {
			ji.VarIndexes = append(ji.VarIndexes, VarGroup(positions))
		}
	}
}

func buildDeps(rule datalog.Rule, ji *JoinIndexes) {
	for _, atom := range rule.Body {
		kind := EdgePositive
		switch {
		case atom.Negated:
			kind = EdgeNegated
		case atom.Kind == datalog.KindGrouping:
			kind = EdgeGrouping
		}
		ji.Deps = append(ji.Deps, DepEdge{Kind: kind, Relation: atom.Relation})
		if atom.Kind == datalog.KindGrouping && atom.Grouped != nil {
			// The grouped sub-atom's relation is also a dependency, always
			// via a grouping edge (its own negation flag is not consulted),
			// so it too forces a stratum bump.
			ji.Deps = append(ji.Deps, DepEdge{Kind: EdgeGrouping, Relation: atom.Grouped.Relation})
		}
	}
}

// buildCxns computes, for every ordered pair of body atoms, how many
// variables they share (counting only non-anonymous Variable terms, and
// only each atom's own outer Terms — not a grouping atom's internal
// sub-atom), then records that under both atoms' hashes.
func buildCxns(rule datalog.Rule, ji *JoinIndexes) {
	ji.Cxns = map[uint64]map[int][]uint64{}

	varSets := make([]map[int64]bool, len(rule.Body))
	hashes := make([]uint64, len(rule.Body))
	for i, atom := range rule.Body {
		set := map[int64]bool{}
		for _, t := range atom.Terms {
			if v, ok := t.(datalog.Variable); ok && !v.IsAnonymous() {
				set[v.ID()] = true
			}
		}
		varSets[i] = set
		hashes[i] = atom.Hash()
	}

	for i := range rule.Body {
		if ji.Cxns[hashes[i]] == nil {
			ji.Cxns[hashes[i]] = map[int][]uint64{}
		}
		for j := range rule.Body {
			if i == j {
				continue
			}
			shared := 0
			for id := range varSets[i] {
				if varSets[j][id] {
					shared++
				}
			}
			if shared > 0 {
				ji.Cxns[hashes[i]][shared] = append(ji.Cxns[hashes[i]][shared], hashes[j])
			}
		}
	}
}

// buildNegationInfo records, for every negated body atom, how to compute
// the universe of values its complement ranges over: per term position,
// either a literal constant, or the set of (relation, column) occurrences
// of that same variable in positive (non-negated) body atoms.
func buildNegationInfo(rule datalog.Rule, ji *JoinIndexes) error {
	for i, atom := range rule.Body {
		if !atom.Negated {
			continue
		}
		positions := make([]NegationPosition, len(atom.Terms))
		for j, t := range atom.Terms {
			switch term := t.(type) {
			case datalog.Constant:
				positions[j] = NegationPosition{IsConstant: true, Constant: term.Value}
			case datalog.Variable:
				if term.IsAnonymous() {
					positions[j] = NegationPosition{}
					continue
				}
				positions[j] = NegationPosition{Occurrences: occurrencesOf(rule, term)}
			}
		}
		ji.NegationInfo[i] = positions
	}
	return nil
}

func occurrencesOf(rule datalog.Rule, v datalog.Variable) []Occurrence {
	var occ []Occurrence
	for _, atom := range rule.Body {
		if atom.Negated {
			continue
		}
		for col, t := range atom.Terms {
			if other, ok := t.(datalog.Variable); ok && other.Equal(v) {
				occ = append(occ, Occurrence{Relation: atom.Relation, Column: col})
			}
		}
	}
	return occ
}

// buildGroupingIndexes compiles each grouping atom's internal join
// metadata (equalities/constants over the grouped sub-atom's own terms)
// and resolves every aggregation operand to a concrete source.
func buildGroupingIndexes(rule datalog.Rule, ji *JoinIndexes) error {
	for i, atom := range rule.Body {
		if atom.Kind != datalog.KindGrouping {
			continue
		}
		gp := atom.Grouped
		gi := GroupingIndex{ConstPositions: map[int]interface{}{}}

		groups := map[int64][]int{}
		var order []int64
		localVarPos := map[int64]int{}
		for pos, t := range gp.Terms {
			switch term := t.(type) {
			case datalog.Constant:
				gi.ConstPositions[pos] = term.Value
			case datalog.Variable:
				if term.IsAnonymous() {
					continue
				}
				if _, ok := localVarPos[term.ID()]; !ok {
					localVarPos[term.ID()] = pos
				}
				if _, seen := groups[term.ID()]; !seen {
					order = append(order, term.ID())
				}
				groups[term.ID()] = append(groups[term.ID()], pos)
			}
		}
		for _, id := range order {
			if positions := groups[id]; len(positions) > 1 {
				gi.VarEqualities = append(gi.VarEqualities, VarGroup(positionsFor(i, positions)))
			}
		}

		groupVarPos := map[int64]int{}
		for idx, gv := range atom.GroupByVar {
			groupVarPos[gv.ID()] = idx
			gi.GroupByPositions = append(gi.GroupByPositions, localVarPos[gv.ID()])
		}

		for _, ag := range atom.Aggregates {
			src, err := resolveAggSource(ag, groupVarPos, localVarPos)
			if err != nil {
				return err
			}
			gi.AggSources = append(gi.AggSources, src)
		}

		ji.GroupingIndexes[i] = gi
	}
	return nil
}

func positionsFor(atomIdx int, terms []int) []Position {
	out := make([]Position, len(terms))
	for i, t := range terms {
		out[i] = Position{Atom: atomIdx, Term: t}
	}
	return out
}

func resolveAggSource(ag datalog.AggDescriptor, groupVarPos, localVarPos map[int64]int) (AggSource, error) {
	if c, ok := ag.Term.(datalog.Constant); ok {
		return AggSource{Kind: SourceConstant, Op: ag.Op, Constant: c.Value}, nil
	}
	v, ok := ag.Term.(datalog.Variable)
	if !ok {
		return AggSource{}, fmt.Errorf("%w: aggregate operand %v is neither constant nor variable", datalog.ErrAggregationOnUnboundVariable, ag.Term)
	}
	if idx, ok := groupVarPos[v.ID()]; ok {
		return AggSource{Kind: SourceGroupVar, Op: ag.Op, Index: idx}, nil
	}
	if idx, ok := localVarPos[v.ID()]; ok {
		return AggSource{Kind: SourceLocalVar, Op: ag.Op, Index: idx}, nil
	}
	return AggSource{}, fmt.Errorf("%w: %s", datalog.ErrAggregationOnUnboundVariable, v)
}

// buildProjIndexes fills one ProjIndex per head term: a literal constant,
// or a reference to the variable's canonical body position. A head
// variable with no canonical position is ErrFreeHeadVariable.
func buildProjIndexes(rule datalog.Rule, canonical map[int64]Position, ji *JoinIndexes) error {
	for _, t := range rule.Head.Terms {
		switch term := t.(type) {
		case datalog.Constant:
			ji.ProjIndexes = append(ji.ProjIndexes, ProjIndex{IsConstant: true, Constant: term.Value})
		case datalog.Variable:
			pos, ok := canonical[term.ID()]
			if !ok {
				return fmt.Errorf("%w: %s in head of %s", datalog.ErrFreeHeadVariable, term, rule.Head)
			}
			ji.ProjIndexes = append(ji.ProjIndexes, ProjIndex{BodyPos: pos})
		}
	}
	return nil
}
