package ir

import (
	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// StratumRule pairs a rule with its compiled join indexes, the unit the
// builder consumes for one stratum.
type StratumRule struct {
	Rule    datalog.Rule
	Indexes *planner.JoinIndexes
}

// BuildStratumTree builds the program tree for one stratum: a DoWhileOp
// whose body re-evaluates every rule in the stratum using the
// semi-naive delta trick (each rule is split into one join variant per
// recursive body atom, that atom scanned at its delta generation and
// every other body atom at its known generation, unioned together) and
// inserts the results into each head relation's new generation, followed
// by a trailing SwapAndClearOp the driver invokes once it determines the
// stratum has not yet reached a fixpoint.
//
// local is the set of relations defined by rules in this stratum — the
// relations this stratum's fixpoint loop tracks deltas for. A positive
// body atom referencing a relation outside local is assumed to already
// be at a fixpoint (an EDB or a lower, already-converged stratum) and is
// always read at its known generation, never its delta.
//
// test selects the returned DoWhileOp's termination predicate.
func BuildStratumTree(rules []StratumRule, local map[datalog.RelationID]bool, test TerminationTest) *DoWhileOp {
	byHead := map[datalog.RelationID][]Node{}
	var headOrder []datalog.RelationID

	for _, sr := range rules {
		variants := buildRuleVariants(sr, local)
		head := sr.Indexes.HeadRelation()
		if _, seen := byHead[head]; !seen {
			headOrder = append(headOrder, head)
		}
		byHead[head] = append(byHead[head], variants...)
	}

	var inserts []Node
	for _, head := range headOrder {
		inserts = append(inserts, InsertOp{Relation: head, Source: UnionOp{Inputs: byHead[head]}})
	}

	localList := make([]datalog.RelationID, 0, len(local))
	for rel := range local {
		localList = append(localList, rel)
	}

	body := SequenceOp{Steps: append(append([]Node{}, inserts...), SwapAndClearOp{Relations: localList})}
	return &DoWhileOp{Body: body, Relations: localList, Test: test}
}

// buildRuleVariants returns one ProjectJoinFilterOp (or GroupOp-wrapped
// equivalent) per semi-naive delta variant of a rule: one variant per
// local positive body atom, with that atom scanned at its delta
// generation and all others at known; or a single all-known variant if
// the rule has no local positive atoms to drive a delta off of (a rule
// whose body is entirely EDB/lower-stratum atoms, evaluated once per
// iteration but idempotent thereafter since Union dedupes).
func buildRuleVariants(sr StratumRule, local map[datalog.RelationID]bool) []Node {
	body := sr.Rule.Body
	ji := sr.Indexes

	var driverPositions []int
	for i, atom := range body {
		if !atom.Negated && atom.Kind != datalog.KindGrouping && local[atom.Relation] {
			driverPositions = append(driverPositions, i)
		}
	}
	if len(driverPositions) == 0 {
		driverPositions = []int{-1} // sentinel: one all-known variant
	}

	variants := make([]Node, 0, len(driverPositions))
	for _, driver := range driverPositions {
		inputs := make([]Node, len(body))
		for i, atom := range body {
			inputs[i] = BuildAtomInput(i, atom, ji, i == driver)
		}
		variants = append(variants, ProjectJoinFilterOp{Rule: sr.Rule, Indexes: ji, Inputs: inputs})
	}
	return variants
}

// BuildAtomInput builds the input node for one body atom at position i:
// a ComplementOp for a negated atom, a GroupOp for a grouping atom, or a
// ScanOp otherwise (read at its delta generation iff isDriver). Exported
// so online re-planning (datalog/executor) can rebuild a
// ProjectJoinFilterOp's inputs after reordering its body without
// duplicating this dispatch.
func BuildAtomInput(i int, atom datalog.Atom, ji *planner.JoinIndexes, isDriver bool) Node {
	switch {
	case atom.Negated:
		return ComplementOp{AtomIndex: i, Relation: atom.Relation, Positions: ji.NegationInfo[i]}
	case atom.Kind == datalog.KindGrouping:
		return GroupOp{
			Source:     ScanOp{Relation: atom.Grouped.Relation, Delta: false},
			GroupIndex: ji.GroupingIndexes[i],
		}
	default:
		return ScanOp{Relation: atom.Relation, Delta: isDriver}
	}
}
