package ir

import (
	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// DeltaIndex returns the body position n's Inputs marks as the
// semi-naive delta slot (the ScanOp with Delta == true), or -1 if this
// variant has no delta-driven position (the all-known fallback variant
// built for a rule with no local positive atoms).
func DeltaIndex(n ProjectJoinFilterOp) int {
	for i, in := range n.Inputs {
		if scan, ok := in.(ScanOp); ok && scan.Delta {
			return i
		}
	}
	return -1
}

// ReorderProjectJoinFilter re-plans n's body order under sortOrder,
// preserving which atom is the delta-driven one, and rebuilds n's
// Indexes and Inputs to match (spec.md §4.4's online reordering: "the
// executor identifies which child corresponds to the Δ input, calls
// presortSelect(..., deltaIdx), and substitutes the reordered subtree
// and new JoinIndexes"). Returns n unchanged if sortOrder is Unordered
// or planner.Compile fails on the reordered body (the latter should not
// happen — reordering a rule's body cannot itself introduce a planning
// error — but ReorderProjectJoinFilter fails closed rather than panic).
func ReorderProjectJoinFilter(n ProjectJoinFilterOp, sortOrder planner.SortOrder) ProjectJoinFilterOp {
	if sortOrder == planner.Unordered {
		return n
	}
	deltaIdx := DeltaIndex(n)

	order := planner.Reorder(n.Rule.Body, n.Indexes.Cxns, sortOrder, deltaIdx)
	reorderedBody := make([]datalog.Atom, 0, len(order))
	for _, idx := range order {
		reorderedBody = append(reorderedBody, n.Rule.Body[idx])
	}

	reorderedRule := n.Rule
	reorderedRule.Body = reorderedBody
	newJI, err := planner.Compile(reorderedRule)
	if err != nil {
		return n
	}

	newDeltaIdx := -1
	if deltaIdx >= 0 {
		for newPos, oldPos := range order {
			if oldPos == deltaIdx {
				newDeltaIdx = newPos
				break
			}
		}
	}

	inputs := make([]Node, len(reorderedBody))
	for i, atom := range reorderedBody {
		inputs[i] = BuildAtomInput(i, atom, newJI, i == newDeltaIdx)
	}

	return ProjectJoinFilterOp{Rule: reorderedRule, Indexes: newJI, Inputs: inputs}
}
