package planner

import (
	"sort"

	"github.com/wbrown/janus-fixpoint/datalog"
)

// SortOrder selects a body-atom reordering heuristic (spec.md §4.2).
type SortOrder uint8

const (
	Unordered SortOrder = iota
	Badluck
	Sel
	Mixed
	IntMax
	Worst
)

// OnlineSort selects when the interpreted executor re-plans a rule's
// body order at evaluation time rather than consuming whatever order the
// rule was compiled with (spec.md §4.4, §6 jitOptions.onlineSort ∈
// {off, perRule, perStep}). Off never re-plans at the executor boundary.
// PerRule re-plans the first time a given rule's ProjectJoinFilterOp is
// evaluated and reuses that plan for the rest of the solve. PerStep
// re-plans on every single evaluation, so the reorder is recomputed
// fresh at every semi-naive step.
type OnlineSort uint8

const (
	OnlineSortOff OnlineSort = iota
	OnlineSortPerRule
	OnlineSortPerStep
)

// RankFunc scores one body atom for presortSelect's initial stack.
// isDelta reports whether this body slot is the current semi-naive delta
// slot, which the driver supplies at solve time (a delta atom is
// typically ranked first so the join starts from the newly derived
// facts). The boolean return groups atoms into a coarse bucket (true
// sorts first) before the int breaks ties within a bucket.
type RankFunc func(atom datalog.Atom, isDelta bool) (bool, int)

// selectivityRank favors atoms with more constant positions (more
// selective) and fewer terms; Sel sorts most-selective first.
func selectivityRank(atom datalog.Atom, isDelta bool) (bool, int) {
	consts := 0
	for _, t := range atom.Terms {
		if _, ok := t.(datalog.Constant); ok {
			consts++
		}
	}
	return isDelta, -consts*10 + len(atom.Terms)
}

// mixedRank blends selectivity with arity, without the delta-first
// bucket that Sel applies.
func mixedRank(atom datalog.Atom, isDelta bool) (bool, int) {
	consts := 0
	for _, t := range atom.Terms {
		if _, ok := t.(datalog.Constant); ok {
			consts++
		}
	}
	return false, -consts*5 + len(atom.Terms)*2
}

// intMaxRank treats arity alone as the cost signal, largest body atoms
// last.
func intMaxRank(atom datalog.Atom, isDelta bool) (bool, int) {
	return isDelta, len(atom.Terms)
}

// RankFor returns the ranking function a SortOrder implies. Unordered,
// Badluck and Worst do not use a RankFunc for their primary ordering
// (Unordered/Badluck keep the user's order; Worst inverts connectivity
// instead) but Worst still needs an initial stack order, for which it
// reuses Sel's.
func RankFor(order SortOrder) RankFunc {
	switch order {
	case Sel, Worst:
		return selectivityRank
	case Mixed:
		return mixedRank
	case IntMax:
		return intMaxRank
	default:
		return nil
	}
}

// Reorder returns a permutation of body indices for the given order. For
// Unordered and Badluck the original order is returned untouched (the
// two names exist because the teacher's analogous settings are
// semantically identical but documented separately; Badluck is kept as
// an alias here for the same reason).
func Reorder(body []datalog.Atom, cxns map[uint64]map[int][]uint64, order SortOrder, deltaIdx int) []int {
	switch order {
	case Unordered, Badluck:
		return identityOrder(len(body))
	case Worst:
		return presortSelect(body, cxns, RankFor(order), deltaIdx, true)
	default:
		return presortSelect(body, cxns, RankFor(order), deltaIdx, false)
	}
}

func identityOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// presortSelect implements the greedy best-first reordering: sort the
// initial stack by rank, then repeatedly place the highest-connectivity
// (or, if worst is true, lowest-connectivity) unplaced peer of the most
// recently placed atom, falling back to the next stack element when the
// placed atom has no unplaced peers.
func presortSelect(body []datalog.Atom, cxns map[uint64]map[int][]uint64, rank RankFunc, deltaIdx int, worst bool) []int {
	n := len(body)
	if n == 0 {
		return nil
	}

	hashes := make([]uint64, n)
	hashToIdx := map[uint64]int{}
	for i, atom := range body {
		h := atom.Hash()
		hashes[i] = h
		hashToIdx[h] = i
	}

	stack := identityOrder(n)
	if rank != nil {
		sort.SliceStable(stack, func(a, b int) bool {
			ba, ia := rank(body[stack[a]], stack[a] == deltaIdx)
			bb, ib := rank(body[stack[b]], stack[b] == deltaIdx)
			if ba != bb {
				return ba // true sorts before false
			}
			return ia < ib
		})
	}

	placed := make([]bool, n)
	var order []int
	pos := 0

	takeFromStack := func() (int, bool) {
		for pos < len(stack) {
			idx := stack[pos]
			pos++
			if !placed[idx] {
				return idx, true
			}
		}
		return 0, false
	}

	last, ok := takeFromStack()
	for ok {
		placed[last] = true
		order = append(order, last)

		next, found := bestUnplacedPeer(hashes[last], cxns, hashToIdx, placed, worst)
		if !found {
			next, found = takeFromStack()
		}
		if !found {
			break
		}
		last, ok = next, true
	}

	return order
}

func bestUnplacedPeer(atomHash uint64, cxns map[uint64]map[int][]uint64, hashToIdx map[uint64]int, placed []bool, worst bool) (int, bool) {
	byCount := cxns[atomHash]
	if len(byCount) == 0 {
		return 0, false
	}

	counts := make([]int, 0, len(byCount))
	for c := range byCount {
		counts = append(counts, c)
	}
	if worst {
		sort.Ints(counts) // Worst: least-connected first (ascending).
	} else {
		sort.Sort(sort.Reverse(sort.IntSlice(counts))) // Sel/default: most-connected first (descending).
	}

	for _, c := range counts {
		for _, peerHash := range byCount[c] {
			idx, ok := hashToIdx[peerHash]
			if ok && !placed[idx] {
				return idx, true
			}
		}
	}
	return 0, false
}

// AllOrders returns the JoinIndexes for every permutation of rule's body,
// for exhaustive planning during development and tests (spec.md §4.2).
// It is intentionally unoptimized (factorial in body length) and is not
// meant for production solve paths.
func AllOrders(rule datalog.Rule) ([]*JoinIndexes, error) {
	n := len(rule.Body)
	indices := identityOrder(n)
	var results []*JoinIndexes
	var err error

	permute(indices, 0, func(perm []int) bool {
		body := make([]datalog.Atom, n)
		for i, p := range perm {
			body[i] = rule.Body[p]
		}
		ji, e := Compile(datalog.NewRule(rule.Head, body...))
		if e != nil {
			err = e
			return false
		}
		results = append(results, ji)
		return true
	})

	if err != nil {
		return nil, err
	}
	return results, nil
}

func permute(a []int, k int, visit func([]int) bool) bool {
	if k == len(a) {
		cp := make([]int, len(a))
		copy(cp, a)
		return visit(cp)
	}
	for i := k; i < len(a); i++ {
		a[k], a[i] = a[i], a[k]
		if !permute(a, k+1, visit) {
			a[k], a[i] = a[i], a[k]
			return false
		}
		a[k], a[i] = a[i], a[k]
	}
	return true
}
