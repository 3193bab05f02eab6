package engine

import (
	"fmt"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// stratumEdge is one dependency edge in the rule graph: head depends on
// to, via an edge of the given kind (positive/negated/grouping).
type stratumEdge struct {
	to   datalog.RelationID
	kind planner.EdgeKind
}

// stratify computes an evaluation order for p's rules: each returned
// stratum is a set of mutually-recursive relations (a strongly connected
// component of the rule dependency graph) that must be evaluated
// together to a fixpoint before any later stratum runs. A negated or
// grouping edge inside one stratum (i.e. the negated/grouped relation is
// mutually recursive with the relation that negates/groups it) is
// rejected: spec.md requires every negation and aggregation to reference
// an already-stratified, lower layer.
//
// Grounded on the standard Tarjan SCC algorithm; the teacher has no
// analogous graph pass (it has no recursive rules at all), so this is
// drawn from general graph-algorithm idiom rather than a teacher file,
// the way datalog engines universally stratify negation.
func stratify(p *Program, plans map[datalog.RelationID][]*planner.JoinIndexes) ([][]datalog.RelationID, error) {
	edges := map[datalog.RelationID][]stratumEdge{}
	nodes := map[datalog.RelationID]bool{}

	for head, rulePlans := range plans {
		nodes[head] = true
		for _, ji := range rulePlans {
			for _, dep := range ji.Deps {
				nodes[dep.Relation] = true
				edges[head] = append(edges[head], stratumEdge{to: dep.Relation, kind: dep.Kind})
			}
		}
	}

	t := &tarjan{
		edges:   edges,
		index:   map[datalog.RelationID]int{},
		lowlink: map[datalog.RelationID]int{},
		onStack: map[datalog.RelationID]bool{},
	}
	var order []datalog.RelationID
	for node := range nodes {
		order = append(order, node)
	}
	sortRelationIDs(order)

	for _, n := range order {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}

	for _, scc := range t.sccs {
		members := map[datalog.RelationID]bool{}
		for _, r := range scc {
			members[r] = true
		}
		if len(scc) > 1 || hasSelfLoop(edges, scc[0]) {
			for _, r := range scc {
				for _, e := range edges[r] {
					if members[e.to] && e.kind != planner.EdgePositive {
						return nil, fmt.Errorf("%w: relation %s", datalog.ErrUnstratifiableNegationOrAggregation, r)
					}
				}
			}
		}
	}

	strata := make([][]datalog.RelationID, len(t.sccs))
	for i, scc := range t.sccs {
		strata[i] = scc
	}
	return strata, nil
}

func hasSelfLoop(edges map[datalog.RelationID][]stratumEdge, rel datalog.RelationID) bool {
	for _, e := range edges[rel] {
		if e.to == rel {
			return true
		}
	}
	return false
}

// sortRelationIDs gives Tarjan a deterministic root-selection order, so
// stratification (and therefore solve order, for relations the caller
// never observes an interleaving of) is reproducible across runs.
func sortRelationIDs(ids []datalog.RelationID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// tarjan implements Tarjan's strongly-connected-components algorithm.
// SCCs are appended to sccs in the order they are fully identified,
// which — since an SCC is only popped once every relation it depends on
// has itself already been fully identified — is already a valid
// dependency order: earlier entries in sccs depend on nothing in later
// entries.
type tarjan struct {
	edges   map[datalog.RelationID][]stratumEdge
	index   map[datalog.RelationID]int
	lowlink map[datalog.RelationID]int
	onStack map[datalog.RelationID]bool
	stack   []datalog.RelationID
	counter int
	sccs    [][]datalog.RelationID
}

func (t *tarjan) strongConnect(v datalog.RelationID) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.edges[v] {
		w := e.to
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []datalog.RelationID
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
