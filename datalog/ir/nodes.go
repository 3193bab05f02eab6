// Package ir is the relational-algebra intermediate representation: a
// small tree of operation nodes that both the interpreted executor
// (datalog/executor) and the staged executor (datalog/compiler) consume,
// one tree-walking and the other specializing into closures. The node
// set mirrors the teacher's planner.Phase/QueryPlan composition — a
// small number of named operation kinds assembled into a tree rather
// than a flat instruction list — generalized from query phases to the
// semi-naive fixpoint's scan/join/union/diff/complement/group/swap
// vocabulary.
package ir

import (
	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
)

// Node is any IR tree node. It carries no behavior itself — executors
// type-switch on the concrete node types below, the way the teacher's
// executor type-switches on planner.Phase variants.
type Node interface {
	node()
}

// ScanOp reads a generation of one relation: known or delta, as of the
// point in the tree it appears.
type ScanOp struct {
	Relation datalog.RelationID
	Delta    bool // false: scan known; true: scan delta
}

func (ScanOp) node() {}

// ProjectJoinFilterOp evaluates one rule body (already compiled to
// JoinIndexes) against a list of input nodes, one per body atom, in the
// rule's body order, and yields the projected head tuples.
type ProjectJoinFilterOp struct {
	Rule    datalog.Rule
	Indexes *planner.JoinIndexes
	Inputs  []Node
}

func (ProjectJoinFilterOp) node() {}

// UnionOp returns the set union of its inputs.
type UnionOp struct {
	Inputs []Node
}

func (UnionOp) node() {}

// DiffOp returns Left minus Right (set difference), used to derive a
// delta as new-derived minus known-derived.
type DiffOp struct {
	Left, Right Node
}

func (DiffOp) node() {}

// ComplementOp evaluates a negated atom's complement over the universe
// its variables range over in the rule's positive atoms.
type ComplementOp struct {
	AtomIndex int
	Relation  datalog.RelationID
	Positions []planner.NegationPosition
}

func (ComplementOp) node() {}

// GroupOp evaluates a grouping atom: its Source node supplies the
// sub-atom's rows, GroupIndex says how to bucket and fold them.
type GroupOp struct {
	Source     Node
	GroupIndex planner.GroupingIndex
}

func (GroupOp) node() {}

// InsertOp writes Source's tuples into Relation's new-generation derived
// set (union with whatever is already there from an earlier rule in the
// same stratum).
type InsertOp struct {
	Relation datalog.RelationID
	Source   Node
}

func (InsertOp) node() {}

// SwapAndClearOp swaps the known/new generations for Relations, reseeds
// the (post-swap) new generation's derived tuples with a copy of known
// and clears its delta, readying the next iteration.
type SwapAndClearOp struct {
	Relations []datalog.RelationID
}

func (SwapAndClearOp) node() {}

// SequenceOp runs Steps in order; it has no data-flow output of its own,
// it exists to sequence side-effecting ops (InsertOp, SwapAndClearOp).
type SequenceOp struct {
	Steps []Node
}

func (SequenceOp) node() {}

// TerminationTest selects which storage.Storage predicate a DoWhileOp's
// driver consults to decide whether a stratum has reached its fixpoint
// (spec.md §4.3 DoWhileOp(test), §4.1's deltaEmpty/fixpointReached pair).
type TerminationTest uint8

const (
	// DeltaEmpty stops once every tracked relation's new-generation delta
	// is empty (storage.Storage.DeltaEmpty) — the default, cheaper test.
	DeltaEmpty TerminationTest = iota
	// FixpointReached stops once known and new derived databases are
	// element-equal for every tracked relation (storage.Storage.FixpointReached)
	// — an alternative, more expensive test that does not rely on delta
	// bookkeeping having been threaded correctly.
	FixpointReached
)

// DoWhileOp runs Body at least once, then repeats while Test has not yet
// signaled the stratum's fixpoint. One DoWhileOp corresponds to one
// stratum's fixpoint loop.
type DoWhileOp struct {
	Body      Node
	Relations []datalog.RelationID
	Test      TerminationTest
}

func (DoWhileOp) node() {}
