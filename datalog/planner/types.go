// Package planner compiles a datalog.Rule into JoinIndexes: the
// variable-equality classes, constant constraints, head projection,
// dependency edges, connectivity map, and negation/grouping metadata
// that the storage manager and IR builder need to execute the rule.
// It mirrors the teacher's datalog/planner package in shape (a types.go
// of plan structs, a planner.go that builds them, a cache.go that memoizes
// them) even though the teacher plans index selection over a triple
// store rather than join order over IDB rules.
package planner

import (
	"fmt"

	"github.com/wbrown/janus-fixpoint/datalog"
)

// Position identifies one term slot within a rule's body: the i-th atom,
// j-th term.
type Position struct {
	Atom int
	Term int
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.Atom, p.Term) }

// VarGroup is a set of positions that must all hold the same value for a
// substitution to satisfy the rule — an equi-join equality class.
type VarGroup []Position

// EdgeKind classifies a dependency edge from a rule's head relation to a
// body relation.
type EdgeKind uint8

const (
	EdgePositive EdgeKind = iota
	EdgeNegated
	EdgeGrouping
)

func (k EdgeKind) String() string {
	switch k {
	case EdgePositive:
		return "positive"
	case EdgeNegated:
		return "negated"
	case EdgeGrouping:
		return "grouping"
	default:
		return "unknown"
	}
}

// DepEdge is one entry of a rule's deps list: this rule's head depends
// on Relation via an edge of Kind.
type DepEdge struct {
	Kind     EdgeKind
	Relation datalog.RelationID
}

// ProjIndex describes how to fill one head position: either a literal
// constant, or a copy of the value at BodyPos (the variable's canonical
// body position).
type ProjIndex struct {
	IsConstant bool
	Constant   interface{}
	BodyPos    Position
}

// Occurrence is one (relation, column) slot where a variable is bound by
// a positive body atom — used to build the universe a negated atom's
// complement is computed against.
type Occurrence struct {
	Relation datalog.RelationID
	Column   int
}

// NegationPosition describes one term slot of a negated atom: either it
// is itself a constant, or it is a variable whose universe of possible
// values is the union of values seen at the listed positive occurrences.
// An anonymous variable position (no occurrences, not a constant)
// contributes the full domain, which storage.Complement takes to be the
// values the negated relation's own extension holds in that column.
type NegationPosition struct {
	IsConstant  bool
	Constant    interface{}
	Occurrences []Occurrence
}

// AggSourceKind classifies where an aggregation operand's value comes
// from when evaluating one group.
type AggSourceKind uint8

const (
	// SourceGroupVar: operand is one of the grouping atom's group-by
	// variables (one value per group).
	SourceGroupVar AggSourceKind = iota
	// SourceLocalVar: operand is a variable local to the grouped
	// sub-atom (one value per row within the group).
	SourceLocalVar
	// SourceConstant: operand is a literal constant (e.g. COUNT(*)).
	SourceConstant
)

// AggSource resolves one AggDescriptor's operand to a concrete source.
type AggSource struct {
	Kind     AggSourceKind
	Op       datalog.AggOp
	Index    int         // column index into group-by tuple or grouped-row tuple
	Constant interface{} // valid when Kind == SourceConstant
}

// GroupingIndex is the compiled metadata for one grouping atom in a
// rule's body.
type GroupingIndex struct {
	// VarEqualities / ConstPositions mirror varIndexes/constIndexes but
	// scoped to the grouped sub-atom's own term positions.
	VarEqualities   []VarGroup
	ConstPositions  map[int]interface{}
	GroupByPositions []int // positions within Grouped.Terms matching GroupByVar, in GroupByVar order
	AggSources      []AggSource
}

// JoinIndexes is the full compiled plan for one rule (or one body
// permutation of that rule — the planner produces a JoinIndexes per
// ordering it's asked to evaluate).
type JoinIndexes struct {
	Rule datalog.Rule

	// VarIndexes groups body positions (across ALL atoms, positive and
	// negated alike) that must hold equal values.
	VarIndexes []VarGroup

	// ConstIndexes maps a body position to the constant it must equal.
	ConstIndexes map[Position]interface{}

	// ProjIndexes has one entry per head term, in head order.
	ProjIndexes []ProjIndex

	// Deps lists this rule's dependency edges, in body order.
	Deps []DepEdge

	// Cxns maps an atom's stable hash to, for each shared-variable
	// count, the hashes of body atoms sharing that many variables with
	// it. Anonymous variables never count toward a shared-variable
	// total (spec.md open question, resolved: they never connect atoms).
	Cxns map[uint64]map[int][]uint64

	// NegationInfo maps a negated atom's body index to one
	// NegationPosition per term.
	NegationInfo map[int][]NegationPosition

	// GroupingIndexes maps a grouping atom's body index to its compiled
	// grouping metadata.
	GroupingIndexes map[int]GroupingIndex

	// EDB is true iff this rule is a trivial EDB assertion (a head with
	// an empty body). Compile returns such a JoinIndexes without building
	// any other index; nothing in the engine reads this flag to seed
	// facts, which enter through storage.InsertEDB instead.
	EDB bool
}

// HeadRelation is a shorthand for Rule.Head.Relation.
func (ji *JoinIndexes) HeadRelation() datalog.RelationID {
	return ji.Rule.Head.Relation
}
