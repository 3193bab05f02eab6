package datalog

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// RelationID identifies a relation (EDB or IDB) by a small stable name.
// Unlike the teacher's 20-byte Entity hash, relations here are named by
// the host program, not content-addressed: there is no storage to
// dedupe against, only an in-memory map key.
type RelationID string

func (r RelationID) String() string { return string(r) }

// AggOp is an aggregation operator usable in a grouping atom.
type AggOp uint8

const (
	AggSum AggOp = iota
	AggCount
	AggMin
	AggMax
)

func (op AggOp) String() string {
	switch op {
	case AggSum:
		return "SUM"
	case AggCount:
		return "COUNT"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	default:
		return "UNKNOWN_AGG"
	}
}

// AggDescriptor is one (op, term) pair in a grouping atom's ags list.
type AggDescriptor struct {
	Op   AggOp
	Term Term
}

// AtomKind distinguishes a plain relational atom from one that groups and
// aggregates a sub-relation.
type AtomKind uint8

const (
	KindPositive AtomKind = iota
	KindGrouping
)

// Atom is a triple (relation, terms, flags). A grouping atom additionally
// carries a grouped sub-atom, group-by variables, and an aggregation
// list; those fields are nil/empty for a plain atom.
type Atom struct {
	Relation RelationID
	Terms    []Term
	Negated  bool
	Kind     AtomKind

	// Grouping-atom-only fields.
	Grouped    *Atom
	GroupByVar []Variable
	Aggregates []AggDescriptor
}

// NewAtom builds a plain, non-negated, non-grouping atom.
func NewAtom(relation RelationID, terms ...Term) Atom {
	return Atom{Relation: relation, Terms: terms, Kind: KindPositive}
}

// Negate returns a copy of the atom with the negated flag set.
func (a Atom) Negate() Atom {
	a.Negated = true
	return a
}

// NewGroupingAtom builds a grouping atom over gp, grouped by gv, with the
// given aggregation descriptors. The head projection terms are the
// caller's choice (typically the group-by variables followed by one
// variable per aggregate, bound positionally by the executor).
func NewGroupingAtom(relation RelationID, terms []Term, gp Atom, gv []Variable, ags []AggDescriptor) Atom {
	return Atom{
		Relation:   relation,
		Terms:      terms,
		Kind:       KindGrouping,
		Grouped:    &gp,
		GroupByVar: gv,
		Aggregates: ags,
	}
}

func (a Atom) String() string {
	if a.Kind == KindGrouping {
		return fmt.Sprintf("%s(%v) grouping %v by %v", a.Relation, a.Terms, a.Grouped, a.GroupByVar)
	}
	prefix := ""
	if a.Negated {
		prefix = "!"
	}
	return fmt.Sprintf("%s%s(%v)", prefix, a.Relation, a.Terms)
}

// Hash returns a stable hash of the atom, used as a planner-cache key.
// It depends on the relation id, the shape of each term (variable vs.
// constant, and which variable/constant), and nothing about Go object
// identity — two structurally identical atoms built independently hash
// identically, per spec.md's "Hashing of atoms for planner caches".
func (a Atom) Hash() uint64 {
	h := sha256.New()
	fmt.Fprintf(h, "R:%s;K:%d;N:%v;", a.Relation, a.Kind, a.Negated)
	for i, t := range a.Terms {
		writeTermHash(h, i, t)
	}
	if a.Kind == KindGrouping {
		fmt.Fprintf(h, "GP:%s;", a.Grouped.Relation)
		for _, gv := range a.GroupByVar {
			fmt.Fprintf(h, "GV:%d;", gv.ID())
		}
		for _, ag := range a.Aggregates {
			fmt.Fprintf(h, "AG:%s:", ag.Op)
			writeTermHash(h, -1, ag.Term)
		}
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

func writeTermHash(h interface{ Write([]byte) (int, error) }, pos int, t Term) {
	switch v := t.(type) {
	case Variable:
		if v.IsAnonymous() {
			fmt.Fprintf(h, "%d:_;", pos)
		} else {
			fmt.Fprintf(h, "%d:V%d;", pos, v.ID())
		}
	case Constant:
		fmt.Fprintf(h, "%d:C%v;", pos, v.Value)
	default:
		fmt.Fprintf(h, "%d:?;", pos)
	}
}

// Rule is a non-empty ordered sequence of atoms: index 0 is the head,
// the remainder is the body.
type Rule struct {
	Head Atom
	Body []Atom
}

// NewRule builds a rule from a head and body.
func NewRule(head Atom, body ...Atom) Rule {
	return Rule{Head: head, Body: body}
}

// Hash concatenates atom hashes the way spec.md's planner cache keys a
// rule: by rule-hash (concatenation of atom hashes).
func (r Rule) Hash() uint64 {
	h := sha256.New()
	fmt.Fprintf(h, "H:%d;", r.Head.Hash())
	for _, b := range r.Body {
		fmt.Fprintf(h, "B:%d;", b.Hash())
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

func (r Rule) String() string {
	return fmt.Sprintf("%v :- %v", r.Head, r.Body)
}
