// Package engine is the top-level façade: Program (the rule/fact
// builder), stratification, and the semi-naive solve driver that ties
// planner, ir, executor, and compiler together (spec.md §4.6, §6).
// Grounded on the teacher's datalog/storage/database.go Database type —
// the stateful façade callers hold one of and call Transact/Query
// against — generalized from asserted-triple transactions to declared
// relations, asserted EDB facts, and derivation rules.
package engine

import (
	"fmt"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

// Program is the builder callers assemble a Datalog program with:
// declare relations and EDB facts, add rules, then Solve for a queried
// relation. It owns one Storage and one planner.Cache for its lifetime.
type Program struct {
	storage *storage.Storage
	cache   *planner.Cache

	rulesByHead map[datalog.RelationID][]datalog.Rule
	headOrder   []datalog.RelationID
}

// NewProgram creates an empty Program.
func NewProgram() *Program {
	return &Program{
		storage:     storage.New(),
		cache:       planner.NewCache(0, 0),
		rulesByHead: map[datalog.RelationID][]datalog.Rule{},
	}
}

// DeclareRelation fixes a relation's arity up front, so later ArityMismatch
// errors can be raised at assert/rule-add time rather than only at solve
// time.
func (p *Program) DeclareRelation(rel datalog.RelationID, arity int) error {
	return p.storage.DeclareArity(rel, arity)
}

// DeclareVariable is a naming convenience over datalog.NewVariable, kept
// as a Program method so callers build rules entirely through one API
// surface.
func (p *Program) DeclareVariable(name string) datalog.Variable {
	return datalog.NewVariable(name)
}

// AssertEDB adds one fact to relation's extensional database.
func (p *Program) AssertEDB(rel datalog.RelationID, values ...interface{}) error {
	return p.storage.InsertEDB(rel, storage.Tuple(values))
}

// AddRule validates and registers a derivation rule. Validation (free
// head variables, anonymous head variables, variable-only-in-negated-
// context, aggregation-on-unbound-variable) happens here, at
// planner.Compile time, via the errors in datalog/errors.go.
func (p *Program) AddRule(rule datalog.Rule) error {
	if _, err := planner.Compile(rule); err != nil {
		return err
	}
	head := rule.Head.Relation
	if _, seen := p.rulesByHead[head]; !seen {
		p.headOrder = append(p.headOrder, head)
	}
	p.rulesByHead[head] = append(p.rulesByHead[head], rule)
	if err := p.storage.DeclareArity(head, len(rule.Head.Terms)); err != nil {
		return err
	}
	return nil
}

// Storage exposes the underlying storage manager, e.g. for tests that
// want to inspect intermediate generations directly.
func (p *Program) Storage() *storage.Storage {
	return p.storage
}

// relationKnown reports whether rel has been declared, asserted, or is a
// rule head — used by Solve to raise UnknownRelation for a queried or
// rule-body relation no rule or assertion ever produces.
func (p *Program) relationKnown(rel datalog.RelationID) bool {
	if p.storage.HasRelation(rel) {
		return true
	}
	_, ok := p.rulesByHead[rel]
	return ok
}

// allRelations returns every relation with at least one rule, used to
// build the dependency graph for stratification.
func (p *Program) allRelations() []datalog.RelationID {
	out := make([]datalog.RelationID, len(p.headOrder))
	copy(out, p.headOrder)
	return out
}

func (p *Program) validateQueried(rel datalog.RelationID) error {
	if !p.relationKnown(rel) {
		return fmt.Errorf("%w: %s", datalog.ErrUnknownRelation, rel)
	}
	for _, head := range p.headOrder {
		for _, rule := range p.rulesByHead[head] {
			for _, atom := range rule.Body {
				ref := atom.Relation
				if atom.Kind == datalog.KindGrouping && atom.Grouped != nil {
					ref = atom.Grouped.Relation
				}
				if !p.relationKnown(ref) {
					return fmt.Errorf("%w: %s referenced by rule %s", datalog.ErrUnknownRelation, ref, rule)
				}
			}
		}
	}
	return nil
}
