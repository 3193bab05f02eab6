// Package datalog defines the term model shared by every layer of the
// evaluation engine: constants and variables, the atoms built from them,
// and the rules that relate atoms to each other.
package datalog

import (
	"fmt"
	"sync/atomic"
)

// Term is a value appearing in an atom position: either a Constant drawn
// from the host's value space, or a Variable bound by unification within
// a rule.
type Term interface {
	IsVariable() bool
	// IsAnonymous reports whether this term is the anonymous variable,
	// which never participates in a join (spec open question, resolved:
	// anonymous variables never create a connection between atoms).
	IsAnonymous() bool
	String() string
}

// Constant is an opaque, equality- and hash-comparable value from the
// host's value space. In practice this is a string, an int64, a float64,
// a bool, or anything comparable with ==; CompareValues defines ordering
// for MIN/MAX aggregation.
type Constant struct {
	Value interface{}
}

func NewConstant(v interface{}) Constant { return Constant{Value: v} }

func (c Constant) IsVariable() bool  { return false }
func (c Constant) IsAnonymous() bool { return false }
func (c Constant) String() string    { return fmt.Sprintf("%v", c.Value) }

var nextVariableID int64

// Variable is identified by a process-local id, not by name: two
// Variable values are the same variable iff their ids match. Anonymous
// variables are allocated fresh ids and are therefore always distinct
// from every other variable, including other anonymous ones.
type Variable struct {
	id        int64
	name      string // for String()/debugging only, not identity
	anonymous bool
}

// NewVariable allocates a fresh, uniquely-identified variable. name is
// cosmetic (used only by String()).
func NewVariable(name string) Variable {
	id := atomic.AddInt64(&nextVariableID, 1)
	return Variable{id: id, name: name}
}

// AnonymousVariable allocates a fresh anonymous variable ("_"). Each call
// returns a distinct variable; anonymous variables are never equated
// with one another even when constructed back to back.
func AnonymousVariable() Variable {
	v := NewVariable("_")
	v.anonymous = true
	return v
}

func (v Variable) IsVariable() bool  { return true }
func (v Variable) IsAnonymous() bool { return v.anonymous }
func (v Variable) ID() int64         { return v.id }

func (v Variable) String() string {
	if v.name != "" {
		return v.name
	}
	return fmt.Sprintf("?v%d", v.id)
}

// Equal reports whether two variables are the very same declared
// variable (by id), never by name.
func (v Variable) Equal(other Variable) bool {
	return v.id == other.id
}
