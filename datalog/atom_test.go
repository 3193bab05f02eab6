package datalog

import "testing"

func TestAtomHashStableAcrossIndependentConstruction(t *testing.T) {
	x := NewVariable("?x")
	y := NewVariable("?y")

	a1 := NewAtom("edge", x, y)
	a2 := NewAtom("edge", x, y)

	if a1.Hash() != a2.Hash() {
		t.Fatal("identical atoms built independently must hash identically")
	}
}

func TestAtomHashDiffersOnNegation(t *testing.T) {
	x := NewVariable("?x")
	a := NewAtom("p", x)
	if a.Hash() == a.Negate().Hash() {
		t.Fatal("negating an atom must change its hash")
	}
}

func TestAtomHashIgnoresVariableNameUsesIdentity(t *testing.T) {
	x := NewVariable("?x")
	aliasedSameVar := NewAtom("p", x)
	differentVar := NewAtom("p", NewVariable("?x")) // same printable name, different variable

	if aliasedSameVar.Hash() != NewAtom("p", x).Hash() {
		t.Fatal("reusing the same Variable value must hash identically")
	}
	if aliasedSameVar.Hash() == differentVar.Hash() {
		t.Fatal("a freshly allocated variable with the same name is a different variable and should hash differently")
	}
}

func TestRuleHash(t *testing.T) {
	x, y, z := NewVariable("?x"), NewVariable("?y"), NewVariable("?z")
	r1 := NewRule(NewAtom("path", x, z), NewAtom("edge", x, y), NewAtom("path", y, z))
	r2 := NewRule(NewAtom("path", x, z), NewAtom("edge", x, y), NewAtom("path", y, z))
	if r1.Hash() != r2.Hash() {
		t.Fatal("structurally identical rules must hash identically")
	}
}
