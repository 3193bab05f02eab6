package datalog

import "errors"

// Error taxonomy (spec.md §7). Each is a sentinel so callers can use
// errors.Is; call sites wrap these with fmt.Errorf("%w: ...") to add
// context, mirroring the teacher's fmt.Errorf("...: %w", err) convention
// rather than a bespoke error package.
var (
	// ErrVariableOnlyInNegatedContext is planning-time: a body variable
	// has no non-negated, non-aggregated occurrence to bind it.
	ErrVariableOnlyInNegatedContext = errors.New("variable only in negated context")

	// ErrFreeHeadVariable is planning-time: a head variable is not
	// canonically bound anywhere in the body.
	ErrFreeHeadVariable = errors.New("free variable in head")

	// ErrAnonymousHeadVariable is planning-time: the head contains an
	// anonymous variable, which is never allowed.
	ErrAnonymousHeadVariable = errors.New("anonymous variable in head")

	// ErrUnstratifiableNegationOrAggregation is planning-time: the rule
	// dependency graph has a cycle through a negated or grouping edge.
	ErrUnstratifiableNegationOrAggregation = errors.New("unstratifiable recursion through negation or aggregation")

	// ErrUnknownRelation is solve-time: a rule references a relation id
	// with no EDB and no producing rule.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrArityMismatch is EDB-insert or rule-validation time: a tuple or
	// head projection doesn't match the relation's declared arity.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrAggregationOnUnboundVariable is planning-time: an aggregation
	// operand is in neither the group-by variables nor the grouped
	// atom's local variable set.
	ErrAggregationOnUnboundVariable = errors.New("aggregation operand is not bound by the grouped atom")

	// ErrIterationLimitExceeded is solve-time: a supplementary safety
	// valve (SPEC_FULL.md §5) for a rule set whose Herbrand universe
	// turns out not to be bounded in practice.
	ErrIterationLimitExceeded = errors.New("semi-naive evaluation exceeded the configured iteration limit")
)
