package engine

import (
	"strconv"
	"strings"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/annotations"
	"github.com/wbrown/janus-fixpoint/datalog/compiler"
	"github.com/wbrown/janus-fixpoint/datalog/executor"
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/planner"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

// specCache memoizes compiled strata within one Solve call: Solve builds
// a fresh one each time, so nothing is reused across Solve calls. Keys
// are the opts.Granularity value followed by the stratum's sorted
// relation set (specCacheKey), so the three granularities differ only in
// the key prefix; none of them caches a single rule or a sub-rule
// closure, since compiler.Specialize works on a whole stratum tree.
type specCache struct {
	entries map[string]*compiler.CompiledStratum
}

func newSpecCache() *specCache {
	return &specCache{entries: map[string]*compiler.CompiledStratum{}}
}

// Solve runs every stratum of p's rule set to a fixpoint, in dependency
// order, then returns the current tuples of queried. It is the engine's
// external entry point (spec.md §6): Options.UseStagedExecutor selects
// between the interpreted executor and the staged/compiled one. Solve is
// GenerateProgramTree followed by either the interpreted walk or
// Specialize+RunSpecialized, folded into one call for the common case of
// a program solved once; GenerateProgramTree, Specialize and
// RunSpecialized are the same pipeline split across calls for a caller
// that wants to reuse one specialization across several runs.
func (p *Program) Solve(queried datalog.RelationID, opts Options, trace *annotations.Collector) ([]storage.Tuple, error) {
	pt, err := p.GenerateProgramTree(queried, opts, trace)
	if err != nil {
		return nil, err
	}

	if trace != nil {
		trace.Add(annotations.Event{Name: annotations.SolveBegin})
	}

	cache := newSpecCache()
	for _, tree := range pt.Strata {
		if trace != nil {
			trace.Add(annotations.Event{Name: annotations.StratumBegin})
		}

		if opts.UseStagedExecutor {
			cs, err := getOrSpecialize(cache, tree, opts, trace)
			if err != nil {
				return nil, err
			}
			if err := compiler.Run(cs, p.storage, opts.MaxIterations, trace); err != nil {
				if trace != nil {
					trace.Add(annotations.Event{Name: annotations.ErrorIterationLimit})
				}
				return nil, err
			}
		} else {
			exec := executor.New(p.storage, trace, executor.Options{SortOrder: opts.SortOrder, OnlineSort: opts.OnlineSort})
			if err := exec.Exec(tree, opts.MaxIterations); err != nil {
				if trace != nil {
					trace.Add(annotations.Event{Name: annotations.ErrorIterationLimit})
				}
				return nil, err
			}
		}

		if trace != nil {
			trace.Add(annotations.Event{Name: annotations.StratumComplete})
		}
	}

	if trace != nil {
		sizes := map[string]int{}
		for _, r := range pt.Relations {
			sizes[string(r)] = len(p.storage.GetKnownDerived(r))
		}
		trace.Add(annotations.Event{Name: annotations.SolveComplete, Data: map[string]interface{}{"relation.sizes": sizes}})
	}

	return p.storage.GetKnownDerived(queried), nil
}

func getOrSpecialize(cache *specCache, tree *ir.DoWhileOp, opts Options, trace *annotations.Collector) (*compiler.CompiledStratum, error) {
	key := specCacheKey(tree, opts.Granularity)
	if cs, ok := cache.entries[key]; ok {
		return cs, nil
	}
	cs, err := compiler.Specialize(tree, trace)
	if err != nil {
		return nil, err
	}
	cache.entries[key] = cs
	return cs, nil
}

func specCacheKey(tree *ir.DoWhileOp, g Granularity) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(g)))
	rels := append([]datalog.RelationID{}, tree.Relations...)
	sortRelationIDs(rels)
	for _, r := range rels {
		b.WriteByte('|')
		b.WriteString(string(r))
	}
	return b.String()
}

// compileAllRules compiles every registered rule once (consulting
// opts.SortOrder/OnlineSort for body reordering) and returns the results
// grouped by head relation, used both for stratification's dependency
// graph and for the IR builder.
func (p *Program) compileAllRules(opts Options) (map[datalog.RelationID][]*planner.JoinIndexes, error) {
	out := map[datalog.RelationID][]*planner.JoinIndexes{}
	for _, head := range p.headOrder {
		for _, rule := range p.rulesByHead[head] {
			compiled, err := p.compileOne(rule, opts)
			if err != nil {
				return nil, err
			}
			out[head] = append(out[head], compiled)
		}
	}
	return out, nil
}

// compileOne compiles rule under opts.SortOrder, reordering its body
// first when SortOrder isn't Unordered. OnlineSort bypasses the planner
// cache so the reorder is recomputed fresh every solve (e.g. when a
// caller mutates EDB cardinalities between solves and wants selectivity
// heuristics like Sel/Mixed to reflect current data) rather than reusing
// whatever order a previous solve cached.
func (p *Program) compileOne(rule datalog.Rule, opts Options) (*planner.JoinIndexes, error) {
	if opts.OnlineSort == planner.OnlineSortOff {
		if cached, ok := p.cache.Get(rule, opts.SortOrder); ok {
			return cached, nil
		}
	}

	if opts.SortOrder == planner.Unordered {
		ji, err := planner.Compile(rule)
		if err != nil {
			return nil, err
		}
		p.cache.Set(rule, opts.SortOrder, ji)
		return ji, nil
	}

	base, err := planner.Compile(rule)
	if err != nil {
		return nil, err
	}
	order := planner.Reorder(rule.Body, base.Cxns, opts.SortOrder, -1)
	reordered := make([]datalog.Atom, len(rule.Body))
	for i, idx := range order {
		reordered[i] = rule.Body[idx]
	}
	ji, err := planner.Compile(datalog.NewRule(rule.Head, reordered...))
	if err != nil {
		return nil, err
	}
	p.cache.Set(rule, opts.SortOrder, ji)
	return ji, nil
}

func stratumRules(p *Program, plans map[datalog.RelationID][]*planner.JoinIndexes, scc []datalog.RelationID) []ir.StratumRule {
	var out []ir.StratumRule
	for _, rel := range scc {
		rules := p.rulesByHead[rel]
		for i, rule := range rules {
			out = append(out, ir.StratumRule{Rule: rule, Indexes: plans[rel][i]})
		}
	}
	return out
}
