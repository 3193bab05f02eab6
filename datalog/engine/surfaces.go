package engine

import (
	"time"

	"github.com/wbrown/janus-fixpoint/datalog"
	"github.com/wbrown/janus-fixpoint/datalog/annotations"
	"github.com/wbrown/janus-fixpoint/datalog/compiler"
	"github.com/wbrown/janus-fixpoint/datalog/ir"
	"github.com/wbrown/janus-fixpoint/datalog/storage"
)

// ProgramTree is p's program tree for one queried relation: one
// ir.DoWhileOp per stratum, in dependency order, plus the bookkeeping
// Solve's later stages need. It is spec.md §6's generateProgramTree
// surface made a first-class, reusable value rather than an inline step
// of Solve.
type ProgramTree struct {
	Queried   datalog.RelationID
	Relations []datalog.RelationID
	Strata    []*ir.DoWhileOp
	Opts      Options
}

// CompiledProgram is a ProgramTree with every stratum specialized
// (spec.md §6's specialize surface): one compiler.CompiledStratum per
// stratum, in the same dependency order as Tree.Strata.
type CompiledProgram struct {
	Tree   *ProgramTree
	Strata []*compiler.CompiledStratum
}

// GenerateProgramTree validates queried, compiles and stratifies p's
// rule set under opts, and builds one ir.DoWhileOp per non-empty
// stratum. It initializes p's Storage for a fresh evaluation but runs
// nothing — callers drive the returned tree with the interpreted
// executor directly, or hand it to Specialize for the staged path.
func (p *Program) GenerateProgramTree(queried datalog.RelationID, opts Options, trace *annotations.Collector) (*ProgramTree, error) {
	if err := p.validateQueried(queried); err != nil {
		return nil, err
	}

	plans, err := p.compileAllRules(opts)
	if err != nil {
		return nil, err
	}

	strata, err := stratify(p, plans)
	if err != nil {
		if trace != nil {
			trace.Add(annotations.Event{Name: annotations.ErrorUnstratifiable})
		}
		return nil, err
	}

	relations := make([]datalog.RelationID, 0, len(p.headOrder))
	for _, r := range p.headOrder {
		relations = append(relations, r)
	}
	p.storage.InitEvaluation(relations)

	pt := &ProgramTree{Queried: queried, Relations: relations, Opts: opts}
	for _, scc := range strata {
		rulePlans := stratumRules(p, plans, scc)
		if len(rulePlans) == 0 {
			continue // a pure-EDB relation with no rules has nothing to iterate
		}
		local := map[datalog.RelationID]bool{}
		for _, r := range scc {
			local[r] = true
		}

		treeStart := time.Now()
		tree := ir.BuildStratumTree(rulePlans, local, opts.Termination)
		if trace != nil {
			trace.AddTiming(annotations.TreeGenerated, treeStart, nil)
		}
		pt.Strata = append(pt.Strata, tree)
	}
	return pt, nil
}

// Specialize compiles every stratum of pt into a CompiledProgram
// (spec.md §6's specialize surface), independent of any particular
// Storage: the result is pure and reusable across RunSpecialized calls
// against storages that share pt's relation shapes.
func (p *Program) Specialize(pt *ProgramTree, trace *annotations.Collector) (*CompiledProgram, error) {
	cp := &CompiledProgram{Tree: pt, Strata: make([]*compiler.CompiledStratum, 0, len(pt.Strata))}
	for _, tree := range pt.Strata {
		cs, err := compiler.Specialize(tree, trace)
		if err != nil {
			return nil, err
		}
		cp.Strata = append(cp.Strata, cs)
	}
	return cp, nil
}

// RunSpecialized runs a CompiledProgram's strata to their fixpoints
// against p's Storage (spec.md §6's runSpecialized/execution surface)
// and returns the current tuples of cp.Tree.Queried. Storage must
// already be initialized for this evaluation, as GenerateProgramTree
// does; calling RunSpecialized a second time on the same cp reruns the
// same specialized closures against whatever Storage state now holds.
func (p *Program) RunSpecialized(cp *CompiledProgram, trace *annotations.Collector) ([]storage.Tuple, error) {
	for _, cs := range cp.Strata {
		if trace != nil {
			trace.Add(annotations.Event{Name: annotations.StratumBegin})
		}
		if err := compiler.Run(cs, p.storage, cp.Tree.Opts.MaxIterations, trace); err != nil {
			if trace != nil {
				trace.Add(annotations.Event{Name: annotations.ErrorIterationLimit})
			}
			return nil, err
		}
		if trace != nil {
			trace.Add(annotations.Event{Name: annotations.StratumComplete})
		}
	}
	return p.storage.GetKnownDerived(cp.Tree.Queried), nil
}

// SolvePreCompiled is spec.md §6's solvePreCompiled surface: generate,
// specialize, and run in one call, for a caller that does not need to
// hold onto the intermediate ProgramTree/CompiledProgram values. It is
// equivalent to Solve with Options.UseStagedExecutor set, expressed
// through the three split surfaces instead of Solve's single loop.
func (p *Program) SolvePreCompiled(queried datalog.RelationID, opts Options, trace *annotations.Collector) ([]storage.Tuple, error) {
	pt, err := p.GenerateProgramTree(queried, opts, trace)
	if err != nil {
		return nil, err
	}
	if trace != nil {
		trace.Add(annotations.Event{Name: annotations.SolveBegin})
	}
	cp, err := p.Specialize(pt, trace)
	if err != nil {
		return nil, err
	}
	result, err := p.RunSpecialized(cp, trace)
	if err != nil {
		return nil, err
	}
	if trace != nil {
		sizes := map[string]int{}
		for _, r := range pt.Relations {
			sizes[string(r)] = len(p.storage.GetKnownDerived(r))
		}
		trace.Add(annotations.Event{Name: annotations.SolveComplete, Data: map[string]interface{}{"relation.sizes": sizes}})
	}
	return result, nil
}
