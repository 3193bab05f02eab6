package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// SolveTrace summarizes one solve's events for human consumption: total
// iteration count, per-relation tuple counts at the final fixpoint, and
// latency of the three staged-executor surfaces (tree generation,
// specialization, execution) when the staged path was used.
type SolveTrace struct {
	Iterations     int
	RelationSizes  map[string]int
	TreeGenLatency []string
	SpecLatency    []string
	ExecLatency    []string
	Unstratifiable bool
	IterationLimit bool
}

// NewSolveTrace builds a SolveTrace from a completed Collector's events.
func NewSolveTrace(events []Event) *SolveTrace {
	st := &SolveTrace{RelationSizes: map[string]int{}}
	for _, e := range events {
		switch e.Name {
		case IterationComplete:
			st.Iterations++
		case TreeGenerated:
			st.TreeGenLatency = append(st.TreeGenLatency, e.Latency.String())
		case Specialized:
			st.SpecLatency = append(st.SpecLatency, e.Latency.String())
		case StagedExecuted:
			st.ExecLatency = append(st.ExecLatency, e.Latency.String())
		case SolveComplete:
			if sizes, ok := e.Data["relation.sizes"].(map[string]int); ok {
				for rel, n := range sizes {
					st.RelationSizes[rel] = n
				}
			}
		case ErrorUnstratifiable:
			st.Unstratifiable = true
		case ErrorIterationLimit:
			st.IterationLimit = true
		}
	}
	return st
}

// Table renders the trace as a colorized markdown-style table, the way
// the teacher's executor.TableFormatter renders Relations with
// tablewriter's markdown renderer.
func (st *SolveTrace) Table() string {
	b := &strings.Builder{}

	headerColor := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(b, headerColor.Sprint("Relation sizes"))

	alignment := []tw.Align{tw.AlignLeft, tw.AlignRight}
	table := tablewriter.NewTable(b,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"relation", "tuples"})
	for rel, n := range st.RelationSizes {
		table.Append([]string{rel, fmt.Sprintf("%d", n)})
	}
	table.Render()

	fmt.Fprintf(b, "\n%s %d\n", color.YellowString("iterations:"), st.Iterations)
	if len(st.ExecLatency) > 0 {
		fmt.Fprintf(b, "%s tree=%v spec=%v exec=%v\n",
			color.YellowString("staged surfaces:"), st.TreeGenLatency, st.SpecLatency, st.ExecLatency)
	}
	if st.Unstratifiable {
		fmt.Fprintln(b, color.RedString("unstratifiable negation/aggregation"))
	}
	if st.IterationLimit {
		fmt.Fprintln(b, color.RedString("iteration limit exceeded"))
	}

	return b.String()
}
