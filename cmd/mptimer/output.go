package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/pkg/progress"
)

// Output formats for statistics
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// printStats writes replay statistics in the requested format.
func printStats(w io.Writer, stats progress.Stats, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(stats)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Estimator")
	t.AppendRows([]table.Row{
		{"Frames", stats.Frames},
		{"Cycles", stats.Updates},
		{"Visible frames", stats.VisibleFrames},
		{"Context resets", stats.ContextResets},
		{"Host time", fmt.Sprintf("%.1fs", stats.HostSeconds)},
	})
	t.AppendSeparator()

	outcomes := make([]string, 0, len(stats.Outcomes))
	for name := range stats.Outcomes {
		outcomes = append(outcomes, name)
	}
	sort.Strings(outcomes)
	for _, name := range outcomes {
		t.AppendRow(table.Row{"Outcome " + name, stats.Outcomes[name]})
	}

	if stats.Intervals.Count > 0 {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Resync gaps", stats.Intervals.Count},
			{"Mean gap", fmt.Sprintf("%.0fms", stats.Intervals.MeanMS)},
			{"Min / max gap", fmt.Sprintf("%.0fms / %.0fms", stats.Intervals.MinMS, stats.Intervals.MaxMS)},
		})
	}

	if d := stats.Drift; d != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Drift samples", d.Measured},
			{"Mean |error|", fmt.Sprintf("%.1fms", d.MeanAbsMS)},
			{"Max |error|", fmt.Sprintf("%.1fms", d.MaxAbsMS)},
			{"Recent |error|", fmt.Sprintf("%.1fms", d.RecentMeanAbsMS)},
			{"Within poll", fmt.Sprintf("%.1f%%", d.WithinPoll*100)},
		})
	}
	t.Render()

	if stats.Resyncs() == 0 {
		fmt.Fprintln(w, color.YellowString("No value resync occurred; the bar never locked onto the tick."))
	}
	return nil
}

// outcomeColor highlights estimator outcomes in terminal output.
func outcomeColor(o tick.Outcome) string {
	switch o {
	case tick.OutcomeResync:
		return color.GreenString(o.String())
	case tick.OutcomeSuppressedGain:
		return color.YellowString(o.String())
	case tick.OutcomeBaseline:
		return color.CyanString(o.String())
	default:
		return o.String()
	}
}
