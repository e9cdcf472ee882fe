package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/policy"
)

var (
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// newTable creates a left-aligned markdown-style table.
func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.On},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlan(w io.Writer, plan *engine.Plan) {
	if plan.IsEmpty() {
		fmt.Fprintln(w, successColor("No changes. The tree matches the document."))
		return
	}

	table := newTable(w, "#", "Kind", "Scope", "Target", "Change")
	for _, line := range plan.Describe() {
		_ = table.Append([]string{
			fmt.Sprint(line.Seq),
			string(line.Kind),
			string(line.Scope),
			line.Target,
			line.Description,
		})
	}
	_ = table.Render()
	fmt.Fprintf(w, "%s %d operations\n", headerColor("Plan:"), len(plan.Operations))
}

func printViolations(w io.Writer, result *policy.PolicyResult) {
	for _, v := range result.Violations {
		label := warnColor(strings.ToUpper(string(v.Severity)))
		if v.Severity.Blocking() {
			label = errorColor(strings.ToUpper(string(v.Severity)))
		}
		fmt.Fprintf(w, "%s [%s] %s\n", label, v.Policy, v.Message)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "%s %s\n", warnColor("POLICY ERROR"), e)
	}
}

func printResult(w io.Writer, result *engine.RunResult) {
	for _, step := range result.Steps {
		var status string
		switch step.Status {
		case engine.OperationStatusApplied:
			status = successColor(string(step.Status))
		case engine.OperationStatusFailed:
			status = errorColor(string(step.Status))
		default:
			status = warnColor(string(step.Status))
		}
		fmt.Fprintf(w, "  %-8s %s\n", status, step.Description)
		if step.Error != "" {
			fmt.Fprintf(w, "           %s\n", step.Error)
		}
	}
	for _, err := range result.UndoErrors {
		fmt.Fprintf(w, "  %s %v\n", errorColor("undo failed:"), err)
	}

	label := successColor(string(result.Status))
	if result.Status != engine.RunStatusSucceeded {
		label = errorColor(string(result.Status))
	}
	fmt.Fprintf(w, "%s %s in %s\n", headerColor("Run "+result.RunID+":"), label, result.Duration.Round(1e6))
}
