// Package format renders normalized traces for the terminal.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"agenttrace-backend/internal/traces"
)

const contentWidth = 60

// WriteTrace writes trace to w as "table", "plain" or "json". Styled picks
// the rounded table style; otherwise plain ASCII borders are used.
func WriteTrace(w io.Writer, trace traces.Trace, format string, styled bool) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writeTable(w, trace, styled)
	case "plain":
		return writePlain(w, trace)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writePlain(w io.Writer, trace traces.Trace) error {
	if _, err := fmt.Fprintln(w, "index\tid\ttype\ttimestamp\tduration_ms\ttokens\terror\tcontent"); err != nil {
		return err
	}
	for i, step := range trace.Steps {
		line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s",
			i+1,
			step.ID,
			step.StepType,
			step.Timestamp.Format(time.RFC3339),
			optional(step.DurationMS),
			optional(step.TokensUsed),
			oneLine(step.Error),
			oneLine(step.Content),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total_duration_ms=%d total_tokens=%d error_count=%d\n",
		trace.TotalDurationMS, trace.TotalTokens, trace.ErrorCount)
	return err
}

func writeTable(w io.Writer, trace traces.Trace, styled bool) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if styled {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	tw.Style().Options.SeparateHeader = true

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, WidthMax: contentWidth},
	})
	tw.AppendHeader(table.Row{"#", "Step ID", "Type", "Timestamp", "Duration", "Tokens", "Error", "Content"})

	for i, step := range trace.Steps {
		tw.AppendRow(table.Row{
			i + 1,
			step.ID,
			step.StepType,
			step.Timestamp.Format(time.RFC3339),
			optional(step.DurationMS),
			optional(step.TokensUsed),
			oneLine(step.Error),
			oneLine(step.Content),
		})
	}
	if len(trace.Steps) == 0 {
		tw.AppendRow(table.Row{"-", "(no steps)", "-", "-", "-", "-", "-", "-"})
	}

	tw.AppendFooter(table.Row{
		"", "", "", "Total",
		trace.TotalDurationMS,
		trace.TotalTokens,
		fmt.Sprintf("%d errors", trace.ErrorCount),
		"",
	})
	tw.Render()
	return nil
}

func optional(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}
