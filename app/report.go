package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"gocre/domain/run"
)

// RenderMarkdown formats a run record as a markdown report: the run header,
// the rule funnel, the effect table, timings, and a prediction summary.
func RenderMarkdown(record *run.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Causal Rule Run %s\n\n", record.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", record.Status)
	fmt.Fprintf(&b, "- **Started:** %s\n", record.StartedAt.Time().Format(time.RFC3339))
	if !record.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "- **Completed:** %s\n", record.CompletedAt.Time().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- **Effect methods:** discovery=%s inference=%s\n",
		record.Method.ITEMethodDis, record.Method.ITEMethodInf)
	fmt.Fprintf(&b, "- **Seed:** %d\n", record.Method.Seed)
	fmt.Fprintf(&b, "- **Fingerprint:** `%s`\n\n", record.Fingerprint.Fingerprint)

	if record.Error != "" {
		fmt.Fprintf(&b, "**Error:** %s\n\n", record.Error)
	}

	b.WriteString("## Rule Funnel\n\n")
	b.WriteString("| Stage | Rules |\n|---|---|\n")
	fmt.Fprintf(&b, "| Generated | %d |\n", record.Counts.Generated)
	fmt.Fprintf(&b, "| After decay filter | %d |\n", record.Counts.AfterDecay)
	fmt.Fprintf(&b, "| After support filter | %d |\n", record.Counts.AfterSupport)
	fmt.Fprintf(&b, "| After correlation filter | %d |\n", record.Counts.AfterCorrelation)
	fmt.Fprintf(&b, "| Selected | %d |\n", record.Counts.Selected)
	fmt.Fprintf(&b, "| Significant | %d |\n\n", record.Counts.Significant)

	if record.Table != nil && len(record.Table.Rows) > 0 {
		b.WriteString("## Treatment Effects\n\n")
		b.WriteString("| Term | Estimate | Std. Error | t | p | 95% CI |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, row := range record.Table.Rows {
			fmt.Fprintf(&b, "| `%s` | %.4f | %.4f | %.3f | %.4g | [%.4f, %.4f] |\n",
				row.Rule, row.Estimate, row.StdError, row.TValue, row.PValue,
				row.CILower, row.CIUpper)
		}
		b.WriteString("\n")
	}

	if len(record.Predictions) > 0 {
		mean, _ := stats.Mean(record.Predictions)
		median, _ := stats.Median(record.Predictions)
		min, _ := stats.Min(record.Predictions)
		max, _ := stats.Max(record.Predictions)
		b.WriteString("## Predicted Effects\n\n")
		fmt.Fprintf(&b, "%d units. Mean %.4f, median %.4f, range [%.4f, %.4f].\n\n",
			len(record.Predictions), mean, median, min, max)
	}

	if len(record.Timings) > 0 {
		b.WriteString("## Stage Timings\n\n")
		b.WriteString("| Stage | Duration (ms) |\n|---|---|\n")
		for _, t := range record.Timings {
			fmt.Fprintf(&b, "| %s | %d |\n", t.Stage, t.DurationMS)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderHTML renders the markdown report as a standalone HTML page.
func RenderHTML(record *run.Record) []byte {
	md := RenderMarkdown(record)

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: fmt.Sprintf("Run %s", record.ID),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}
