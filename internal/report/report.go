// Package report renders an assembled study as a Markdown document
// and converts it to HTML for API responses.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gomediate/domain/core"
	"gomediate/domain/mediation"
	"gomediate/domain/table"
)

// maxRenderedRows caps how many rows of each table land in the report.
const maxRenderedRows = 12

// Builder renders studies into Markdown.
type Builder struct{}

// NewBuilder creates a report builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildMarkdown renders the complete study report.
func (b *Builder) BuildMarkdown(study *mediation.Study) (string, error) {
	if study == nil {
		return "", core.ErrEmptyData
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Mediation Study %s\n\n", study.ID)
	fmt.Fprintf(&sb, "- **Kind:** %s\n", study.Kind)
	if study.DatasetName != "" {
		fmt.Fprintf(&sb, "- **Dataset:** %s\n", study.DatasetName)
	}
	fmt.Fprintf(&sb, "- **Created:** %s\n\n", study.CreatedAt)

	b.writeVariables(&sb, study.Variables)
	b.writeConfig(&sb, study.Config)

	sb.WriteString("## Prediction Tables\n\n")
	for _, named := range study.Tables {
		b.writeTable(&sb, named)
	}

	if study.Figure != nil {
		fmt.Fprintf(&sb, "## Figure\n\n%s contains %d panels.\n\n",
			study.Figure.Title, len(study.Figure.Panels))
		for _, panel := range study.Figure.Panels {
			fmt.Fprintf(&sb, "- %s (%s vs %s)\n", panel.Title, panel.YLabel, panel.XLabel)
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func (b *Builder) writeVariables(sb *strings.Builder, vars mediation.Variables) {
	sb.WriteString("## Variables\n\n")
	rows := []struct{ role, name string }{
		{"Exposure", vars.Exposure},
		{"Second exposure", vars.Exposure2},
		{"Mediator", vars.Mediator},
		{"Second mediator", vars.Mediator2},
		{"Outcome", vars.Outcome},
		{"Grouping", vars.GroupBy},
	}
	for _, row := range rows {
		if row.name == "" {
			continue
		}
		fmt.Fprintf(sb, "- **%s:** `%s`\n", row.role, row.name)
	}
	sb.WriteString("\n")
}

func (b *Builder) writeConfig(sb *strings.Builder, cfg mediation.Config) {
	sb.WriteString("## Configuration\n\n")
	fmt.Fprintf(sb, "- Grid points: %d\n", cfg.Points)
	fmt.Fprintf(sb, "- Exposure levels: %v\n", cfg.Exposure1Levels)
	fmt.Fprintf(sb, "- Mediator quantiles: %v\n", cfg.Mediator2Quantiles)
	fmt.Fprintf(sb, "- Confidence intervals: %t (level %.2f)\n", cfg.ConfidenceIntervals, cfg.ConfidenceLevel)
	fmt.Fprintf(sb, "- Ignore random effects: %t\n\n", cfg.IgnoreRandomEffects)
}

func (b *Builder) writeTable(sb *strings.Builder, named table.Named) {
	fmt.Fprintf(sb, "### %s\n\n", named.Name)
	if named.Table == nil || named.Table.NumRows() == 0 {
		sb.WriteString("_empty_\n\n")
		return
	}

	names := named.Table.Names()
	sb.WriteString("| " + strings.Join(names, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(names)) + "\n")

	rows := named.Table.NumRows()
	shown := rows
	if shown > maxRenderedRows {
		shown = maxRenderedRows
	}
	for i := 0; i < shown; i++ {
		cells := make([]string, len(names))
		for j, name := range names {
			v, err := named.Table.Value(i, name)
			if err != nil || math.IsNaN(v) {
				cells[j] = ""
				continue
			}
			cells[j] = formatFloat(v)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if rows > shown {
		fmt.Fprintf(sb, "\n_%d of %d rows shown._\n", shown, rows)
	}
	sb.WriteString("\n")
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

// RenderHTML converts a Markdown report to an HTML fragment.
func RenderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
