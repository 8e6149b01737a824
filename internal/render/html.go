package render

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/carbonledger/esgscan/internal/engine"
)

//nolint:gochecknoglobals // goldmark instances are safe for concurrent use.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #1e293b; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #cbd5e1; padding: 0.3rem 0.6rem; text-align: left; }
th { background: #f1f5f9; }
</style>
</head>
<body>
`

const htmlTail = "</body>\n</html>\n"

// ReportMarkdown builds a markdown summary of a report.
func ReportMarkdown(r engine.Report, opts Options) string {
	p := opts.precision()
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Carbon Report: %s\n\n", mdEscape(displayName(r, "Unknown company")))
	fmt.Fprintf(&sb, "- **Invoice date:** %s\n", mdEscape(orDash(r.InvoiceDate)))
	if r.ID != "" {
		fmt.Fprintf(&sb, "- **Report ID:** %s\n", mdEscape(r.ID))
	}
	fmt.Fprintf(&sb, "- **Confidence:** %s\n", r.ConfidenceScore)
	fmt.Fprintf(&sb, "- **Total:** %s kg CO2e\n", Kg(r.TotalCarbonEmissionKg, p))
	if li, ok := engine.TopContributor(r); ok {
		fmt.Fprintf(&sb, "- **Top contributor:** %s (%s kg CO2e)\n",
			mdEscape(orDash(li.Item)), OptionalKg(li.CarbonEmissionKg, p))
	}
	if ct, ok := engine.DominantCategory(r); ok {
		fmt.Fprintf(&sb, "- **Dominant category:** %s (%s of total)\n",
			mdEscape(orDash(ct.Category)), ShareOfTotal(ct.EmissionKg, r.TotalCarbonEmissionKg))
	}
	if eq := equivalencyText(r.TotalCarbonEmissionKg); eq != "" {
		fmt.Fprintf(&sb, "\n%s\n", eq)
	}

	sb.WriteString("\n## Line Items\n\n")
	sb.WriteString("| Item | Quantity | Unit | Category | Factor | kg CO2e | Evidence |\n")
	sb.WriteString("|---|---:|---|---|---:|---:|---|\n")
	for _, li := range r.LineItems {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
			mdEscape(orDash(li.Item)), optionalNumber(li.Quantity), mdEscape(orDash(li.Unit)),
			mdEscape(orDash(li.Category)), optionalNumber(li.EmissionFactor),
			OptionalKg(li.CarbonEmissionKg, p), mdEscape(orDash(li.EvidenceText)))
	}

	breakdown := engine.CategoryBreakdown(r)
	if len(breakdown) > 0 {
		sb.WriteString("\n## Categories\n\n| Category | kg CO2e | Share |\n|---|---:|---:|\n")
		for _, ct := range breakdown {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", mdEscape(orDash(ct.Category)),
				Kg(ct.EmissionKg, p), ShareOfTotal(ct.EmissionKg, r.TotalCarbonEmissionKg))
		}
	}
	return sb.String()
}

// ComparisonMarkdown builds a markdown summary of a comparison.
func ComparisonMarkdown(c engine.ComparisonResult, opts Options) string {
	p := opts.precision()
	baseName := mdEscape(displayName(c.Baseline, "Baseline"))
	cmpName := mdEscape(displayName(c.Comparison, "Comparison"))
	var sb strings.Builder

	sb.WriteString("# Emissions Comparison\n\n")
	fmt.Fprintf(&sb, "| | %s | %s |\n|---|---:|---:|\n", baseName, cmpName)
	fmt.Fprintf(&sb, "| Total kg CO2e | %s | %s |\n\n", Kg(c.BaselineTotalKg, p), Kg(c.ComparisonTotalKg, p))
	fmt.Fprintf(&sb, "**Change:** %s kg CO2e (%s%%)\n\n",
		Signed(c.DeltaKg, p), Round(c.PercentChange, p).StringFixed(int32(p))) //nolint:gosec // display precision
	sb.WriteString(Narrative(c, p))
	sb.WriteString("\n")
	if eq := deltaEquivalencyText(c.DeltaKg); eq != "" {
		fmt.Fprintf(&sb, "\n%s\n", eq)
	}

	sb.WriteString("\n## Categories\n\n")
	fmt.Fprintf(&sb, "| Category | %s | %s |\n|---|---:|---:|\n", baseName, cmpName)
	for _, row := range c.Categories {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", mdEscape(orDash(row.Category)),
			Kg(row.BaselineKg, p), Kg(row.ComparisonKg, p))
	}

	sb.WriteString("\n## Highlights\n\n")
	writeMarkdownHighlights(&sb, baseName, c.BaselineTop, c.BaselineDominant, c.BaselineTotalKg, p)
	writeMarkdownHighlights(&sb, cmpName, c.ComparisonTop, c.ComparisonDominant, c.ComparisonTotalKg, p)
	return sb.String()
}

// WriteReportHTML renders ReportMarkdown into a standalone HTML page.
func WriteReportHTML(w io.Writer, r engine.Report, opts Options) error {
	return writeHTML(w, "Carbon Report: "+displayName(r, "Unknown company"), ReportMarkdown(r, opts))
}

// WriteComparisonHTML renders ComparisonMarkdown into a standalone HTML page.
func WriteComparisonHTML(w io.Writer, c engine.ComparisonResult, opts Options) error {
	return writeHTML(w, "Emissions Comparison", ComparisonMarkdown(c, opts))
}

func writeHTML(w io.Writer, title, md string) error {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return fmt.Errorf("converting markdown: %w", err)
	}
	if _, err := fmt.Fprintf(w, htmlHead, html.EscapeString(title)); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlTail)
	return err
}

func writeMarkdownHighlights(sb *strings.Builder, name string, top *engine.LineItem, dom *engine.CategoryTotal, total float64, p int) {
	if top != nil {
		fmt.Fprintf(sb, "- **%s top contributor:** %s (%s kg CO2e)\n",
			name, mdEscape(orDash(top.Item)), OptionalKg(top.CarbonEmissionKg, p))
	}
	if dom != nil {
		fmt.Fprintf(sb, "- **%s dominant category:** %s (%s of total)\n",
			name, mdEscape(orDash(dom.Category)), ShareOfTotal(dom.EmissionKg, total))
	}
}

//nolint:gochecknoglobals // immutable replacer
var mdReplacer = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;", "\n", " ", "\r", "",
)

// mdEscape neutralises markdown syntax in extracted invoice text.
func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
