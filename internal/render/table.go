package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/carbonledger/esgscan/internal/engine"
)

const (
	tabwriterPadding = 2
	colWidthItem     = 36
	colWidthEvidence = 40
	truncateMinLen   = 3
)

// Palette shared by styled output.
const (
	colorTitle    = lipgloss.Color("39")
	colorBorder   = lipgloss.Color("240")
	colorLabel    = lipgloss.Color("245")
	colorIncrease = lipgloss.Color("214")
	colorDecrease = lipgloss.Color("42")
	colorMuted    = lipgloss.Color("241")
)

// Direction arrows for deltas.
const (
	arrowUp    = "↑"
	arrowDown  = "↓"
	arrowRight = "→"
)

// WriteReportTable writes a line item table followed by the report summary.
func WriteReportTable(w io.Writer, r engine.Report, opts Options) error {
	p := opts.precision()

	var body bytes.Buffer
	writeReportHeader(&body, r)
	if err := writeLineItems(&body, r.LineItems, p); err != nil {
		return err
	}
	body.WriteString("\n")
	writeReportSummary(&body, r, p, opts.Styled)

	if opts.Styled {
		return writeBox(w, "CARBON REPORT", body.String())
	}
	_, err := w.Write(body.Bytes())
	return err
}

// WriteComparisonTable writes totals, the category matrix and the narrative.
func WriteComparisonTable(w io.Writer, c engine.ComparisonResult, opts Options) error {
	p := opts.precision()
	baseName := displayName(c.Baseline, "Baseline")
	cmpName := displayName(c.Comparison, "Comparison")

	var body bytes.Buffer
	tw := tabwriter.NewWriter(&body, 0, 0, tabwriterPadding, ' ', 0)
	fmt.Fprintf(tw, "Baseline:\t%s\t%s kg CO2e\n", baseName, Kg(c.BaselineTotalKg, p))
	fmt.Fprintf(tw, "Comparison:\t%s\t%s kg CO2e\n", cmpName, Kg(c.ComparisonTotalKg, p))
	fmt.Fprintf(tw, "Change:\t%s\t%s%%\n",
		renderDelta(c.DeltaKg, p, opts.Styled), Round(c.PercentChange, p).StringFixed(int32(p))) //nolint:gosec // display precision
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing totals: %w", err)
	}

	body.WriteString("\n")
	tw = tabwriter.NewWriter(&body, 0, 0, tabwriterPadding, ' ', 0)
	fmt.Fprintf(tw, "CATEGORY\t%s\t%s\n", strings.ToUpper(baseName), strings.ToUpper(cmpName))
	fmt.Fprintf(tw, "--------\t--------\t----------\n")
	for _, row := range c.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Category, Kg(row.BaselineKg, p), Kg(row.ComparisonKg, p))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing category matrix: %w", err)
	}

	body.WriteString("\n")
	writeHighlights(&body, "Baseline", c.BaselineTop, c.BaselineDominant, c.BaselineTotalKg, p)
	writeHighlights(&body, "Comparison", c.ComparisonTop, c.ComparisonDominant, c.ComparisonTotalKg, p)

	body.WriteString("\n")
	body.WriteString(Narrative(c, p))
	body.WriteString("\n")
	if eq := deltaEquivalencyText(c.DeltaKg); eq != "" {
		body.WriteString(eq)
		body.WriteString("\n")
	}

	if opts.Styled {
		return writeBox(w, "EMISSIONS COMPARISON", body.String())
	}
	_, err := w.Write(body.Bytes())
	return err
}

// WriteFactorTable lists resolver rules in match order, then the fallbacks.
func WriteFactorTable(w io.Writer, rules, fallbacks []FactorRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	fmt.Fprintf(tw, "#\tKEYWORD\tFACTOR\tUNIT\n")
	fmt.Fprintf(tw, "-\t-------\t------\t----\n")
	for i, r := range rules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, r.Keyword, formatNumber(r.Factor), r.Unit)
	}
	fmt.Fprintf(tw, "\nCATEGORY FALLBACK\t\tFACTOR\t\n")
	for _, r := range fallbacks {
		fmt.Fprintf(tw, "%s\t\t%s\t\n", r.Keyword, formatNumber(r.Factor))
	}
	return tw.Flush()
}

// FactorRow is one line of WriteFactorTable.
type FactorRow struct {
	Keyword string
	Factor  float64
	Unit    string
}

func writeReportHeader(w io.Writer, r engine.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	fmt.Fprintf(tw, "Company:\t%s\n", displayName(r, "-"))
	fmt.Fprintf(tw, "Invoice date:\t%s\n", orDash(r.InvoiceDate))
	if r.ID != "" {
		fmt.Fprintf(tw, "Report ID:\t%s\n", r.ID)
	}
	if r.Source != "" {
		fmt.Fprintf(tw, "Source:\t%s\n", r.Source)
	}
	fmt.Fprintf(tw, "Confidence:\t%s\n\n", r.ConfidenceScore)
	_ = tw.Flush()
}

func writeLineItems(w io.Writer, items []engine.LineItem, p int) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	if _, err := fmt.Fprintf(tw, "ITEM\tQTY\tUNIT\tCATEGORY\tFACTOR\tKG CO2E\tEVIDENCE\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "----\t---\t----\t--------\t------\t-------\t--------\n"); err != nil {
		return fmt.Errorf("writing separator: %w", err)
	}
	for _, li := range items {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(orDash(li.Item), colWidthItem),
			optionalNumber(li.Quantity),
			orDash(li.Unit),
			orDash(li.Category),
			optionalNumber(li.EmissionFactor),
			OptionalKg(li.CarbonEmissionKg, p),
			truncate(orDash(li.EvidenceText), colWidthEvidence),
		); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	return tw.Flush()
}

func writeReportSummary(w io.Writer, r engine.Report, p int, styled bool) {
	total := fmt.Sprintf("TOTAL: %s kg CO2e", Kg(r.TotalCarbonEmissionKg, p))
	if styled {
		total = lipgloss.NewStyle().Bold(true).Render(total)
	}
	fmt.Fprintln(w, total)

	var top *engine.LineItem
	if li, ok := engine.TopContributor(r); ok {
		top = &li
	}
	var dom *engine.CategoryTotal
	if ct, ok := engine.DominantCategory(r); ok {
		dom = &ct
	}
	writeHighlights(w, "", top, dom, r.TotalCarbonEmissionKg, p)

	if eq := equivalencyText(r.TotalCarbonEmissionKg); eq != "" {
		fmt.Fprintln(w, eq)
	}
}

func writeHighlights(w io.Writer, label string, top *engine.LineItem, dom *engine.CategoryTotal, total float64, p int) {
	prefix := ""
	if label != "" {
		prefix = label + " "
	}
	if top != nil {
		fmt.Fprintf(w, "%stop contributor: %s (%s kg CO2e)\n",
			prefix, orDash(top.Item), OptionalKg(top.CarbonEmissionKg, p))
	}
	if dom != nil {
		fmt.Fprintf(w, "%sdominant category: %s (%s of total)\n",
			prefix, orDash(dom.Category), ShareOfTotal(dom.EmissionKg, total))
	}
}

// renderDelta formats a signed kg change with a direction arrow, coloured
// when styled.
func renderDelta(delta float64, p int, styled bool) string {
	rounded := Round(delta, p)

	var icon string
	var color lipgloss.Color
	switch {
	case rounded.IsPositive():
		icon, color = arrowUp, colorIncrease
	case rounded.IsNegative():
		icon, color = arrowDown, colorDecrease
	default:
		icon, color = arrowRight, colorMuted
	}

	text := fmt.Sprintf("%s kg %s", Signed(delta, p), icon)
	if !styled {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(text)
}

func writeBox(w io.Writer, title, body string) error {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	labelStyle := lipgloss.NewStyle().Foreground(colorLabel)
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	content := titleStyle.Render(title) + "\n" +
		labelStyle.Render(strings.Repeat("─", lipgloss.Width(title))) + "\n\n" +
		strings.TrimRight(body, "\n")
	_, err := fmt.Fprintln(w, box.Render(content))
	return err
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= truncateMinLen {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-truncateMinLen]) + "..."
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func optionalNumber(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatNumber(*v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
