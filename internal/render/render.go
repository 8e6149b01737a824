// Package render presents compiled reports and comparisons as terminal
// tables, JSON audit exports, XLSX workbooks and HTML summaries.
//
// Rounding here is for display only. Report values are never modified.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/carbonledger/esgscan/internal/engine"
	"github.com/carbonledger/esgscan/internal/greenops"
)

// Format is an output format name.
type Format string

// Supported output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
	FormatHTML  Format = "html"
)

// DefaultPrecision is the number of decimals shown for kg values.
const DefaultPrecision = 2

// ErrUnknownFormat is returned by ParseFormat for unrecognized names.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists every supported output format.
func Formats() []Format {
	return []Format{FormatTable, FormatJSON, FormatXLSX, FormatHTML}
}

// ParseFormat resolves a case-insensitive format name. An empty name means
// FormatTable.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return FormatTable, nil
	}
	for _, f := range Formats() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of table, json, xlsx, html)", ErrUnknownFormat, s)
}

// IsBinary reports whether the format should not be written to a terminal.
func (f Format) IsBinary() bool {
	return f == FormatXLSX
}

// Options control presentation.
type Options struct {
	// Precision is the number of decimals for kg values. Negative means
	// DefaultPrecision.
	Precision int
	// Styled enables lipgloss styling for table output.
	Styled bool
}

func (o Options) precision() int {
	if o.Precision < 0 {
		return DefaultPrecision
	}
	return o.Precision
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// WriteReport renders a single report in the requested format.
func WriteReport(w io.Writer, format Format, r engine.Report, opts Options) error {
	switch format {
	case FormatTable, "":
		return WriteReportTable(w, r, opts)
	case FormatJSON:
		return WriteReportJSON(w, r)
	case FormatXLSX:
		return WriteReportXLSX(w, r, opts)
	case FormatHTML:
		return WriteReportHTML(w, r, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteComparison renders a comparison in the requested format.
func WriteComparison(w io.Writer, format Format, c engine.ComparisonResult, opts Options) error {
	switch format {
	case FormatTable, "":
		return WriteComparisonTable(w, c, opts)
	case FormatJSON:
		return WriteComparisonJSON(w, c, opts)
	case FormatXLSX:
		return WriteComparisonXLSX(w, c, opts)
	case FormatHTML:
		return WriteComparisonHTML(w, c, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Round rounds a kg value half away from zero for display.
func Round(kg float64, precision int) decimal.Decimal {
	if math.IsNaN(kg) || math.IsInf(kg, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(kg).Round(int32(precision)) //nolint:gosec // precision is a small display setting.
}

// Kg formats a kg value with a fixed number of decimals: 1300 => "1300.00".
func Kg(kg float64, precision int) string {
	return Round(kg, precision).StringFixed(int32(precision)) //nolint:gosec // precision is a small display setting.
}

// OptionalKg formats a nullable kg value, rendering null as "-".
func OptionalKg(kg *float64, precision int) string {
	if kg == nil {
		return "-"
	}
	return Kg(*kg, precision)
}

// Signed formats v with an explicit "+" for positive values.
func Signed(v float64, precision int) string {
	s := Kg(v, precision)
	if Round(v, precision).IsPositive() {
		return "+" + s
	}
	return s
}

// Narrative summarises a comparison in one or two sentences, e.g.
// "The cumulative carbon footprint is 403.00 kg CO2e. The comparison
// document shows a 45.0% reduction in emissions compared to baseline."
func Narrative(c engine.ComparisonResult, precision int) string {
	cumulative := c.BaselineTotalKg + c.ComparisonTotalKg
	var sb strings.Builder
	fmt.Fprintf(&sb, "The cumulative carbon footprint is %s kg CO2e.", Kg(cumulative, precision))

	pct := Round(math.Abs(c.PercentChange), 1).StringFixed(1)
	switch {
	case c.DeltaKg > 0:
		fmt.Fprintf(&sb, " The comparison document shows a %s%% increase in emissions compared to baseline.", pct)
	case c.DeltaKg < 0:
		fmt.Fprintf(&sb, " The comparison document shows a %s%% reduction in emissions compared to baseline.", pct)
	default:
		sb.WriteString(" The comparison document shows no change in emissions compared to baseline.")
	}
	return sb.String()
}

// ShareOfTotal returns part as a whole-number percentage of total, or 0
// when total is zero.
func ShareOfTotal(part, total float64) string {
	if total == 0 {
		return "0%"
	}
	return Round(part/total*100, 0).String() + "%" //nolint:mnd // percentage
}

// equivalencyText returns the greenops display line for a total, or "" when
// the value is too small or not representable.
func equivalencyText(kg float64) string {
	out, err := greenops.Calculate(kg)
	if err != nil || out.IsEmpty {
		return ""
	}
	return out.DisplayText
}

// deltaEquivalencyText is equivalencyText for a signed change.
func deltaEquivalencyText(deltaKg float64) string {
	out, err := greenops.CalculateDelta(deltaKg)
	if err != nil || out.IsEmpty {
		return ""
	}
	return out.DisplayText
}

// displayName returns the company name or a positional label.
func displayName(r engine.Report, fallback string) string {
	if strings.TrimSpace(r.CompanyName) == "" {
		return fallback
	}
	return r.CompanyName
}
