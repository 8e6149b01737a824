package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/carbonledger/esgscan/internal/engine"
)

// Workbook sheet names.
const (
	SheetLineItems  = "Line Items"
	SheetCategories = "Categories"
	SheetSummary    = "Summary"
	SheetComparison = "Comparison"

	SheetBaselineItems   = "Baseline Items"
	SheetComparisonItems = "Comparison Items"

	defaultSheet = "Sheet1"
)

var lineItemHeadings = []any{
	"Item", "Quantity", "Unit", "Category", "Emission Factor",
	"Carbon Emission (kg)", "Factor Source", "Matched Keyword", "Evidence",
}

// WriteReportXLSX writes a workbook with Line Items, Categories and Summary
// sheets. Cells hold unrounded numbers; the precision option only sets the
// display number format.
func WriteReportXLSX(w io.Writer, r engine.Report, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	numFmt, err := numberStyle(f, opts.precision())
	if err != nil {
		return err
	}

	if err := f.SetSheetName(defaultSheet, SheetLineItems); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := writeLineItemSheet(f, SheetLineItems, r.LineItems, numFmt); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetCategories); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := setRow(f, SheetCategories, 1, []any{"Category", "Carbon Emission (kg)"}); err != nil {
		return err
	}
	for i, ct := range engine.CategoryBreakdown(r) {
		row := i + 2 //nolint:mnd // data starts below the header row
		if err := setRow(f, SheetCategories, row, []any{ct.Category, ct.EmissionKg}); err != nil {
			return err
		}
		if err := styleCell(f, SheetCategories, "B", row, numFmt); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	summary := [][]any{
		{"Report ID", r.ID},
		{"Source", r.Source},
		{"Company", r.CompanyName},
		{"Invoice Date", r.InvoiceDate},
		{"Confidence", string(r.ConfidenceScore)},
		{"Total Carbon Emission (kg)", r.TotalCarbonEmissionKg},
		{"Schema Version", r.SchemaVersion},
	}
	if eq := equivalencyText(r.TotalCarbonEmissionKg); eq != "" {
		summary = append(summary, []any{"Equivalency", eq})
	}
	if err := setRows(f, SheetSummary, summary); err != nil {
		return err
	}

	return writeWorkbook(w, f)
}

// WriteComparisonXLSX writes a Comparison sheet with totals and the
// category matrix, followed by one line item sheet per report.
func WriteComparisonXLSX(w io.Writer, c engine.ComparisonResult, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	numFmt, err := numberStyle(f, opts.precision())
	if err != nil {
		return err
	}

	if err := f.SetSheetName(defaultSheet, SheetComparison); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	rows := [][]any{
		{"", displayName(c.Baseline, "Baseline"), displayName(c.Comparison, "Comparison")},
		{"Total Carbon Emission (kg)", c.BaselineTotalKg, c.ComparisonTotalKg},
		{"Delta (kg)", c.DeltaKg},
		{"Percent Change", c.PercentChange},
		{},
		{"Category", "Baseline (kg)", "Comparison (kg)"},
	}
	for _, cr := range c.Categories {
		rows = append(rows, []any{cr.Category, cr.BaselineKg, cr.ComparisonKg})
	}
	rows = append(rows, []any{}, []any{"Narrative", Narrative(c, opts.precision())})
	if err := setRows(f, SheetComparison, rows); err != nil {
		return err
	}

	sheets := []struct {
		name  string
		items []engine.LineItem
	}{
		{SheetBaselineItems, c.Baseline.LineItems},
		{SheetComparisonItems, c.Comparison.LineItems},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet: %w", err)
		}
		if err := writeLineItemSheet(f, s.name, s.items, numFmt); err != nil {
			return err
		}
	}

	return writeWorkbook(w, f)
}

func writeLineItemSheet(f *excelize.File, sheet string, items []engine.LineItem, numFmt int) error {
	if err := setRow(f, sheet, 1, lineItemHeadings); err != nil {
		return err
	}
	for i, li := range items {
		row := i + 2 //nolint:mnd // data starts below the header row
		values := []any{
			li.Item, optionalCell(li.Quantity), li.Unit, li.Category,
			optionalCell(li.EmissionFactor), optionalCell(li.CarbonEmissionKg),
			string(li.FactorSource), li.MatchedKeyword, li.EvidenceText,
		}
		if err := setRow(f, sheet, row, values); err != nil {
			return err
		}
		if err := styleCell(f, sheet, "F", row, numFmt); err != nil {
			return err
		}
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, values := range rows {
		if len(values) == 0 {
			continue
		}
		if err := setRow(f, sheet, i+1, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolving cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleCell(f *excelize.File, sheet, col string, row, style int) error {
	cell := fmt.Sprintf("%s%d", col, row)
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		return fmt.Errorf("styling %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func numberStyle(f *excelize.File, precision int) (int, error) {
	format := "0"
	if precision > 0 {
		format += "."
		for range precision {
			format += "0"
		}
	}
	style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0, fmt.Errorf("creating number style: %w", err)
	}
	return style, nil
}

// optionalCell keeps null values as empty cells.
func optionalCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func writeWorkbook(w io.Writer, f *excelize.File) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
