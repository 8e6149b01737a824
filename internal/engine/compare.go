package engine

// percentMultiplier converts a ratio to a percentage.
const percentMultiplier = 100.0

// CategoryTotal is the summed emission of one category label in one report.
type CategoryTotal struct {
	Category   string  `json:"category"`
	EmissionKg float64 `json:"emission_kg"`
}

// CategoryRow is one row of the comparison matrix.
type CategoryRow struct {
	Category     string  `json:"category"`
	BaselineKg   float64 `json:"baseline_kg"`
	ComparisonKg float64 `json:"comparison_kg"`
}

// ComparisonResult is derived from two reports and holds no state of its own.
// Recompute it whenever the pair changes.
type ComparisonResult struct {
	Baseline           Report         `json:"baseline"`
	Comparison         Report         `json:"comparison"`
	BaselineTotalKg    float64        `json:"baseline_total_kg"`
	ComparisonTotalKg  float64        `json:"comparison_total_kg"`
	DeltaKg            float64        `json:"delta_kg"`
	PercentChange      float64        `json:"percent_change"`
	Categories         []CategoryRow  `json:"categories"`
	BaselineTop        *LineItem      `json:"baseline_top_contributor,omitempty"`
	ComparisonTop      *LineItem      `json:"comparison_top_contributor,omitempty"`
	BaselineDominant   *CategoryTotal `json:"baseline_dominant_category,omitempty"`
	ComparisonDominant *CategoryTotal `json:"comparison_dominant_category,omitempty"`
}

// Compare builds the comparison of two reports. The first argument is the
// baseline; swapping the arguments flips the delta's sign.
func Compare(baseline, comparison Report) ComparisonResult {
	result := ComparisonResult{
		Baseline:          baseline,
		Comparison:        comparison,
		BaselineTotalKg:   baseline.TotalCarbonEmissionKg,
		ComparisonTotalKg: comparison.TotalCarbonEmissionKg,
		DeltaKg:           TotalDelta(baseline, comparison),
		PercentChange:     PercentChange(baseline, comparison),
		Categories:        CategoryMatrix(baseline, comparison),
	}

	if top, ok := TopContributor(baseline); ok {
		result.BaselineTop = &top
	}
	if top, ok := TopContributor(comparison); ok {
		result.ComparisonTop = &top
	}
	if dom, ok := DominantCategory(baseline); ok {
		result.BaselineDominant = &dom
	}
	if dom, ok := DominantCategory(comparison); ok {
		result.ComparisonDominant = &dom
	}
	return result
}

// TotalDelta is comparison total minus baseline total.
func TotalDelta(baseline, comparison Report) float64 {
	return comparison.TotalCarbonEmissionKg - baseline.TotalCarbonEmissionKg
}

// PercentChange is the delta relative to the baseline total, in percent.
// A zero baseline yields 0 rather than an infinity.
func PercentChange(baseline, comparison Report) float64 {
	if baseline.TotalCarbonEmissionKg == 0 {
		return 0
	}
	return TotalDelta(baseline, comparison) / baseline.TotalCarbonEmissionKg * percentMultiplier
}

// CategoryMatrix sums emissions per category label for both reports. Labels
// are compared exactly, so "Energy" and "energy" are separate rows. Rows are
// ordered by first appearance, baseline items first.
func CategoryMatrix(baseline, comparison Report) []CategoryRow {
	index := make(map[string]int)
	rows := make([]CategoryRow, 0)

	row := func(cat string) *CategoryRow {
		i, ok := index[cat]
		if !ok {
			i = len(rows)
			index[cat] = i
			rows = append(rows, CategoryRow{Category: cat})
		}
		return &rows[i]
	}

	for _, li := range baseline.LineItems {
		row(li.Category).BaselineKg += li.Emission()
	}
	for _, li := range comparison.LineItems {
		row(li.Category).ComparisonKg += li.Emission()
	}
	return rows
}

// CategoryBreakdown sums emissions per category label within one report,
// in first-seen order.
func CategoryBreakdown(r Report) []CategoryTotal {
	index := make(map[string]int)
	totals := make([]CategoryTotal, 0)
	for _, li := range r.LineItems {
		i, ok := index[li.Category]
		if !ok {
			i = len(totals)
			index[li.Category] = i
			totals = append(totals, CategoryTotal{Category: li.Category})
		}
		totals[i].EmissionKg += li.Emission()
	}
	return totals
}

// TopContributor returns the line item with the largest emission. A null
// emission ranks below every number, ties go to the earliest item, and an
// empty report yields false.
func TopContributor(r Report) (LineItem, bool) {
	if len(r.LineItems) == 0 {
		return LineItem{}, false
	}

	best := 0
	for i := 1; i < len(r.LineItems); i++ {
		cand := r.LineItems[i].CarbonEmissionKg
		if cand == nil {
			continue
		}
		cur := r.LineItems[best].CarbonEmissionKg
		if cur == nil || *cand > *cur {
			best = i
		}
	}
	return r.LineItems[best], true
}

// DominantCategory returns the category with the largest summed emission.
// Ties go to the category seen first; an empty report yields false.
func DominantCategory(r Report) (CategoryTotal, bool) {
	totals := CategoryBreakdown(r)
	if len(totals) == 0 {
		return CategoryTotal{}, false
	}

	best := totals[0]
	for _, t := range totals[1:] {
		if t.EmissionKg > best.EmissionKg {
			best = t
		}
	}
	return best, true
}
