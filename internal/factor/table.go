// Package factor maps free-text invoice line items to emission factors.
//
// The keyword table is an ordered list, not a map: the first keyword found in
// the search key wins, so reordering the table changes results.
package factor

// Rule binds a lower-case keyword to an emission factor in kg CO2e per unit.
type Rule struct {
	Keyword string  `json:"keyword" yaml:"keyword" validate:"required,lowercase"`
	Factor  float64 `json:"factor"  yaml:"factor"  validate:"gte=0"`
	Unit    string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// DefaultRules returns the built-in keyword table in match order.
func DefaultRules() []Rule {
	return []Rule{
		// Energy
		{Keyword: "diesel", Factor: 2.6, Unit: "liter"},
		{Keyword: "petrol", Factor: 2.3, Unit: "liter"},
		{Keyword: "gasoline", Factor: 2.3, Unit: "liter"},
		{Keyword: "electricity", Factor: 0.82, Unit: "kWh"},
		{Keyword: "power", Factor: 0.82, Unit: "kWh"},
		{Keyword: "lpg", Factor: 1.5, Unit: "liter"},
		{Keyword: "gas", Factor: 2.0, Unit: "unit"},

		// Raw material
		{Keyword: "plastic", Factor: 6.0, Unit: "kg"},
		{Keyword: "packaging", Factor: 6.0, Unit: "kg"},
		{Keyword: "chemicals", Factor: 3.0, Unit: "kg"},

		// OpEx
		{Keyword: "paper", Factor: 1.3, Unit: "kg"},
		{Keyword: "printing", Factor: 1.3, Unit: "kg"},
		{Keyword: "office", Factor: 1.3, Unit: "unit"},
	}
}

// DefaultFallbacks returns the category-only fallback rules in precedence
// order. When a category contains more than one of these words the earliest
// entry wins, so "opex" outranks "raw" which outranks "energy".
func DefaultFallbacks() []Rule {
	return []Rule{
		{Keyword: "opex", Factor: 1.3},
		{Keyword: "raw", Factor: 3.0},
		{Keyword: "energy", Factor: 0.82},
	}
}
