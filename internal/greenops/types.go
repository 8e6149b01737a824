// Package greenops turns emission figures into relatable equivalencies and
// display strings.
//
// Factors are EPA-published; results are for presentation only and never
// feed back into report totals.
package greenops

import "fmt"

// EquivalencyType is a kind of real-world equivalency.
type EquivalencyType int

const (
	// EquivalencyMilesDriven is miles driven by an average passenger vehicle.
	EquivalencyMilesDriven EquivalencyType = iota
	// EquivalencySmartphonesCharged is full smartphone charges.
	EquivalencySmartphonesCharged
	// EquivalencyTreeSeedlings is tree seedlings grown for ten years.
	EquivalencyTreeSeedlings
	// EquivalencyHomeDays is days of average US home electricity use.
	EquivalencyHomeDays
)

// String returns the equivalency name.
func (e EquivalencyType) String() string {
	switch e {
	case EquivalencyMilesDriven:
		return "MilesDriven"
	case EquivalencySmartphonesCharged:
		return "SmartphonesCharged"
	case EquivalencyTreeSeedlings:
		return "TreeSeedlings"
	case EquivalencyHomeDays:
		return "HomeDays"
	default:
		return fmt.Sprintf("EquivalencyType(%d)", e)
	}
}

// EquivalencyResult is one calculated equivalency.
type EquivalencyResult struct {
	Type           EquivalencyType `json:"type"`
	Value          float64         `json:"value"`
	FormattedValue string          `json:"formatted_value"`
	Label          string          `json:"label"`
}

// EquivalencyOutput is what presentation code renders next to a total.
type EquivalencyOutput struct {
	InputKg     float64             `json:"input_kg"`
	Results     []EquivalencyResult `json:"results"`
	DisplayText string              `json:"display_text"`
	CompactText string              `json:"compact_text"`
	IsEmpty     bool                `json:"is_empty"`
}
