package greenops

// EPA greenhouse gas equivalency divisors, kg CO2e per unit of activity
// (2024 edition): equivalency = kg / factor.
const (
	EPAMilesDrivenFactor      = 0.192
	EPASmartphoneChargeFactor = 0.00822
	EPATreeSeedlingFactor     = 60.0
	EPAHomeDayFactor          = 18.3
)

const (
	// MinEquivalencyThresholdKg is the smallest magnitude worth translating.
	MinEquivalencyThresholdKg = 1.0

	// LargeNumberThreshold switches display to "~X.X million".
	LargeNumberThreshold = 1_000_000

	// BillionThreshold switches display to "~X.X billion".
	BillionThreshold = 1_000_000_000

	// KgPerTonne converts kilograms to metric tonnes.
	KgPerTonne = 1000.0
)
