package greenops

import (
	"fmt"
	"math"
)

// Calculate expresses kg CO2e as miles driven and smartphones charged.
//
// Values below MinEquivalencyThresholdKg return an empty output without an
// error. Negative values return ErrNegativeValue; NaN and infinities return
// ErrCalculationOverflow.
func Calculate(kg float64) (EquivalencyOutput, error) {
	if math.IsNaN(kg) || math.IsInf(kg, 0) {
		return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
	}
	if kg < 0 {
		return EquivalencyOutput{IsEmpty: true}, ErrNegativeValue
	}
	if kg < MinEquivalencyThresholdKg {
		return EquivalencyOutput{InputKg: kg, IsEmpty: true}, nil
	}

	miles := kg / EPAMilesDrivenFactor
	phones := kg / EPASmartphoneChargeFactor
	if math.IsInf(miles, 0) || math.IsInf(phones, 0) {
		return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
	}

	milesText := formatEquivalencyValue(miles)
	phonesText := formatEquivalencyValue(phones)

	return EquivalencyOutput{
		InputKg: kg,
		Results: []EquivalencyResult{
			{Type: EquivalencyMilesDriven, Value: miles, FormattedValue: milesText, Label: "miles driven"},
			{Type: EquivalencySmartphonesCharged, Value: phones, FormattedValue: phonesText, Label: "smartphones charged"},
		},
		DisplayText: fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones", milesText, phonesText),
		CompactText: fmt.Sprintf("(≈ %s mi, %s phones)", milesText, phonesText),
	}, nil
}

// CalculateDelta describes a signed change in emissions, e.g. the delta
// between two reports, as "~N more/fewer miles driven".
func CalculateDelta(deltaKg float64) (EquivalencyOutput, error) {
	out, err := Calculate(math.Abs(deltaKg))
	if err != nil || out.IsEmpty {
		return out, err
	}

	direction := "more"
	if deltaKg < 0 {
		direction = "fewer"
	}
	out.InputKg = deltaKg
	out.DisplayText = fmt.Sprintf("A change of ~%s %s miles driven or ~%s %s smartphones charged",
		out.Results[0].FormattedValue, direction, out.Results[1].FormattedValue, direction)
	return out, nil
}

func formatEquivalencyValue(v float64) string {
	if v >= LargeNumberThreshold {
		return FormatLarge(v)
	}
	return FormatNumber(int64(math.Round(v)))
}
