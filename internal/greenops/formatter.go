package greenops

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//nolint:gochecknoglobals // a shared printer is the usual x/text/message pattern.
var printer = message.NewPrinter(language.English)

// FormatNumber formats an integer with thousand separators: 18248 => "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatFloat rounds f to precision decimals and adds thousand separators
// to the integer part: FormatFloat(1234.567, 2) => "1,234.57".
func FormatFloat(f float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	const base = 10
	mult := math.Pow(base, float64(precision))
	rounded := math.Round(f*mult) / mult
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	formatted := strconv.FormatFloat(rounded, 'f', precision, 64)

	intPart, frac, hasFrac := strings.Cut(formatted, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return formatted
	}

	grouped := FormatNumber(n)
	if n == 0 && strings.HasPrefix(intPart, "-") {
		grouped = "-0"
	}
	if !hasFrac {
		return grouped
	}
	return grouped + "." + frac
}

// FormatKg renders an emission figure, switching to tonnes at 10,000 kg.
func FormatKg(kg float64, precision int) string {
	if math.Abs(kg) >= 10*KgPerTonne {
		return FormatFloat(kg/KgPerTonne, precision) + " t CO2e"
	}
	return FormatFloat(kg, precision) + " kg CO2e"
}

// FormatLarge abbreviates values of a million or more: 1.5e9 => "~1.5 billion".
func FormatLarge(n float64) string {
	switch {
	case n >= BillionThreshold:
		return fmt.Sprintf("~%.1f billion", n/BillionThreshold)
	case n >= LargeNumberThreshold:
		return fmt.Sprintf("~%.1f million", n/LargeNumberThreshold)
	default:
		return FormatNumber(int64(math.Round(n)))
	}
}
