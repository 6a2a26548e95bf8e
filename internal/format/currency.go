package format

import (
	"fmt"
	"math"
	"strings"
)

// Euro returns a whole-euro currency string with Italian grouping
// (e.g. "12.345 €", "-1.200 €"). Non-finite values render as a dash, the
// same placeholder the quote views use for missing figures.
func Euro(value float64) string {
	if !isFinite(value) {
		return "—"
	}
	sign := ""
	if value < 0 {
		sign = "-"
	}
	return sign + groupThousands(fmt.Sprintf("%.0f", math.Abs(value))) + " €"
}

// EuroMonthly formats an installment with cents (e.g. "123,45 €").
func EuroMonthly(value float64) string {
	if !isFinite(value) {
		return "—"
	}
	sign := ""
	if value < 0 {
		sign = "-"
	}
	formatted := fmt.Sprintf("%.2f", math.Abs(value))
	parts := strings.SplitN(formatted, ".", 2)
	return sign + groupThousands(parts[0]) + "," + parts[1] + " €"
}

// EuroNumber returns the unsigned magnitude without the currency symbol,
// used for hero figures where the sign is conveyed separately.
func EuroNumber(value float64) string {
	if !isFinite(value) {
		return "—"
	}
	return groupThousands(fmt.Sprintf("%.0f", math.Abs(value)))
}

// KWh formats an energy figure with Italian grouping and a unit suffix.
func KWh(value float64) string {
	if !isFinite(value) {
		return "—"
	}
	sign := ""
	if value < 0 {
		sign = "-"
	}
	return sign + groupThousands(fmt.Sprintf("%.0f", math.Abs(value))) + " kWh"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var builder strings.Builder
	for i, digit := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			builder.WriteByte('.')
		}
		builder.WriteRune(digit)
	}
	return builder.String()
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
