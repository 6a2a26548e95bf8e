// Package chart computes resolution-independent drawing geometry for the
// projection views. Layout functions are pure: (data, drawing-area size,
// device pixel ratio) in, a list of drawing primitives out. No drawing
// surface is touched, which keeps the geometry assertable in tests.
package chart

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cristal-orion/superagente/internal/domain"
)

// Palette used by both charts and the PDF legend.
const (
	ColorAccent      = "#f59e0b"
	ColorPositive    = "#10b981"
	ColorNegative    = "#ef4444"
	ColorInstallment = "#f59e0b"
	ColorDeduction   = "#10b981"
	ColorSavings     = "#06b6d4"
	ColorGridRevenue = "#8b5cf6"
)

// segmentEpsilon is the smallest value a donut segment may carry; anything
// below is dropped before layout.
const segmentEpsilon = 1e-4

// BreakdownSegments builds the donut input from a projection response:
// the four annual components, clamped at zero, in fixed display order.
func BreakdownSegments(resp domain.CalcResponse) []domain.ChartSegment {
	raw := []domain.ChartSegment{
		{Name: "Rata annua", Value: math.Max(0, finiteOrZero(resp.AnnualInstallmentEUR)), Color: ColorInstallment},
		{Name: "Detrazione", Value: math.Max(0, finiteOrZero(resp.AnnualDeductionEUR)), Color: ColorDeduction},
		{Name: "Risparmio", Value: math.Max(0, finiteOrZero(resp.BillSavingsEUR)), Color: ColorSavings},
		{Name: "Ricavo GSE", Value: math.Max(0, finiteOrZero(resp.GridRevenueEUR)), Color: ColorGridRevenue},
	}
	segments := make([]domain.ChartSegment, 0, len(raw))
	for _, seg := range raw {
		if seg.Value > segmentEpsilon {
			segments = append(segments, seg)
		}
	}
	return segments
}

// AdjustBrightness shifts a #rrggbb color by the given percentage of the
// full channel range, clamping each channel to [0, 255].
func AdjustBrightness(hex string, percent float64) string {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	num, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "#" + hex
	}
	amt := int(math.Round(2.55 * percent))
	r := clampChannel(int(num>>16) + amt)
	g := clampChannel(int((num>>8)&0xff) + amt)
	b := clampChannel(int(num&0xff) + amt)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
