package chart

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cristal-orion/superagente/internal/domain"
)

// Bar is a single diverging bar. A non-positive net cost (a saving) points
// upward from the zero line with a rounded top edge; a positive one points
// downward with a rounded bottom edge. The fill is a vertical gradient from
// FillStart (at Y) to FillEnd (at Y+Height).
type Bar struct {
	Year         int
	Value        float64
	X            float64
	Y            float64
	Width        float64
	Height       float64
	Upward       bool
	CornerRadius float64
	FillStart    string
	FillEnd      string
	Highlight    bool
}

type Label struct {
	Text   string
	X      float64
	Y      float64
	FontPx float64
}

type GridLine struct {
	X1, Y1, X2, Y2 float64
}

// BarsLayout is the complete diverging bar chart geometry.
type BarsLayout struct {
	Empty bool

	PlotX  float64
	PlotY  float64
	PlotW  float64
	PlotH  float64
	ZeroY  float64
	MaxAbs float64

	GridLines      []GridLine
	ZeroLine       GridLine
	Bars           []Bar
	YLabels        []Label
	XLabels        []Label
	AxisTitle      Label
	HighlightColor string
	HighlightWidth float64
}

const (
	barsMaxCount      = 25
	barsGridLineCount = 4
	barsDarkenPercent = -30
)

// xAxisYears are the only years that get an X-axis label.
var xAxisYears = []int{1, 5, 10, 15, 20, 25}

// CashflowBars lays out the 25-year net cost series. Non-finite entries are
// dropped before the magnitude scan; if that empties the series the layout
// is Empty and nothing renders. Only the first 25 entries are shown. The bar
// at index 10 carries a highlight outline, marking the first year after a
// typical financing term.
func CashflowBars(years []domain.CashflowYear, width float64, height float64, ratio float64) BarsLayout {
	if ratio <= 0 {
		ratio = 1
	}

	finiteCount := 0
	maxAbs := 0.0
	for _, entry := range years {
		if math.IsNaN(entry.NetCostEUR) || math.IsInf(entry.NetCostEUR, 0) {
			continue
		}
		finiteCount++
		if abs := math.Abs(entry.NetCostEUR); abs > maxAbs {
			maxAbs = abs
		}
	}
	if finiteCount == 0 {
		return BarsLayout{Empty: true}
	}
	maxAbs = math.Max(1, maxAbs)

	pad := math.Round(20 * ratio)
	left := math.Round(50 * ratio)
	bottom := math.Round(40 * ratio)
	top := pad
	right := pad

	plotW := width - left - right
	plotH := height - top - bottom
	zeroY := top + plotH/2

	layout := BarsLayout{
		PlotX:          left,
		PlotY:          top,
		PlotW:          plotW,
		PlotH:          plotH,
		ZeroY:          zeroY,
		MaxAbs:         maxAbs,
		HighlightColor: ColorAccent,
		HighlightWidth: 2 * ratio,
	}

	for i := 0; i <= barsGridLineCount; i++ {
		y := top + (plotH/barsGridLineCount)*float64(i)
		layout.GridLines = append(layout.GridLines, GridLine{X1: left, Y1: y, X2: left + plotW, Y2: y})
	}
	layout.ZeroLine = GridLine{X1: left, Y1: zeroY, X2: left + plotW, Y2: zeroY}

	labelFont := math.Round(11 * ratio)
	maxLabel := int(math.Ceil(maxAbs/100) * 100)
	layout.YLabels = []Label{
		{Text: fmt.Sprintf("+%d€", maxLabel), X: left - 10, Y: top, FontPx: labelFont},
		{Text: "0€", X: left - 10, Y: zeroY, FontPx: labelFont},
		{Text: fmt.Sprintf("-%d€", maxLabel), X: left - 10, Y: top + plotH, FontPx: labelFont},
	}

	barCount := len(years)
	if barCount > barsMaxCount {
		barCount = barsMaxCount
	}
	gap := math.Max(2, math.Round(4*ratio))
	barW := math.Max(4, math.Floor((plotW-gap*float64(barCount-1))/float64(barCount)))
	cornerRadius := math.Min(4*ratio, barW/2)

	for i := 0; i < barCount; i++ {
		value := years[i].NetCostEUR
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		x := left + float64(i)*(barW+gap)
		barH := (math.Abs(value) / maxAbs) * (plotH / 2)
		upward := value <= 0

		y := zeroY
		if upward {
			y = zeroY - barH
		}

		base := ColorNegative
		if upward {
			base = ColorPositive
		}

		layout.Bars = append(layout.Bars, Bar{
			Year:         years[i].Year,
			Value:        value,
			X:            x,
			Y:            y,
			Width:        barW,
			Height:       barH,
			Upward:       upward,
			CornerRadius: cornerRadius,
			FillStart:    base,
			FillEnd:      AdjustBrightness(base, barsDarkenPercent),
			Highlight:    i == 10,
		})
	}

	xLabelY := top + plotH + math.Round(12*ratio)
	for _, year := range xAxisYears {
		if year > barCount {
			continue
		}
		i := year - 1
		x := left + float64(i)*(barW+gap) + barW/2
		layout.XLabels = append(layout.XLabels, Label{Text: strconv.Itoa(year), X: x, Y: xLabelY, FontPx: labelFont})
	}

	layout.AxisTitle = Label{Text: "Anno", X: left + plotW/2, Y: height - 8*ratio, FontPx: math.Round(10 * ratio)}
	return layout
}
