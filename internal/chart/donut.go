package chart

import (
	"math"

	"github.com/cristal-orion/superagente/internal/domain"
)

// DonutSegment is one angular span of the ring. Angles are radians;
// the span runs clockwise from StartAngle to EndAngle. The fill is a radial
// gradient from FillInner (base color, at the inner edge) to FillOuter
// (darkened variant, at the outer edge).
type DonutSegment struct {
	Name       string
	Value      float64
	StartAngle float64
	EndAngle   float64
	FillInner  string
	FillOuter  string
}

// DonutLayout describes a complete donut render. Segments are laid out in
// caller order as contiguous spans summing to a full turn starting at the
// 12 o'clock position. EraseInner must be honored with a compositing step
// that clears previously drawn pixels inside InnerRadius: no draw order
// lets the renderer skip it.
type DonutLayout struct {
	CenterX     float64
	CenterY     float64
	OuterRadius float64
	InnerRadius float64
	Segments    []DonutSegment
	EraseInner  bool

	// Highlight ring just outside the inner edge.
	HighlightRadius float64
	HighlightWidth  float64
	HighlightColor  string

	// Placeholder glyph shown when there is nothing to plot.
	Placeholder       bool
	PlaceholderGlyph  string
	PlaceholderFontPx float64
}

const (
	donutOuterFraction = 0.42
	donutInnerFraction = 0.58
	donutDarkenPercent = -20
)

// Donut lays out the proportional breakdown ring. Segments below the
// epsilon are dropped; an empty or zero-total set yields the centered
// placeholder with no spans. Deterministic for identical inputs.
func Donut(segments []domain.ChartSegment, width float64, height float64, ratio float64) DonutLayout {
	if ratio <= 0 {
		ratio = 1
	}

	layout := DonutLayout{
		CenterX: width / 2,
		CenterY: height / 2,
	}

	kept := make([]domain.ChartSegment, 0, len(segments))
	total := 0.0
	for _, seg := range segments {
		if math.IsNaN(seg.Value) || math.IsInf(seg.Value, 0) || seg.Value <= segmentEpsilon {
			continue
		}
		kept = append(kept, seg)
		total += seg.Value
	}

	if len(kept) == 0 || total <= 0 {
		layout.Placeholder = true
		layout.PlaceholderGlyph = "—"
		layout.PlaceholderFontPx = math.Round(14 * ratio)
		return layout
	}

	outer := math.Min(width, height) * donutOuterFraction
	inner := outer * donutInnerFraction
	layout.OuterRadius = outer
	layout.InnerRadius = inner
	layout.EraseInner = true
	layout.HighlightRadius = inner + 2
	layout.HighlightWidth = 2
	layout.HighlightColor = "rgba(255, 255, 255, 0.1)"

	start := -math.Pi / 2
	layout.Segments = make([]DonutSegment, 0, len(kept))
	for _, seg := range kept {
		angle := (seg.Value / total) * (2 * math.Pi)
		layout.Segments = append(layout.Segments, DonutSegment{
			Name:       seg.Name,
			Value:      seg.Value,
			StartAngle: start,
			EndAngle:   start + angle,
			FillInner:  seg.Color,
			FillOuter:  AdjustBrightness(seg.Color, donutDarkenPercent),
		})
		start += angle
	}

	return layout
}
