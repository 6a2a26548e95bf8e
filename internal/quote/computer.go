package quote

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/cristal-orion/superagente/internal/cache"
	"github.com/cristal-orion/superagente/internal/chart"
	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/pricing"
)

// Render sizes for the chart layouts returned to clients. The frontends
// draw at device-pixel ratio 2.
const (
	donutWidth  = 520
	donutHeight = 360
	barsWidth   = 900
	barsHeight  = 420
	renderRatio = 2.0
)

// Computation bundles a pricing projection with the render-ready chart
// layouts derived from it.
type Computation struct {
	Response  *domain.CalcResponse  `json:"response"`
	Breakdown []domain.ChartSegment `json:"breakdown"`
	Donut     chart.DonutLayout     `json:"donut"`
	Bars      chart.BarsLayout      `json:"bars"`
}

// Computer runs pricing requests through the calculator with a read-through
// projection cache in front. Cache failures are logged and ignored; the
// calculator is always the source of truth.
type Computer struct {
	calc     pricing.Calculator
	cache    cache.ProjectionCache
	cacheTTL time.Duration
}

func NewComputer(calc pricing.Calculator, projectionCache cache.ProjectionCache, cacheTTL time.Duration) *Computer {
	if projectionCache == nil {
		projectionCache = cache.NoopProjectionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &Computer{
		calc:     calc,
		cache:    projectionCache,
		cacheTTL: cacheTTL,
	}
}

func (c *Computer) Compute(ctx context.Context, req domain.CalcRequest) (*Computation, error) {
	key := buildCacheKey(req)

	resp, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[quote] WARN: projection cache get failed: %v", err)
	}
	if !hit || resp == nil {
		resp, err = c.calc.Calc(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, resp, c.cacheTTL); err != nil {
			log.Printf("[quote] WARN: projection cache set failed: %v", err)
		}
	}

	return buildComputation(resp), nil
}

func buildComputation(resp *domain.CalcResponse) *Computation {
	segments := chart.BreakdownSegments(*resp)
	return &Computation{
		Response:  resp,
		Breakdown: segments,
		Donut:     chart.Donut(segments, donutWidth, donutHeight, renderRatio),
		Bars:      chart.CashflowBars(resp.CashflowYears, barsWidth, barsHeight, renderRatio),
	}
}

func buildCacheKey(req domain.CalcRequest) string {
	payload, err := json.Marshal(req)
	if err != nil {
		return "quote:calc:unkeyed"
	}
	hash := sha1.Sum(payload)
	return "quote:calc:" + hex.EncodeToString(hash[:])
}
