package hazard

import (
	"context"
	"fmt"
	"math"

	"hazard-service/internal/models"
)

// Engine computes hazard curves for a site. Implementations must not modify
// the model or the configuration and should return promptly once ctx is done.
type Engine interface {
	Compute(ctx context.Context, model *Model, cfg CalcConfig, site Site) (*Result, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, model *Model, cfg CalcConfig, site Site) (*Result, error)

func (f EngineFunc) Compute(ctx context.Context, model *Model, cfg CalcConfig, site Site) (*Result, error) {
	return f(ctx, model, cfg, site)
}

// GridEngine looks up precomputed rate curves. For every source set it takes
// the grid node nearest to the site, within MaxDistance degrees, and scales
// its rates by the site term of the requested vs30. A source set with no node
// in range contributes a zero curve. The total is the sum of all source sets.
type GridEngine struct {
	MaxDistance float64
}

func NewGridEngine(maxDistance float64) *GridEngine {
	return &GridEngine{MaxDistance: maxDistance}
}

func (e *GridEngine) Compute(ctx context.Context, model *Model, cfg CalcConfig, site Site) (*Result, error) {
	term, ok := cfg.SiteTerm(site.Vs30)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVs30NotSupported, site.Vs30)
	}

	imts := cfg.Imts()
	result := &Result{
		Imts:   imts,
		Totals: make(map[models.Imt]XySequence, len(imts)),
	}
	for _, imt := range imts {
		result.Totals[imt] = ZeroSequence(cfg.Imls(imt))
	}

	for _, set := range model.sourceSets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node, found := e.nearest(set, site.Location)
		curves := make(map[models.Imt]XySequence, len(imts))
		for _, imt := range imts {
			xs := cfg.Imls(imt)
			curve := ZeroSequence(xs)
			if found {
				rates := node.Rates[imt]
				if len(rates) != len(xs) {
					return nil, fmt.Errorf("source set %q: %w: %d %s rates, %d levels",
						set.name, ErrSizeMismatch, len(rates), imt, len(xs))
				}
				for i, r := range rates {
					curve.Y[i] = r * term
				}
			}
			total, err := result.Totals[imt].Add(curve)
			if err != nil {
				return nil, err
			}
			result.Totals[imt] = total
			curves[imt] = curve
		}

		result.SourceSets = append(result.SourceSets, SourceSetCurves{
			Name:   set.name,
			Type:   set.typ,
			Curves: curves,
		})
	}

	return result, nil
}

func (e *GridEngine) nearest(set SourceSet, loc Location) (Node, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, n := range set.nodes {
		d := math.Hypot(n.Location.Lon-loc.Lon, n.Location.Lat-loc.Lat)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > e.MaxDistance {
		return Node{}, false
	}
	return set.nodes[best], true
}
