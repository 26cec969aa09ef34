// internal/services/hazard-curve/aggregate.go
package hazardcurve

import (
	"errors"
	"fmt"

	"hazard-service/internal/hazard"
	"hazard-service/internal/models"
)

var ErrInconsistentResult = errors.New("inconsistent hazard result")

// Aggregate groups an engine result into one response block per IMT, in
// engine order. Each block lists the total curve first, then one curve per
// contributing source type in declaration order. Values are copied, never
// recomputed.
func Aggregate(desc RequestDescriptor, result *hazard.Result) ([]ImtResponse, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: no result", ErrInconsistentResult)
	}

	byType, err := result.TotalsByType()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInconsistentResult, err)
	}

	out := make([]ImtResponse, 0, len(result.Imts))
	for _, imt := range result.Imts {
		total, ok := result.Totals[imt]
		if !ok {
			return nil, fmt.Errorf("%w: no total curve for %s", ErrInconsistentResult, imt)
		}
		if len(total.Y) != len(total.X) {
			return nil, fmt.Errorf("%w: total %s has %d values for %d levels",
				ErrInconsistentResult, imt, len(total.Y), len(total.X))
		}

		curves := []Curve{{Component: TotalComponent, YValues: copyValues(total.Y)}}
		for _, typ := range models.SourceTypes() {
			component, ok := byType[imt][typ]
			if !ok {
				continue
			}
			if len(component.Y) != len(total.X) {
				return nil, fmt.Errorf("%w: %s %s has %d values for %d levels",
					ErrInconsistentResult, typ, imt, len(component.Y), len(total.X))
			}
			curves = append(curves, Curve{Component: typ.String(), YValues: copyValues(component.Y)})
		}

		out = append(out, ImtResponse{
			Metadata: Metadata{
				Edition:   desc.Edition,
				Region:    desc.Region,
				Longitude: desc.Longitude,
				Latitude:  desc.Latitude,
				Imt:       imt,
				Vs30:      desc.Vs30,
				XLabel:    XLabel,
				YLabel:    YLabel,
				XValues:   copyValues(total.X),
			},
			Data: curves,
		})
	}
	return out, nil
}

func copyValues(v []float64) []float64 {
	return append(make([]float64, 0, len(v)), v...)
}
