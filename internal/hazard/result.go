package hazard

import (
	"errors"
	"fmt"

	"hazard-service/internal/models"
)

var ErrSizeMismatch = errors.New("sequence size mismatch")

// XySequence is a curve sampled at fixed x values.
type XySequence struct {
	X []float64
	Y []float64
}

// NewXySequence copies xs and ys. It fails if their lengths differ.
func NewXySequence(xs, ys []float64) (XySequence, error) {
	if len(xs) != len(ys) {
		return XySequence{}, fmt.Errorf("%w: %d x values, %d y values", ErrSizeMismatch, len(xs), len(ys))
	}
	return XySequence{
		X: append([]float64(nil), xs...),
		Y: append([]float64(nil), ys...),
	}, nil
}

// ZeroSequence returns a curve over xs with all y values zero.
func ZeroSequence(xs []float64) XySequence {
	return XySequence{X: append([]float64(nil), xs...), Y: make([]float64, len(xs))}
}

func (s XySequence) Len() int { return len(s.X) }

// Copy returns a deep copy.
func (s XySequence) Copy() XySequence {
	return XySequence{X: append([]float64(nil), s.X...), Y: append([]float64(nil), s.Y...)}
}

// Add returns the element-wise sum of s and o, which must share an x-axis.
func (s XySequence) Add(o XySequence) (XySequence, error) {
	if len(s.X) != len(o.X) || len(s.Y) != len(o.Y) {
		return XySequence{}, fmt.Errorf("%w: %d and %d points", ErrSizeMismatch, len(s.X), len(o.X))
	}
	out := s.Copy()
	for i := range out.Y {
		out.Y[i] += o.Y[i]
	}
	return out, nil
}

// SourceSetCurves are the curves of one source set, keyed by IMT.
type SourceSetCurves struct {
	Name   string
	Type   models.SourceType
	Curves map[models.Imt]XySequence
}

// Result is the output of one engine computation.
type Result struct {
	Imts       []models.Imt
	Totals     map[models.Imt]XySequence
	SourceSets []SourceSetCurves
}

// TotalsByType combines source sets of the same type into one curve per type
// and IMT. Types with no source set are absent.
func (r *Result) TotalsByType() (map[models.Imt]map[models.SourceType]XySequence, error) {
	out := make(map[models.Imt]map[models.SourceType]XySequence, len(r.Imts))
	for _, imt := range r.Imts {
		byType := make(map[models.SourceType]XySequence)
		for _, set := range r.SourceSets {
			curve, ok := set.Curves[imt]
			if !ok {
				return nil, fmt.Errorf("source set %q has no %s curve", set.Name, imt)
			}
			existing, seen := byType[set.Type]
			if !seen {
				byType[set.Type] = curve.Copy()
				continue
			}
			summed, err := existing.Add(curve)
			if err != nil {
				return nil, fmt.Errorf("source set %q %s: %w", set.Name, imt, err)
			}
			byType[set.Type] = summed
		}
		out[imt] = byType
	}
	return out, nil
}
