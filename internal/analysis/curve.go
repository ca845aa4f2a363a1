package analysis

import (
	"fmt"
	"math"

	"github.com/xleonplayz/IQO-s/internal/pulse"
)

// A Curve is a signal versus controlled-variable data set. Y2 is populated
// only for alternating measurements in parallel mode, where the two
// interleaved variants share the X axis. Invalid points carry NaN.
type Curve struct {
	X    []float64
	Y    []float64
	YErr []float64

	Y2    []float64
	Y2Err []float64

	// Incomplete marks a curve assembled from an aborted acquisition:
	// usable for inspection, flagged for persistence.
	Incomplete bool
}

// HasSecondSeries reports whether Y2/Y2Err are populated.
func (c *Curve) HasSecondSeries() bool { return c.Y2 != nil }

// Points returns the number of curve points.
func (c *Curve) Points() int { return len(c.X) }

// BuildCurve assembles the per-pulse scalars into a curve against the
// measurement's controlled variable. Ignored pulses are dropped first; the
// remaining count must match the controlled-variable axis exactly, so a
// miscounted extraction fails here instead of producing a shifted curve.
func BuildCurve(scalars []PulseScalar, mi *pulse.MeasurementInfo, mode AlternatingMode) (*Curve, error) {
	if mi == nil {
		return nil, fmt.Errorf("measurement information is required to assemble a curve")
	}
	if err := mi.Validate(); err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(scalars))
	errs := make([]float64, 0, len(scalars))
	for i := range scalars {
		if scalars[i].Ignored {
			continue
		}
		values = append(values, scalars[i].Value)
		errs = append(errs, scalars[i].Err)
	}

	cv := mi.ControlledVariable
	if len(values) != len(cv) {
		return nil, fmt.Errorf("have %d usable pulses for %d controlled-variable points", len(values), len(cv))
	}

	if !mi.Alternating {
		c := &Curve{
			X:    append([]float64(nil), cv...),
			Y:    values,
			YErr: errs,
		}
		return c, nil
	}

	// Alternating: pulses interleave two measurement variants, pair them.
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("alternating curve needs an even pulse count, got %d", len(values))
	}
	points := len(values) / 2
	c := &Curve{
		X:    make([]float64, points),
		Y:    make([]float64, points),
		YErr: make([]float64, points),
	}
	switch mode {
	case AltDelta:
		for i := 0; i < points; i++ {
			c.X[i] = cv[2*i]
			c.Y[i] = values[2*i] - values[2*i+1]
			c.YErr[i] = math.Sqrt(sq(errs[2*i]) + sq(errs[2*i+1]))
		}
	case AltParallel:
		c.Y2 = make([]float64, points)
		c.Y2Err = make([]float64, points)
		for i := 0; i < points; i++ {
			c.X[i] = cv[2*i]
			c.Y[i] = values[2*i]
			c.YErr[i] = errs[2*i]
			c.Y2[i] = values[2*i+1]
			c.Y2Err[i] = errs[2*i+1]
		}
	default:
		return nil, fmt.Errorf("unknown alternating mode %q", mode)
	}
	return c, nil
}

// Delta derives the difference of the two parallel series of an
// alternating curve. Errors add in quadrature.
func Delta(c *Curve) (*Curve, error) {
	if !c.HasSecondSeries() {
		return nil, fmt.Errorf("delta requires a curve with two series")
	}
	out := &Curve{
		X:          append([]float64(nil), c.X...),
		Y:          make([]float64, len(c.Y)),
		YErr:       make([]float64, len(c.Y)),
		Incomplete: c.Incomplete,
	}
	for i := range c.Y {
		out.Y[i] = c.Y[i] - c.Y2[i]
		out.YErr[i] = math.Sqrt(sq(c.YErr[i]) + sq(c.Y2Err[i]))
	}
	return out, nil
}
