// Package fit estimates physical parameters from measured curves by
// least-squares fitting of a small set of decay and oscillation models,
// plus the FFT used to seed frequency guesses.
package fit

import (
	"fmt"
	"math"
	"sort"
)

// A Model is a parametric curve shape with a data-driven starting guess.
type Model interface {
	Name() string
	// ParamNames lists the parameter order used by Eval and Guess.
	ParamNames() []string
	// Eval evaluates the model at x for the given parameter vector.
	Eval(params []float64, x float64) float64
	// Guess derives a starting parameter vector from the data.
	Guess(x, y []float64) []float64
}

// Models returns the registered models keyed by name.
func Models() map[string]Model {
	return map[string]Model{
		"decay_exp":         ExpDecay{},
		"decay_exp_double":  DoubleExpDecay{},
		"decay_exp_stretch": StretchedExpDecay{},
		"sine_damped":       DampedSine{},
	}
}

// ModelByName looks up a registered model.
func ModelByName(name string) (Model, error) {
	m, ok := Models()[name]
	if !ok {
		return nil, fmt.Errorf("unknown fit model %q", name)
	}
	return m, nil
}

// ExpDecay is offset + amplitude * exp(-x/tau).
type ExpDecay struct{}

func (ExpDecay) Name() string         { return "decay_exp" }
func (ExpDecay) ParamNames() []string { return []string{"offset", "amplitude", "tau"} }

func (ExpDecay) Eval(p []float64, x float64) float64 {
	return p[0] + p[1]*math.Exp(-x/p[2])
}

func (ExpDecay) Guess(x, y []float64) []float64 {
	offset := y[len(y)-1]
	amplitude := y[0] - offset
	tau := span(x) / 3
	return []float64{offset, amplitude, tau}
}

// DoubleExpDecay is offset + a1*exp(-x/tau1) + a2*exp(-x/tau2).
type DoubleExpDecay struct{}

func (DoubleExpDecay) Name() string { return "decay_exp_double" }
func (DoubleExpDecay) ParamNames() []string {
	return []string{"offset", "amplitude_1", "tau_1", "amplitude_2", "tau_2"}
}

func (DoubleExpDecay) Eval(p []float64, x float64) float64 {
	return p[0] + p[1]*math.Exp(-x/p[2]) + p[3]*math.Exp(-x/p[4])
}

func (DoubleExpDecay) Guess(x, y []float64) []float64 {
	offset := y[len(y)-1]
	amplitude := (y[0] - offset) / 2
	// Split the decay into a fast and a slow component a decade apart.
	return []float64{offset, amplitude, span(x) / 10, amplitude, span(x)}
}

// StretchedExpDecay is offset + amplitude * exp(-(x/tau)^beta).
type StretchedExpDecay struct{}

func (StretchedExpDecay) Name() string { return "decay_exp_stretch" }
func (StretchedExpDecay) ParamNames() []string {
	return []string{"offset", "amplitude", "tau", "beta"}
}

func (StretchedExpDecay) Eval(p []float64, x float64) float64 {
	if x < 0 {
		return p[0] + p[1]
	}
	return p[0] + p[1]*math.Exp(-math.Pow(x/p[2], p[3]))
}

func (StretchedExpDecay) Guess(x, y []float64) []float64 {
	offset := y[len(y)-1]
	amplitude := y[0] - offset
	return []float64{offset, amplitude, span(x) / 3, 1}
}

// DampedSine is offset + amplitude * exp(-x/tau) * sin(2*pi*f*x + phase).
type DampedSine struct{}

func (DampedSine) Name() string { return "sine_damped" }
func (DampedSine) ParamNames() []string {
	return []string{"offset", "amplitude", "frequency", "phase", "tau"}
}

func (DampedSine) Eval(p []float64, x float64) float64 {
	return p[0] + p[1]*math.Exp(-x/p[4])*math.Sin(2*math.Pi*p[2]*x+p[3])
}

// Guess seeds the frequency from the dominant FFT peak; amplitude and
// offset from the data range.
func (DampedSine) Guess(x, y []float64) []float64 {
	offset := mean(y)
	amplitude := (maxOf(y) - minOf(y)) / 2
	frequency := dominantFrequency(x, y)
	if frequency <= 0 {
		frequency = 1 / span(x)
	}
	return []float64{offset, amplitude, frequency, 0, span(x)}
}

func span(x []float64) float64 {
	if len(x) < 2 {
		return 1
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	s := sorted[len(sorted)-1] - sorted[0]
	if s <= 0 {
		return 1
	}
	return s
}

func mean(y []float64) float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func minOf(y []float64) float64 {
	m := y[0]
	for _, v := range y[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(y []float64) float64 {
	m := y[0]
	for _, v := range y[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
