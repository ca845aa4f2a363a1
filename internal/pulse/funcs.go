package pulse

import (
	"fmt"
	"math"
	"sort"
)

// A SamplingFunction describes the analog output of one channel during a
// single block element. Implementations must be pure: Sample may be called
// concurrently for different time values.
type SamplingFunction interface {
	// Name returns the persisted descriptor name (e.g. "Sin", "DC").
	Name() string
	// Params returns the numeric parameters for persistence.
	Params() map[string]float64
	// Sample evaluates the function at time t (seconds).
	Sample(t float64) float64
}

// Idle outputs zero. It is the implicit function for inactive intervals.
type Idle struct{}

func (Idle) Name() string               { return "Idle" }
func (Idle) Params() map[string]float64 { return map[string]float64{} }
func (Idle) Sample(t float64) float64   { return 0 }

// DC outputs a constant voltage.
type DC struct {
	Voltage float64
}

func (f DC) Name() string               { return "DC" }
func (f DC) Params() map[string]float64 { return map[string]float64{"voltage": f.Voltage} }
func (f DC) Sample(t float64) float64   { return f.Voltage }

// Sin is a single sinusoid. Phase is in degrees, matching the persisted
// object format.
type Sin struct {
	Amplitude float64
	Frequency float64
	Phase     float64
}

func (f Sin) Name() string { return "Sin" }

func (f Sin) Params() map[string]float64 {
	return map[string]float64{
		"amplitude": f.Amplitude,
		"frequency": f.Frequency,
		"phase":     f.Phase,
	}
}

func (f Sin) Sample(t float64) float64 {
	return f.Amplitude * math.Sin(2*math.Pi*f.Frequency*t+f.Phase*math.Pi/180)
}

// DoubleSinSum is the sum of two sinusoids, used for simultaneous driving of
// two transitions.
type DoubleSinSum struct {
	Amplitude1 float64
	Frequency1 float64
	Phase1     float64
	Amplitude2 float64
	Frequency2 float64
	Phase2     float64
}

func (f DoubleSinSum) Name() string { return "DoubleSinSum" }

func (f DoubleSinSum) Params() map[string]float64 {
	return map[string]float64{
		"amplitude_1": f.Amplitude1,
		"frequency_1": f.Frequency1,
		"phase_1":     f.Phase1,
		"amplitude_2": f.Amplitude2,
		"frequency_2": f.Frequency2,
		"phase_2":     f.Phase2,
	}
}

func (f DoubleSinSum) Sample(t float64) float64 {
	s1 := f.Amplitude1 * math.Sin(2*math.Pi*f.Frequency1*t+f.Phase1*math.Pi/180)
	s2 := f.Amplitude2 * math.Sin(2*math.Pi*f.Frequency2*t+f.Phase2*math.Pi/180)
	return s1 + s2
}

// Chirp sweeps linearly from StartFreq to StopFreq over Duration seconds.
// Beyond Duration the instantaneous frequency stays at StopFreq.
type Chirp struct {
	Amplitude float64
	StartFreq float64
	StopFreq  float64
	Duration  float64
}

func (f Chirp) Name() string { return "Chirp" }

func (f Chirp) Params() map[string]float64 {
	return map[string]float64{
		"amplitude":  f.Amplitude,
		"start_freq": f.StartFreq,
		"stop_freq":  f.StopFreq,
		"duration_s": f.Duration,
	}
}

func (f Chirp) Sample(t float64) float64 {
	if f.Duration <= 0 {
		return f.Amplitude * math.Sin(2*math.Pi*f.StartFreq*t)
	}
	tc := t
	if tc > f.Duration {
		tc = f.Duration
	}
	rate := (f.StopFreq - f.StartFreq) / f.Duration
	phase := 2 * math.Pi * (f.StartFreq*tc + 0.5*rate*tc*tc)
	if t > f.Duration {
		phase += 2 * math.Pi * f.StopFreq * (t - f.Duration)
	}
	return f.Amplitude * math.Sin(phase)
}

// NewSamplingFunction builds a SamplingFunction from its persisted
// descriptor. Unknown names and missing parameters are reported as errors
// rather than defaulted, so malformed documents fail at load time.
func NewSamplingFunction(name string, params map[string]float64) (SamplingFunction, error) {
	get := func(key string) (float64, error) {
		v, ok := params[key]
		if !ok {
			return 0, fmt.Errorf("sampling function %q: missing parameter %q", name, key)
		}
		return v, nil
	}

	switch name {
	case "Idle":
		return Idle{}, nil
	case "DC":
		v, err := get("voltage")
		if err != nil {
			return nil, err
		}
		return DC{Voltage: v}, nil
	case "Sin":
		amp, err := get("amplitude")
		if err != nil {
			return nil, err
		}
		freq, err := get("frequency")
		if err != nil {
			return nil, err
		}
		phase, err := get("phase")
		if err != nil {
			return nil, err
		}
		return Sin{Amplitude: amp, Frequency: freq, Phase: phase}, nil
	case "DoubleSinSum":
		var vals [6]float64
		keys := []string{"amplitude_1", "frequency_1", "phase_1", "amplitude_2", "frequency_2", "phase_2"}
		for i, key := range keys {
			v, err := get(key)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return DoubleSinSum{
			Amplitude1: vals[0], Frequency1: vals[1], Phase1: vals[2],
			Amplitude2: vals[3], Frequency2: vals[4], Phase2: vals[5],
		}, nil
	case "Chirp":
		amp, err := get("amplitude")
		if err != nil {
			return nil, err
		}
		f0, err := get("start_freq")
		if err != nil {
			return nil, err
		}
		f1, err := get("stop_freq")
		if err != nil {
			return nil, err
		}
		dur, err := get("duration_s")
		if err != nil {
			return nil, err
		}
		return Chirp{Amplitude: amp, StartFreq: f0, StopFreq: f1, Duration: dur}, nil
	default:
		return nil, fmt.Errorf("unknown sampling function %q (valid: %v)", name, FunctionNames())
	}
}

// FunctionNames lists the valid sampling function descriptor names.
func FunctionNames() []string {
	names := []string{"Idle", "DC", "Sin", "DoubleSinSum", "Chirp"}
	sort.Strings(names)
	return names
}
