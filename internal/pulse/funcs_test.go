package pulse

import (
	"math"
	"testing"
)

func TestSamplingFunctionValues(t *testing.T) {
	tests := []struct {
		name string
		fn   SamplingFunction
		t    float64
		want float64
	}{
		{"idle is zero", Idle{}, 0.5, 0},
		{"dc holds voltage", DC{Voltage: 0.25}, 1e-3, 0.25},
		{"sin at zero phase", Sin{Amplitude: 1, Frequency: 1e6, Phase: 0}, 0, 0},
		{"sin at 90 degrees", Sin{Amplitude: 2, Frequency: 1e6, Phase: 90}, 0, 2},
		{"sin quarter period", Sin{Amplitude: 1, Frequency: 1, Phase: 0}, 0.25, 1},
		{"double sin sums", DoubleSinSum{Amplitude1: 1, Frequency1: 1, Phase1: 90, Amplitude2: 2, Frequency2: 1, Phase2: 90}, 0, 3},
		{"chirp starts at zero", Chirp{Amplitude: 1, StartFreq: 1e6, StopFreq: 2e6, Duration: 1e-3}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn.Sample(tt.t)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Sample(%g) = %g, want %g", tt.t, got, tt.want)
			}
		})
	}
}

func TestChirpHoldsStopFrequency(t *testing.T) {
	// Past the sweep duration the instantaneous frequency must stay at
	// stop_freq: the value at duration+k/stopFreq repeats the value at
	// duration for integer k.
	f := Chirp{Amplitude: 1, StartFreq: 1e3, StopFreq: 2e3, Duration: 0.5}
	ref := f.Sample(0.5)
	got := f.Sample(0.5 + 1/2e3)
	if math.Abs(got-ref) > 1e-9 {
		t.Errorf("chirp after duration: got %g, want %g", got, ref)
	}
}

func TestNewSamplingFunction(t *testing.T) {
	fn, err := NewSamplingFunction("Sin", map[string]float64{
		"amplitude": 0.5, "frequency": 2.87e9, "phase": 0,
	})
	if err != nil {
		t.Fatalf("NewSamplingFunction: %v", err)
	}
	sin, ok := fn.(Sin)
	if !ok {
		t.Fatalf("got %T, want Sin", fn)
	}
	if sin.Frequency != 2.87e9 {
		t.Errorf("frequency = %g, want 2.87e9", sin.Frequency)
	}
}

func TestNewSamplingFunctionErrors(t *testing.T) {
	tests := []struct {
		name   string
		fnName string
		params map[string]float64
	}{
		{"unknown name", "Gaussian", nil},
		{"missing sin amplitude", "Sin", map[string]float64{"frequency": 1, "phase": 0}},
		{"missing dc voltage", "DC", map[string]float64{}},
		{"missing chirp duration", "Chirp", map[string]float64{"amplitude": 1, "start_freq": 1, "stop_freq": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSamplingFunction(tt.fnName, tt.params); err == nil {
				t.Errorf("NewSamplingFunction(%q, %v) succeeded, want error", tt.fnName, tt.params)
			}
		})
	}
}
