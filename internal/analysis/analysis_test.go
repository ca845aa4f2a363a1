package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xleonplayz/IQO-s/internal/extract"
	"github.com/xleonplayz/IQO-s/internal/pulse"
)

func pulsesFromScalars(values ...int64) []extract.Pulse {
	pulses := make([]extract.Pulse, len(values))
	for i, v := range values {
		pulses[i] = extract.Pulse{Index: i, Counts: []int64{v}}
	}
	return pulses
}

func sumSettings() *Settings {
	return &Settings{Method: MethodSum, SignalStart: 0, SignalEnd: 1}
}

func TestAlternatingDifferenceCurve(t *testing.T) {
	// Four pulses reduce to [12, 8, 15, 5]; pairwise differences give the
	// two-point curve [4, 10].
	scalars, err := Scalars(pulsesFromScalars(12, 8, 15, 5), sumSettings())
	require.NoError(t, err)

	mi := &pulse.MeasurementInfo{
		Alternating:        true,
		ControlledVariable: []float64{1, 1, 2, 2},
		NumberOfLasers:     4,
	}
	curve, err := BuildCurve(scalars, mi, AltDelta)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, curve.X)
	require.InDeltaSlice(t, []float64{4, 10}, curve.Y, 1e-12)
	// Errors add in quadrature: sqrt(12+8), sqrt(15+5).
	require.InDelta(t, math.Sqrt(20), curve.YErr[0], 1e-12)
	require.InDelta(t, math.Sqrt(20), curve.YErr[1], 1e-12)
}

func TestAlternatingParallelCurve(t *testing.T) {
	scalars, err := Scalars(pulsesFromScalars(12, 8, 15, 5), sumSettings())
	require.NoError(t, err)

	mi := &pulse.MeasurementInfo{
		Alternating:        true,
		ControlledVariable: []float64{1, 1, 2, 2},
		NumberOfLasers:     4,
	}
	curve, err := BuildCurve(scalars, mi, AltParallel)
	require.NoError(t, err)
	require.True(t, curve.HasSecondSeries())
	require.InDeltaSlice(t, []float64{12, 15}, curve.Y, 1e-12)
	require.InDeltaSlice(t, []float64{8, 5}, curve.Y2, 1e-12)

	delta, err := Delta(curve)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{4, 10}, delta.Y, 1e-12)
}

func TestIgnoredPulsesExcluded(t *testing.T) {
	pulses := pulsesFromScalars(99, 12, 8)
	pulses[0].Ignored = true

	scalars, err := Scalars(pulses, sumSettings())
	require.NoError(t, err)

	mi := &pulse.MeasurementInfo{
		ControlledVariable: []float64{1, 2},
		NumberOfLasers:     3,
		LaserIgnoreList:    []int{0},
	}
	curve, err := BuildCurve(scalars, mi, AltDelta)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{12, 8}, curve.Y, 1e-12)
}

func TestCountMismatchRejected(t *testing.T) {
	scalars, err := Scalars(pulsesFromScalars(1, 2, 3), sumSettings())
	require.NoError(t, err)

	mi := &pulse.MeasurementInfo{ControlledVariable: []float64{1, 2}, NumberOfLasers: 3}
	_, err = BuildCurve(scalars, mi, AltDelta)
	require.Error(t, err)
}

func TestZeroReferenceYieldsNaN(t *testing.T) {
	pulses := []extract.Pulse{
		{Index: 0, Counts: []int64{10, 0}},
	}
	s := &Settings{
		Method:        MethodSum,
		SignalStart:   0,
		SignalEnd:     1,
		Normalization: NormRatio,
		NormStart:     1,
		NormEnd:       2,
	}
	scalars, err := Scalars(pulses, s)
	require.NoError(t, err)
	require.True(t, math.IsNaN(scalars[0].Value))
	require.True(t, math.IsNaN(scalars[0].Err))
}

func TestMeanAndNormalization(t *testing.T) {
	pulses := []extract.Pulse{
		{Index: 0, Counts: []int64{4, 6, 2, 2}},
	}
	tests := []struct {
		name string
		s    Settings
		want float64
	}{
		{"sum", Settings{Method: MethodSum, SignalStart: 0, SignalEnd: 2}, 10},
		{"mean", Settings{Method: MethodMean, SignalStart: 0, SignalEnd: 2}, 5},
		{"ratio", Settings{Method: MethodMean, SignalStart: 0, SignalEnd: 2, Normalization: NormRatio, NormStart: 2, NormEnd: 4}, 2.5},
		{"diff", Settings{Method: MethodMean, SignalStart: 0, SignalEnd: 2, Normalization: NormDiff, NormStart: 2, NormEnd: 4}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scalars, err := Scalars(pulses, &tt.s)
			require.NoError(t, err)
			require.InDelta(t, tt.want, scalars[0].Value, 1e-12)
		})
	}
}

func TestWindowClampedToPulse(t *testing.T) {
	pulses := []extract.Pulse{{Index: 0, Counts: []int64{3, 3}}}
	s := &Settings{Method: MethodSum, SignalStart: 0, SignalEnd: 100}
	scalars, err := Scalars(pulses, s)
	require.NoError(t, err)
	require.InDelta(t, 6, scalars[0].Value, 1e-12)

	// A window entirely past the pulse end is empty: NaN marker.
	s = &Settings{Method: MethodSum, SignalStart: 10, SignalEnd: 12}
	scalars, err = Scalars(pulses, s)
	require.NoError(t, err)
	require.True(t, math.IsNaN(scalars[0].Value))
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{"valid", Settings{Method: MethodSum, SignalStart: 0, SignalEnd: 5}, false},
		{"empty signal window", Settings{Method: MethodSum, SignalStart: 5, SignalEnd: 5}, true},
		{"bad method", Settings{Method: "median", SignalStart: 0, SignalEnd: 5}, true},
		{"empty reference window", Settings{Method: MethodSum, SignalStart: 0, SignalEnd: 5, Normalization: NormRatio}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
