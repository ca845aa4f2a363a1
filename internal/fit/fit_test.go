package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCurve(n int, dx float64, f func(x float64) float64) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) * dx
		y[i] = f(x[i])
	}
	return x, y
}

func TestFitExpDecay(t *testing.T) {
	truth := []float64{2, 5, 0.3} // offset, amplitude, tau
	x, y := sampleCurve(60, 0.02, func(x float64) float64 {
		return ExpDecay{}.Eval(truth, x)
	})

	res, err := Curve(ExpDecay{}, x, y, nil)
	require.NoError(t, err)
	for i, want := range truth {
		require.InEpsilon(t, want, res.Params[i], 0.01, "param %s", res.ParamNames[i])
	}
	require.Less(t, res.Residual, 1e-6)
}

func TestFitDampedSine(t *testing.T) {
	truth := []float64{1, 0.5, 2.5, 0.4, 3} // offset, amplitude, frequency, phase, tau
	x, y := sampleCurve(128, 1.0/32, func(x float64) float64 {
		return DampedSine{}.Eval(truth, x)
	})

	res, err := Curve(DampedSine{}, x, y, nil)
	require.NoError(t, err)
	params := res.ParamMap()
	require.InEpsilon(t, 1, params["offset"], 0.01)
	require.InEpsilon(t, 0.5, params["amplitude"], 0.01)
	require.InEpsilon(t, 2.5, params["frequency"], 0.01)
	require.InEpsilon(t, 3, params["tau"], 0.05)
}

func TestFitSkipsNaNPoints(t *testing.T) {
	truth := []float64{0, 4, 1}
	x, y := sampleCurve(40, 0.1, func(x float64) float64 {
		return ExpDecay{}.Eval(truth, x)
	})
	y[3] = math.NaN()
	y[17] = math.NaN()

	res, err := Curve(ExpDecay{}, x, y, nil)
	require.NoError(t, err)
	require.InEpsilon(t, 1, res.ParamMap()["tau"], 0.01)
}

func TestFitConvergenceErrorCarriesBest(t *testing.T) {
	truth := []float64{1, 0.5, 2.5, 0.4, 3}
	x, y := sampleCurve(128, 1.0/32, func(x float64) float64 {
		return DampedSine{}.Eval(truth, x)
	})

	_, err := Curve(DampedSine{}, x, y, &Options{MaxIterations: 2})
	var conv *FitConvergenceError
	require.ErrorAs(t, err, &conv)
	require.Equal(t, "sine_damped", conv.Model)
	require.Len(t, conv.BestParams, 5)
	require.False(t, math.IsNaN(conv.BestCost))
}

func TestFitRejectsTooFewPoints(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{3, 2, 1}
	_, err := Curve(ExpDecay{}, x, y, nil)
	require.Error(t, err)
	var conv *FitConvergenceError
	require.False(t, errors.As(err, &conv), "point-count errors are not convergence failures")
}

func TestFitLengthMismatch(t *testing.T) {
	_, err := Curve(ExpDecay{}, []float64{0, 1}, []float64{0}, nil)
	require.Error(t, err)
}

func TestModelByName(t *testing.T) {
	for _, name := range []string{"decay_exp", "decay_exp_double", "decay_exp_stretch", "sine_damped"} {
		m, err := ModelByName(name)
		require.NoError(t, err)
		require.Equal(t, name, m.Name())
	}
	_, err := ModelByName("lorentzian")
	require.Error(t, err)
}

func TestFFTSpectrumPeak(t *testing.T) {
	const freq = 5.0
	x, y := sampleCurve(256, 1.0/64, func(x float64) float64 {
		return 3 + math.Sin(2*math.Pi*freq*x)
	})

	s, err := FFTSpectrum(x, y)
	require.NoError(t, err)
	// Zero padding limits resolution; the peak lands within one bin.
	binWidth := 64.0 / float64(nextPow2(2*len(x)))
	require.InDelta(t, freq, s.Peak(), binWidth)
}

func TestFFTSpectrumErrors(t *testing.T) {
	_, err := FFTSpectrum([]float64{0}, []float64{1})
	require.Error(t, err)

	_, err = FFTSpectrum([]float64{1, 0}, []float64{1, 2})
	require.Error(t, err)

	_, err = FFTSpectrum([]float64{0, 1}, []float64{1})
	require.Error(t, err)
}

func TestDampedSineGuessUsesSpectrum(t *testing.T) {
	truth := []float64{0, 1, 4, 0, 100}
	x, y := sampleCurve(256, 1.0/64, func(x float64) float64 {
		return DampedSine{}.Eval(truth, x)
	})

	guess := DampedSine{}.Guess(x, y)
	require.InDelta(t, 4, guess[2], 0.5, "frequency guess should land near the true value")
}
