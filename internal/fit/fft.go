package fit

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// A Spectrum is the one-sided amplitude spectrum of a real-valued curve.
type Spectrum struct {
	Frequency []float64
	Amplitude []float64
}

// Peak returns the frequency of the largest non-DC amplitude.
func (s *Spectrum) Peak() float64 {
	best, bestAmp := 0.0, -1.0
	for i := 1; i < len(s.Frequency); i++ {
		if s.Amplitude[i] > bestAmp {
			best, bestAmp = s.Frequency[i], s.Amplitude[i]
		}
	}
	return best
}

// FFTSpectrum computes the amplitude spectrum of y sampled at the x
// positions. The mean is subtracted first so the DC term does not mask
// small oscillations, and the series is zero-padded to the next power of
// two for frequency resolution. x must be uniformly spaced in ascending
// order; NaN points are replaced by the mean (a zero after DC removal).
func FFTSpectrum(x, y []float64) (*Spectrum, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x and y lengths differ: %d vs %d", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("need at least 2 points for a spectrum, got %d", len(x))
	}
	dx := (x[len(x)-1] - x[0]) / float64(len(x)-1)
	if dx <= 0 {
		return nil, fmt.Errorf("x axis must be ascending")
	}

	m := meanValid(y)
	padded := make([]float64, nextPow2(2*len(y)))
	for i, v := range y {
		if math.IsNaN(v) {
			continue
		}
		padded[i] = v - m
	}

	fft := fourier.NewFFT(len(padded))
	coeffs := fft.Coefficients(nil, padded)

	s := &Spectrum{
		Frequency: make([]float64, len(coeffs)),
		Amplitude: make([]float64, len(coeffs)),
	}
	norm := 2 / float64(len(y))
	for i, c := range coeffs {
		s.Frequency[i] = fft.Freq(i) / dx
		s.Amplitude[i] = cmplx.Abs(c) * norm
	}
	return s, nil
}

func dominantFrequency(x, y []float64) float64 {
	s, err := FFTSpectrum(x, y)
	if err != nil {
		return 0
	}
	return s.Peak()
}

func meanValid(y []float64) float64 {
	var sum float64
	var n int
	for _, v := range y {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
