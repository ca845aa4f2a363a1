package analysis

import (
	"github.com/xleonplayz/IQO-s/internal/fit"
)

// FFTOf computes the amplitude spectrum of a curve's primary series,
// the secondary view used to eyeball oscillation frequencies.
func FFTOf(c *Curve) (*fit.Spectrum, error) {
	return fit.FFTSpectrum(c.X, c.Y)
}
