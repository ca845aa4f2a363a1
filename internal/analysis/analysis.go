// Package analysis reduces extracted laser pulses to a signal versus
// controlled-variable curve: per-pulse window aggregation, optional
// reference normalization, alternating combination and numerically stable
// averaging over repeated sweeps.
//
// Invalid values (empty windows, zero-valued reference windows) are
// represented as NaN markers and carried through, never coerced to zero
// and never raised as errors.
package analysis

import (
	"fmt"
	"math"

	"github.com/xleonplayz/IQO-s/internal/extract"
)

// Method selects the window aggregate.
type Method string

const (
	MethodSum  Method = "sum"
	MethodMean Method = "mean"
)

// Normalization selects how the reference window is applied.
type Normalization string

const (
	NormNone  Normalization = "none"
	NormRatio Normalization = "ratio"
	NormDiff  Normalization = "diff"
)

// AlternatingMode selects how alternating pulse pairs are combined.
type AlternatingMode string

const (
	// AltDelta combines pairs into a single difference series.
	AltDelta AlternatingMode = "delta"
	// AltParallel keeps the two interleaved variants as separate series
	// sharing one controlled-variable axis.
	AltParallel AlternatingMode = "parallel"
)

// Settings configures the per-pulse reduction. Window bounds are sample
// indices relative to the pulse start, half-open [Start, End).
type Settings struct {
	Method        Method
	SignalStart   int64
	SignalEnd     int64
	Normalization Normalization
	NormStart     int64
	NormEnd       int64
}

// Validate checks the window configuration.
func (s *Settings) Validate() error {
	if s.SignalEnd <= s.SignalStart {
		return fmt.Errorf("signal window [%d, %d) is empty", s.SignalStart, s.SignalEnd)
	}
	if s.Normalization != NormNone && s.NormEnd <= s.NormStart {
		return fmt.Errorf("reference window [%d, %d) is empty", s.NormStart, s.NormEnd)
	}
	switch s.Method {
	case MethodSum, MethodMean:
	default:
		return fmt.Errorf("unknown analysis method %q", s.Method)
	}
	switch s.Normalization {
	case NormNone, NormRatio, NormDiff:
	default:
		return fmt.Errorf("unknown normalization %q", s.Normalization)
	}
	return nil
}

// A PulseScalar is the reduced value of one laser pulse plus its shot-noise
// standard error. Value is NaN when the window was empty or the reference
// aggregate was zero.
type PulseScalar struct {
	Index   int
	Value   float64
	Err     float64
	Ignored bool
}

// Scalars reduces every pulse to its scalar. Ignored pulses are reduced
// too (for diagnostics) but stay flagged for exclusion downstream.
func Scalars(pulses []extract.Pulse, settings *Settings) ([]PulseScalar, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	out := make([]PulseScalar, len(pulses))
	for i := range pulses {
		value, errEst := reduce(pulses[i].Counts, settings)
		out[i] = PulseScalar{
			Index:   pulses[i].Index,
			Value:   value,
			Err:     errEst,
			Ignored: pulses[i].Ignored,
		}
	}
	return out, nil
}

// reduce computes the windowed aggregate with shot-noise error
// propagation. Counting statistics: the variance of a summed photon count
// equals the count itself.
func reduce(counts []int64, s *Settings) (float64, float64) {
	sigSum, sigBins := windowSum(counts, s.SignalStart, s.SignalEnd)
	if sigBins == 0 {
		return math.NaN(), math.NaN()
	}
	sigVal := sigSum
	sigErr := math.Sqrt(sigSum)
	if s.Method == MethodMean {
		sigVal /= float64(sigBins)
		sigErr /= float64(sigBins)
	}
	if s.Normalization == NormNone {
		return sigVal, sigErr
	}

	refSum, refBins := windowSum(counts, s.NormStart, s.NormEnd)
	if refBins == 0 {
		return math.NaN(), math.NaN()
	}
	refVal := refSum
	refErr := math.Sqrt(refSum)
	if s.Method == MethodMean {
		refVal /= float64(refBins)
		refErr /= float64(refBins)
	}

	switch s.Normalization {
	case NormRatio:
		if refVal == 0 {
			// Explicit invalid marker; the curve point stays NaN.
			return math.NaN(), math.NaN()
		}
		value := sigVal / refVal
		errEst := math.Abs(value) * math.Sqrt(sq(sigErr/sigVal)+sq(refErr/refVal))
		if sigVal == 0 {
			errEst = refErr / sq(refVal) // limit of the propagation formula
		}
		return value, errEst
	case NormDiff:
		return sigVal - refVal, math.Sqrt(sq(sigErr) + sq(refErr))
	default:
		return sigVal, sigErr
	}
}

// windowSum sums counts over the clamped window and reports the number of
// bins actually covered.
func windowSum(counts []int64, start, end int64) (float64, int64) {
	if start < 0 {
		start = 0
	}
	if end > int64(len(counts)) {
		end = int64(len(counts))
	}
	if end <= start {
		return 0, 0
	}
	var sum int64
	for _, c := range counts[start:end] {
		sum += c
	}
	return float64(sum), end - start
}

func sq(x float64) float64 { return x * x }
