// Package extract slices raw time-binned count traces into per-pulse
// sub-traces using the laser intervals determined by the sampler.
package extract

import (
	"fmt"
)

// AcquisitionError reports a raw trace that cannot cover the expected
// laser timing (truncated or malformed acquisition). Truncated traces are
// never zero-padded into the analysis.
type AcquisitionError struct {
	TraceLen    int
	RequiredLen int64
	PulseIndex  int
	Reason      string
}

func (e *AcquisitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("acquisition error: %s", e.Reason)
	}
	return fmt.Sprintf("acquisition error: trace has %d bins but laser pulse %d ends at bin %d",
		e.TraceLen, e.PulseIndex, e.RequiredLen)
}

// A Pulse is one extracted laser window, aligned to the pulse start.
type Pulse struct {
	Index  int
	Counts []int64
	// StartBin is the pulse position in the raw trace, kept for
	// diagnostics.
	StartBin int64
	// Ignored marks pulses on the laser ignore list: extracted for
	// inspection but excluded from all signal aggregation.
	Ignored bool
}

// LaserPulses extracts one sub-trace per [start, end) laser interval.
// Intervals must be ascending and non-overlapping (as produced by the
// sampler). ignore lists pulse indices to mark as excluded.
func LaserPulses(trace []int64, intervals [][2]int64, ignore []int) ([]Pulse, error) {
	if len(intervals) == 0 {
		return nil, &AcquisitionError{Reason: "no laser intervals to extract"}
	}
	last := intervals[len(intervals)-1]
	if int64(len(trace)) < last[1] {
		return nil, &AcquisitionError{
			TraceLen:    len(trace),
			RequiredLen: last[1],
			PulseIndex:  len(intervals) - 1,
		}
	}

	ignored := make(map[int]bool, len(ignore))
	for _, idx := range ignore {
		ignored[idx] = true
	}

	pulses := make([]Pulse, 0, len(intervals))
	for i, iv := range intervals {
		start, end := iv[0], iv[1]
		if start < 0 || end < start {
			return nil, &AcquisitionError{
				PulseIndex: i,
				Reason:     fmt.Sprintf("laser interval %d [%d, %d) is malformed", i, start, end),
			}
		}
		counts := make([]int64, end-start)
		copy(counts, trace[start:end])
		pulses = append(pulses, Pulse{
			Index:    i,
			Counts:   counts,
			StartBin: start,
			Ignored:  ignored[i],
		})
	}
	return pulses, nil
}

// GatedPulses adapts traces from a gated counter, where the hardware
// already delivers one row per laser pulse. The expected pulse count is
// enforced so a short acquisition fails loudly instead of shifting the
// pulse ordering.
func GatedPulses(rows [][]int64, expected int, ignore []int) ([]Pulse, error) {
	if len(rows) < expected {
		return nil, &AcquisitionError{
			TraceLen:   len(rows),
			PulseIndex: expected - 1,
			Reason:     fmt.Sprintf("gated trace has %d rows, expected %d", len(rows), expected),
		}
	}
	ignored := make(map[int]bool, len(ignore))
	for _, idx := range ignore {
		ignored[idx] = true
	}
	pulses := make([]Pulse, 0, expected)
	for i := 0; i < expected; i++ {
		counts := make([]int64, len(rows[i]))
		copy(counts, rows[i])
		pulses = append(pulses, Pulse{Index: i, Counts: counts, Ignored: ignored[i]})
	}
	return pulses, nil
}
