package measure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xleonplayz/IQO-s/internal/analysis"
	"github.com/xleonplayz/IQO-s/internal/hardware"
	"github.com/xleonplayz/IQO-s/internal/pulse"
	"github.com/xleonplayz/IQO-s/internal/sampler"
)

// testPlan builds a two-point plan over a trace with two laser windows of
// four bins each.
func testPlan(sweeps int) *Plan {
	return &Plan{
		Waveforms: []*sampler.Waveform{{Name: "ens_000"}},
		Intervals: [][2]int64{{0, 4}, {6, 10}},
		Measurement: &pulse.MeasurementInfo{
			ControlledVariable: []float64{1e-6, 2e-6},
			NumberOfLasers:     2,
		},
		Analysis: &analysis.Settings{
			Method:      analysis.MethodSum,
			SignalStart: 0,
			SignalEnd:   4,
		},
		Mode:   analysis.AltDelta,
		Sweeps: sweeps,
	}
}

// trace yields counts summing to a per window and b per window two.
func trace(a, b int64) []int64 {
	return []int64{a, 0, 0, 0, 0, 0, b, 0, 0, 0}
}

func TestRunAveragesSweeps(t *testing.T) {
	counter := hardware.NewMockPhotonCounter(trace(10, 100), trace(14, 96))
	runner := &Runner{Generator: hardware.NewMockPulseGenerator(), Counter: counter}

	res, err := runner.Run(context.Background(), testPlan(2))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.SessionID)
	require.EqualValues(t, 2, res.Sweeps)
	require.False(t, res.Incomplete)

	require.Equal(t, []float64{1e-6, 2e-6}, res.Curve.X)
	require.InDeltaSlice(t, []float64{12, 98}, res.Curve.Y, 1e-12)
}

func TestRunParallelWorkersMatchSequential(t *testing.T) {
	traces := [][]int64{
		trace(10, 100), trace(12, 104), trace(14, 96), trace(11, 101),
		trace(13, 99), trace(9, 102), trace(15, 97), trace(12, 100),
	}

	run := func(workers int) *Result {
		plan := testPlan(len(traces))
		plan.Workers = workers
		runner := &Runner{
			Generator: hardware.NewMockPulseGenerator(),
			Counter:   hardware.NewMockPhotonCounter(traces...),
		}
		res, err := runner.Run(context.Background(), plan)
		require.NoError(t, err)
		return res
	}

	sequential := run(1)
	parallel := run(4)
	require.InDeltaSlice(t, sequential.Curve.Y, parallel.Curve.Y, 1e-9)
	require.InDeltaSlice(t, sequential.Curve.YErr, parallel.Curve.YErr, 1e-9)
}

func TestRunCancellationYieldsPartialResult(t *testing.T) {
	counter := hardware.NewMockPhotonCounter(trace(10, 100))
	runner := &Runner{Generator: hardware.NewMockPulseGenerator(), Counter: counter}

	// Open-ended acquisition, ended by the deadline.
	plan := testPlan(0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := runner.Run(ctx, plan)
	require.NoError(t, err)
	require.True(t, res.Incomplete)
	require.Positive(t, res.Sweeps)
	require.InDeltaSlice(t, []float64{10, 100}, res.Curve.Y, 1e-12)
}

func TestRunStopsGeneratorAfterwards(t *testing.T) {
	gen := hardware.NewMockPulseGenerator()
	runner := &Runner{Generator: gen, Counter: hardware.NewMockPhotonCounter(trace(1, 1))}

	_, err := runner.Run(context.Background(), testPlan(1))
	require.NoError(t, err)
	require.False(t, gen.Running)
}

func TestRunRejectsConcurrentMeasurements(t *testing.T) {
	runner := &Runner{
		Generator: hardware.NewMockPulseGenerator(),
		Counter:   hardware.NewMockPhotonCounter(trace(1, 1)),
	}
	require.NoError(t, runner.acquire())
	_, err := runner.Run(context.Background(), testPlan(1))
	require.Error(t, err)
	runner.release()

	_, err = runner.Run(context.Background(), testPlan(1))
	require.NoError(t, err)
}

func TestRunValidatesPlan(t *testing.T) {
	runner := &Runner{
		Generator: hardware.NewMockPulseGenerator(),
		Counter:   hardware.NewMockPhotonCounter(trace(1, 1)),
	}

	plan := testPlan(1)
	plan.Measurement = nil
	_, err := runner.Run(context.Background(), plan)
	require.Error(t, err)

	plan = testPlan(1)
	plan.Analysis.SignalEnd = 0
	_, err = runner.Run(context.Background(), plan)
	require.Error(t, err)
}

func TestRunShortTraceFailsSession(t *testing.T) {
	counter := hardware.NewMockPhotonCounter([]int64{1, 2, 3})
	runner := &Runner{Generator: hardware.NewMockPulseGenerator(), Counter: counter}

	_, err := runner.Run(context.Background(), testPlan(1))
	require.Error(t, err)
}
