// Package measure runs a pulsed acquisition end to end: arm the pulse
// generator, pull count traces from the photon counter sweep by sweep,
// reduce each sweep to a curve and fold it into a running average. The
// runner owns the only mutable acquisition state; the packages below it
// are pure transformations.
package measure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/xleonplayz/IQO-s/internal/analysis"
	"github.com/xleonplayz/IQO-s/internal/extract"
	"github.com/xleonplayz/IQO-s/internal/hardware"
	"github.com/xleonplayz/IQO-s/internal/pulse"
	"github.com/xleonplayz/IQO-s/internal/sampler"
	"github.com/xleonplayz/IQO-s/internal/sequencer"
)

// A Plan bundles everything a single acquisition needs. Waveforms come
// pre-sampled; the runner never touches the pulse object store.
type Plan struct {
	// Waveforms to load into the generator before arming.
	Waveforms []*sampler.Waveform
	// Playlist is the compiled sequence to arm. Nil plays the single
	// waveform directly.
	Playlist *sequencer.Playlist
	// Intervals are the laser [rise, fall) bin pairs expected in each
	// trace, from the sampling metadata.
	Intervals [][2]int64
	// Measurement is the measurement metadata of the sampled ensemble.
	Measurement *pulse.MeasurementInfo
	Analysis    *analysis.Settings
	Mode        analysis.AlternatingMode

	// Sweeps caps the number of sweeps. Zero means run until the context
	// is cancelled.
	Sweeps int
	// Workers sets the number of parallel sweep reducers. Zero means 1.
	Workers int
}

// A Result is the outcome of one acquisition session.
type Result struct {
	SessionID uuid.UUID
	Curve     *analysis.Curve
	Sweeps    int64
	// Incomplete marks a session that was cancelled before reaching its
	// sweep target. The curve holds everything acquired up to that point.
	Incomplete bool
	Warnings   []string
}

// A Runner drives the hardware for one measurement at a time.
type Runner struct {
	Generator hardware.PulseGenerator
	Counter   hardware.PhotonCounter

	mu      sync.Mutex
	running bool
}

// Run executes the plan. Cancellation via ctx is the normal way to end
// an open-ended acquisition: the partial result is returned with the
// Incomplete flag set, alongside a nil error.
func (r *Runner) Run(ctx context.Context, plan *Plan) (*Result, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	if plan.Measurement == nil {
		return nil, fmt.Errorf("plan has no measurement information")
	}
	if err := plan.Analysis.Validate(); err != nil {
		return nil, err
	}

	session := uuid.New()
	log.Printf("measure: session %s starting (%d waveform(s), %d sweep target)",
		session, len(plan.Waveforms), plan.Sweeps)

	if err := r.arm(ctx, plan); err != nil {
		return nil, err
	}
	if err := r.Generator.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting pulse generator: %w", err)
	}
	defer func() {
		// Stop with a fresh context so cancellation still halts the output.
		if err := r.Generator.Stop(context.Background()); err != nil {
			log.Printf("measure: session %s: stopping pulse generator: %v", session, err)
		}
	}()

	acc, sweeps, runErr := r.acquireSweeps(ctx, plan)
	cancelled := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !cancelled {
		return nil, runErr
	}
	if cancelled {
		acc.MarkIncomplete()
		log.Printf("measure: session %s cancelled after %d sweep(s)", session, sweeps)
	} else {
		log.Printf("measure: session %s finished after %d sweep(s)", session, sweeps)
	}

	curve := acc.Snapshot()
	return &Result{
		SessionID:  session,
		Curve:      curve,
		Sweeps:     sweeps,
		Incomplete: curve.Incomplete,
	}, nil
}

func (r *Runner) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("a measurement is already running")
	}
	r.running = true
	return nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) arm(ctx context.Context, plan *Plan) error {
	for _, wf := range plan.Waveforms {
		if err := r.Generator.LoadWaveform(ctx, wf); err != nil {
			return fmt.Errorf("loading waveform %q: %w", wf.Name, err)
		}
	}
	if plan.Playlist != nil {
		if err := r.Generator.ArmSequence(ctx, plan.Playlist); err != nil {
			return fmt.Errorf("arming sequence %q: %w", plan.Playlist.Name, err)
		}
	}
	return nil
}

// acquireSweeps reads traces in acquisition order and fans the reduction
// out to workers. Each worker keeps its own accumulator; the final merge
// walks workers in index order, so the combined statistics match a
// sequential run.
func (r *Runner) acquireSweeps(ctx context.Context, plan *Plan) (*analysis.Accumulator, int64, error) {
	workers := plan.Workers
	if workers < 1 {
		workers = 1
	}

	traces := make(chan []int64, workers)
	accs := make([]*analysis.Accumulator, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		accs[w] = analysis.NewAccumulator()
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for trace := range traces {
				curve, err := reduceSweep(trace, plan)
				if err != nil {
					if errs[w] == nil {
						errs[w] = err
					}
					continue
				}
				if err := accs[w].Add(curve); err != nil && errs[w] == nil {
					errs[w] = err
				}
			}
		}(w)
	}

	var sweeps int64
	var readErr error
	for plan.Sweeps == 0 || sweeps < int64(plan.Sweeps) {
		trace, err := r.Counter.ReadCountTrace(ctx)
		if err != nil {
			readErr = err
			break
		}
		traces <- trace
		sweeps++
	}
	close(traces)
	wg.Wait()

	merged := analysis.NewAccumulator()
	for w := 0; w < workers; w++ {
		if err := merged.Merge(accs[w]); err != nil {
			return merged, sweeps, err
		}
	}
	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			return merged, sweeps, errs[w]
		}
	}
	return merged, sweeps, readErr
}

// reduceSweep turns one raw trace into a curve.
func reduceSweep(trace []int64, plan *Plan) (*analysis.Curve, error) {
	pulses, err := extract.LaserPulses(trace, plan.Intervals, plan.Measurement.LaserIgnoreList)
	if err != nil {
		return nil, err
	}
	scalars, err := analysis.Scalars(pulses, plan.Analysis)
	if err != nil {
		return nil, err
	}
	return analysis.BuildCurve(scalars, plan.Measurement, plan.Mode)
}
